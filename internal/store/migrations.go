package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Migration struct {
	Version int
	UpSQL   string
	DownSQL string
}

var migrations = []Migration{
	{
		Version: 1,
		UpSQL: `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at TEXT NOT NULL,
	water_level_cm REAL,
	water_distance_cm REAL,
	water_temp_c REAL,
	air_temp_c REAL,
	air_humidity REAL,
	tds_ppm REAL,
	ph REAL,
	voltage_v REAL,
	current_a REAL,
	power_w REAL,
	energy_kwh REAL,
	frequency_hz REAL,
	power_factor REAL
);

CREATE INDEX IF NOT EXISTS snapshots_taken_at ON snapshots(taken_at);

CREATE TABLE IF NOT EXISTS pump_runs (
	run_id TEXT PRIMARY KEY,
	pump TEXT NOT NULL,
	role TEXT NOT NULL CHECK(role IN ('dosing','duration','refill')),
	reason TEXT NOT NULL,
	started_at TEXT NOT NULL,
	planned_ms INTEGER NOT NULL DEFAULT 0,
	ended_at TEXT,
	ran_ms INTEGER,
	stop_reason TEXT
);

CREATE INDEX IF NOT EXISTS pump_runs_pump_started ON pump_runs(pump, started_at);

CREATE TABLE IF NOT EXISTS pump_daily_runtime (
	date TEXT NOT NULL,
	pump TEXT NOT NULL,
	seconds REAL NOT NULL DEFAULT 0,
	runs INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(date, pump)
);
`,
		DownSQL: `
DROP TABLE IF EXISTS pump_daily_runtime;
DROP INDEX IF EXISTS pump_runs_pump_started;
DROP TABLE IF EXISTS pump_runs;
DROP INDEX IF EXISTS snapshots_taken_at;
DROP TABLE IF EXISTS snapshots;
`,
	},
	{
		Version: 2,
		UpSQL: `
CREATE TABLE IF NOT EXISTS system_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	at TEXT NOT NULL
);
`,
		DownSQL: `DROP TABLE IF EXISTS system_events;`,
	},
}

func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// RollbackAll drops every table created by the migrations, newest first.
func RollbackAll(ctx context.Context, db *sql.DB) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin rollback tx %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("rollback migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("unrecord migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit rollback %d: %w", m.Version, err)
		}
	}
	return nil
}
