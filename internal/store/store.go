// Package store keeps a local SQLite log of read cycles and pump runs, so the
// controller has its own record when the history backend is unreachable.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

var ErrNotFound = errors.New("not found")

// fixed width so that text comparison orders by time
const tsLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db  *sql.DB
	loc *time.Location
}

// Open creates (if needed) and migrates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, loc: time.Local}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// SetLocation selects the time zone used to bucket run time per day.
func (s *Store) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// ===================== snapshots =====================

func (s *Store) InsertSnapshot(ctx context.Context, snap messages.SensorSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO snapshots(taken_at, water_level_cm, water_distance_cm, water_temp_c, air_temp_c, air_humidity,
	tds_ppm, ph, voltage_v, current_a, power_w, energy_kwh, frequency_hz, power_factor)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts(snap.Timestamp),
		nullable(snap.WaterLevelCm), nullable(snap.WaterDistanceCm), nullable(snap.WaterTempC),
		nullable(snap.AirTempC), nullable(snap.AirHumidity), nullable(snap.TDSPpm), nullable(snap.PH),
		nullable(snap.Voltage), nullable(snap.Current), nullable(snap.Power), nullable(snap.EnergyKWh),
		nullable(snap.Frequency), nullable(snap.PowerFactor),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recently stored read cycle. Missing
// readings come back as messages.Invalid.
func (s *Store) LatestSnapshot(ctx context.Context) (messages.SensorSnapshot, error) {
	var (
		takenAt string
		f       [13]sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT taken_at, water_level_cm, water_distance_cm, water_temp_c, air_temp_c, air_humidity,
	tds_ppm, ph, voltage_v, current_a, power_w, energy_kwh, frequency_hz, power_factor
FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(
		&takenAt, &f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &f[8], &f[9], &f[10], &f[11], &f[12])
	if errors.Is(err, sql.ErrNoRows) {
		return messages.SensorSnapshot{}, ErrNotFound
	}
	if err != nil {
		return messages.SensorSnapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	at, err := parseTS(takenAt)
	if err != nil {
		return messages.SensorSnapshot{}, fmt.Errorf("parse taken_at: %w", err)
	}
	return messages.SensorSnapshot{
		WaterLevelCm:    value(f[0]),
		WaterDistanceCm: value(f[1]),
		WaterTempC:      value(f[2]),
		AirTempC:        value(f[3]),
		AirHumidity:     value(f[4]),
		TDSPpm:          value(f[5]),
		PH:              value(f[6]),
		Voltage:         value(f[7]),
		Current:         value(f[8]),
		Power:           value(f[9]),
		EnergyKWh:       value(f[10]),
		Frequency:       value(f[11]),
		PowerFactor:     value(f[12]),
		Timestamp:       at,
	}, nil
}

// PruneSnapshots deletes read cycles older than before.
func (s *Store) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE taken_at < ?`, ts(before))
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ===================== pump runs =====================

// PumpRun is one ON..OFF cycle. Ended is nil while the pump still runs.
type PumpRun struct {
	RunID      string
	Pump       string
	Role       entities.PumpRole
	Reason     string
	Started    time.Time
	Planned    time.Duration
	Ended      *time.Time
	Ran        time.Duration
	StopReason string
}

// DailyRuntime is the accumulated run time of one pump on one calendar day.
type DailyRuntime struct {
	Date    string
	Pump    string
	Seconds float64
	Runs    int
}

// RecordPump stores a transition. ON opens a run; OFF closes the run with
// the same id and adds its run time to the day of the stop. An OFF without a
// run id (idle pump) is ignored.
func (s *Store) RecordPump(ctx context.Context, evt messages.PumpEvent) error {
	if evt.RunID == "" {
		return nil
	}
	switch evt.NewState {
	case entities.PumpOn:
		_, err := s.db.ExecContext(ctx, `
INSERT INTO pump_runs(run_id, pump, role, reason, started_at, planned_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO NOTHING`,
			evt.RunID, evt.Pump, string(evt.Role), evt.Reason, ts(evt.Timestamp), evt.Planned.Milliseconds())
		if err != nil {
			return fmt.Errorf("open run %s: %w", evt.RunID, err)
		}
		return nil
	case entities.PumpOff:
		return s.closeRun(ctx, evt)
	}
	return fmt.Errorf("record pump %s: unknown state %q", evt.Pump, evt.NewState)
}

func (s *Store) closeRun(ctx context.Context, evt messages.PumpEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin close run: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
UPDATE pump_runs SET ended_at = ?, ran_ms = ?, stop_reason = ?
WHERE run_id = ? AND ended_at IS NULL`,
		ts(evt.Timestamp), evt.Ran.Milliseconds(), evt.Reason, evt.RunID)
	if err != nil {
		return fmt.Errorf("close run %s: %w", evt.RunID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// the ON was never stored (store opened mid-run); keep the run anyway
		started := evt.Timestamp.Add(-evt.Ran)
		if _, err := tx.ExecContext(ctx, `
INSERT INTO pump_runs(run_id, pump, role, reason, started_at, ended_at, ran_ms, stop_reason)
VALUES (?, ?, ?, '', ?, ?, ?, ?)
ON CONFLICT(run_id) DO NOTHING`,
			evt.RunID, evt.Pump, string(evt.Role), ts(started), ts(evt.Timestamp), evt.Ran.Milliseconds(), evt.Reason); err != nil {
			return fmt.Errorf("insert closed run %s: %w", evt.RunID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO pump_daily_runtime(date, pump, seconds, runs) VALUES (?, ?, ?, 1)
ON CONFLICT(date, pump) DO UPDATE SET
	seconds = seconds + excluded.seconds,
	runs = runs + 1`,
		s.day(evt.Timestamp), evt.Pump, evt.Ran.Seconds()); err != nil {
		return fmt.Errorf("daily runtime %s: %w", evt.Pump, err)
	}
	return tx.Commit()
}

// PumpRuns lists the latest runs of a pump, newest first. An empty pump
// lists every pump.
func (s *Store) PumpRuns(ctx context.Context, pump string, limit int) ([]PumpRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, pump, role, reason, started_at, planned_ms, ended_at, ran_ms, stop_reason
FROM pump_runs
WHERE (? = '' OR pump = ?)
ORDER BY started_at DESC
LIMIT ?`, pump, pump, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []PumpRun
	for rows.Next() {
		var (
			r          PumpRun
			role       string
			started    string
			plannedMS  int64
			ended      sql.NullString
			ranMS      sql.NullInt64
			stopReason sql.NullString
		)
		if err := rows.Scan(&r.RunID, &r.Pump, &role, &r.Reason, &started, &plannedMS, &ended, &ranMS, &stopReason); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Role = entities.PumpRole(role)
		r.Planned = time.Duration(plannedMS) * time.Millisecond
		if r.Started, err = parseTS(started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if ended.Valid {
			t, err := parseTS(ended.String)
			if err != nil {
				return nil, fmt.Errorf("parse ended_at: %w", err)
			}
			r.Ended = &t
		}
		r.Ran = time.Duration(ranMS.Int64) * time.Millisecond
		r.StopReason = stopReason.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Runtime returns the run time of pump on the calendar day containing at.
func (s *Store) Runtime(ctx context.Context, pump string, at time.Time) (DailyRuntime, error) {
	d := DailyRuntime{Date: s.day(at), Pump: pump}
	err := s.db.QueryRowContext(ctx, `SELECT seconds, runs FROM pump_daily_runtime WHERE date = ? AND pump = ?`, d.Date, pump).
		Scan(&d.Seconds, &d.Runs)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, fmt.Errorf("daily runtime: %w", err)
	}
	return d, nil
}

// ===================== system events =====================

func (s *Store) InsertEvent(ctx context.Context, kind, value string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO system_events(kind, value, at) VALUES (?, ?, ?)`, kind, value, ts(at)); err != nil {
		return fmt.Errorf("insert event %s: %w", kind, err)
	}
	return nil
}

// ===================== helpers =====================

func (s *Store) day(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(v string) (time.Time, error) {
	return time.Parse(tsLayout, v)
}

func nullable(v float64) any {
	if !messages.Valid(v) {
		return nil
	}
	return v
}

func value(v sql.NullFloat64) float64 {
	if !v.Valid {
		return messages.Invalid
	}
	return v.Float64
}
