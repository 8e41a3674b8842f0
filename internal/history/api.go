package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
)

// PumpRun is one completed pump run as served to dashboards.
type PumpRun struct {
	Pump   string  `json:"pump"`
	Reason string  `json:"reason,omitempty"`
	RanS   float64 `json:"ran_s"`
	Time   string  `json:"time"` // RFC3339
}

// Querier is the part of api.QueryAPI the handlers use.
type Querier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

type runQueryParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
	Pump      string
}

func parseRuns(r *http.Request, defMin, defLim, defTOms int) runQueryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return runQueryParams{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
		Pump:      strings.TrimSpace(q.Get("pump")),
	}
}

func buildFlux(bucket, instance, pump string, minutes, limit int) string {
	pumpFilter := ""
	if pump != "" {
		pumpFilter = fmt.Sprintf(` and r.pump == %q`, pump)
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r.instance == %q and r.state == "OFF"%s)
  |> filter(fn: (r) => r._field == "ran_s")
  |> keep(columns: ["_time","_value","pump","reason"])
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, MeasurementPump, instance, pumpFilter, limit)
}

func runRuns(w http.ResponseWriter, r *http.Request, q Querier, bucket, instance string) {
	p := parseRuns(r, 1440, 20, 2000)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	res, err := q.Query(ctx, buildFlux(bucket, instance, p.Pump, p.Minutes, p.Limit))
	if err != nil {
		w.Header().Set("X-Error", "influx-query-error")
		_, _ = w.Write([]byte("[]"))
		return
	}
	defer res.Close()

	out := make([]PumpRun, 0, p.Limit)
	for res.Next() {
		rec := res.Record()

		var ran float64
		switch v := rec.Value().(type) {
		case float64:
			ran = v
		case int64:
			ran = float64(v)
		}
		run := PumpRun{RanS: ran, Time: rec.Time().UTC().Format(time.RFC3339)}
		if v, ok := rec.ValueByKey("pump").(string); ok {
			run.Pump = v
		}
		if v, ok := rec.ValueByKey("reason").(string); ok {
			run.Reason = v
		}
		out = append(out, run)
	}
	if res.Err() != nil {
		w.Header().Set("X-Error", "influx-iter-error")
	}
	_ = json.NewEncoder(w).Encode(out)
}

// NewPumpLatestHandler serves GET /history/pumps/latest?limit=20[&minutes=1440][&pump=slug].
func NewPumpLatestHandler(q Querier, bucket, instance string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runRuns(w, r, q, bucket, instance)
	})
}
