package store

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type runJSON struct {
	RunID      string  `json:"run_id"`
	Pump       string  `json:"pump"`
	Role       string  `json:"role"`
	Reason     string  `json:"reason,omitempty"`
	Started    string  `json:"started"`
	PlannedS   float64 `json:"planned_s,omitempty"`
	Ended      string  `json:"ended,omitempty"`
	RanS       float64 `json:"ran_s"`
	StopReason string  `json:"stop_reason,omitempty"`
}

// NewRunsHandler serves GET /local/pumps/runs?limit=20[&pump=slug] from the
// local log, so recent runs stay visible without the history backend.
func NewRunsHandler(s *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 20
		if v, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil && v > 0 && v <= 500 {
			limit = v
		}
		runs, err := s.PumpRuns(r.Context(), strings.TrimSpace(q.Get("pump")), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		out := make([]runJSON, 0, len(runs))
		for _, run := range runs {
			j := runJSON{
				RunID:      run.RunID,
				Pump:       run.Pump,
				Role:       string(run.Role),
				Reason:     run.Reason,
				Started:    run.Started.UTC().Format(time.RFC3339),
				PlannedS:   run.Planned.Seconds(),
				RanS:       run.Ran.Seconds(),
				StopReason: run.StopReason,
			}
			if run.Ended != nil {
				j.Ended = run.Ended.UTC().Format(time.RFC3339)
			}
			out = append(out, j)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}
