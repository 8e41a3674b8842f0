package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

// PumpStatus is a read-only view of one pump.
type PumpStatus struct {
	Pump     entities.Pump      `json:"pump"`
	State    entities.PumpState `json:"state"`
	Reason   string             `json:"reason,omitempty"`
	RunID    string             `json:"run_id,omitempty"`
	Deadline *time.Time         `json:"deadline,omitempty"`
}

// Status is a consistent view of the whole controller.
type Status struct {
	Mode        entities.SystemMode      `json:"mode"`
	Pumps       []PumpStatus             `json:"pumps"`
	Toggles     map[entities.Toggle]bool `json:"toggles"`
	AutoDose    string                   `json:"auto_dose"`
	AlertActive bool                     `json:"alert_active"`
	Buzzer      bool                     `json:"buzzer"`
	Latest      messages.SensorSnapshot  `json:"latest"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Mode:        c.mode,
		Toggles:     c.toggles.Snapshot(),
		AutoDose:    c.seq.String(),
		AlertActive: c.alert.Active(),
		Buzzer:      c.buzzerOn,
		Latest:      c.latest,
	}
	for _, p := range c.pumps {
		ps := PumpStatus{Pump: p.desc, State: p.state(), Reason: p.reason, RunID: p.runID}
		if !p.deadline.IsZero() {
			d := p.deadline
			ps.Deadline = &d
		}
		st.Pumps = append(st.Pumps, ps)
	}
	return st
}

// Mode returns the current system mode.
func (c *Controller) Mode() entities.SystemMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Roster returns the pump descriptors in configuration order.
func (c *Controller) Roster() []entities.Pump {
	out := make([]entities.Pump, 0, len(c.pumps))
	for _, p := range c.pumps {
		out = append(out, p.desc)
	}
	return out
}

// PublishStates re-announces every pump state, the mode and the toggles.
// Called after each broker (re)connect.
func (c *Controller) PublishStates() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for _, p := range c.pumps {
		c.notify.PumpChanged(messages.PumpEvent{
			RunID:     p.runID,
			Pump:      p.desc.Slug,
			Role:      p.desc.Role,
			NewState:  p.state(),
			Reason:    messages.ReasonAnnounce,
			Timestamp: now,
		})
	}
	c.notify.ModeChanged(c.mode)
	for _, t := range entities.Toggles {
		c.notify.ToggleChanged(t, c.toggles.Enabled(t))
	}
}

// NewStatusHandler serves GET /status with the current Status as JSON.
func NewStatusHandler(c *Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(c.Status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
