package messages

import (
	"time"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
)

// Reasons carried by a PumpEvent.
const (
	ReasonManual    = "manual"
	ReasonAutoDose  = "auto_dose"
	ReasonRefill    = "auto_refill"
	ReasonSchedule  = "schedule"
	ReasonCompleted = "completed"
	ReasonStopped   = "stopped"
	ReasonInterlock = "interlock"
	ReasonAnnounce  = "announce" // state replay after a reconnect, not a transition
)

// PumpEvent is emitted on every pump transition. RunID pairs the ON event
// with the OFF event of the same run.
type PumpEvent struct {
	RunID     string             `json:"run_id"`
	Pump      string             `json:"pump"`
	Role      entities.PumpRole  `json:"role"`
	NewState  entities.PumpState `json:"new_state"`
	Reason    string             `json:"reason"`
	Planned   time.Duration      `json:"planned"` // 0 = open-ended
	Ran       time.Duration      `json:"ran"`     // set on OFF
	Timestamp time.Time          `json:"timestamp"`
}
