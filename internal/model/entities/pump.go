package entities

import "time"

// PumpRole decides how a pump command payload is interpreted.
type PumpRole string

const (
	// RoleDosing pumps take a volume in millilitres.
	RoleDosing PumpRole = "dosing"
	// RoleDuration pumps take a run time in seconds.
	RoleDuration PumpRole = "duration"
	// RoleRefill pumps only accept "ON" and run until stopped.
	RoleRefill PumpRole = "refill"
)

func (r PumpRole) Valid() bool {
	switch r {
	case RoleDosing, RoleDuration, RoleRefill:
		return true
	}
	return false
}

// PumpState is the retained state payload of a pump.
type PumpState string

const (
	PumpOff PumpState = "OFF"
	PumpOn  PumpState = "ON"
)

// Pump describes one actuator of the roster. Slug is the topic segment
// (pompa/<slug>/kontrol), Line the output line driven by the board.
type Pump struct {
	Name string   `json:"name" yaml:"name"`
	Slug string   `json:"slug" yaml:"slug"`
	Line string   `json:"line" yaml:"line"`
	Role PumpRole `json:"role" yaml:"role"`
}

// DoseDuration converts a volume to a run time for a dosing pump.
func DoseDuration(volumeML, msPerML float64) time.Duration {
	return time.Duration(volumeML * msPerML * float64(time.Millisecond))
}
