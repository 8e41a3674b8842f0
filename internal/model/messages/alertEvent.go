package messages

import "time"

// AlertEvent is emitted on each edge of the water level alert.
type AlertEvent struct {
	Active    bool      `json:"active"`
	Message   string    `json:"message"`
	LevelCm   float64   `json:"level_cm"`
	Timestamp time.Time `json:"timestamp"`
}
