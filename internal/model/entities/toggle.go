package entities

// Toggle identifies one automation enable flag.
type Toggle string

const (
	ToggleDosing     Toggle = "dosis"
	ToggleRefill     Toggle = "isi_ulang"
	ToggleIrrigation Toggle = "siram"
)

// Toggles lists every automation flag in publish order.
var Toggles = []Toggle{ToggleDosing, ToggleRefill, ToggleIrrigation}

func (t Toggle) Valid() bool {
	switch t {
	case ToggleDosing, ToggleRefill, ToggleIrrigation:
		return true
	}
	return false
}
