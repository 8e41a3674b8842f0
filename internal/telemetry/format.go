package telemetry

import (
	"strconv"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

// Unavailable is published in place of an invalid reading.
const Unavailable = "unavailable"

const (
	Online  = "Online"
	Offline = "Offline"
)

// FormatReading renders v with a fixed number of decimals.
func FormatReading(v float64, precision int) string {
	if !messages.Valid(v) {
		return Unavailable
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}
