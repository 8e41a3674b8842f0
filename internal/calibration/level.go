package calibration

import "github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"

const (
	UltrasonicMaxDistanceCm = 200.0
	ReservoirHeightCm       = 100.0
)

// DistanceToLevel derives the water level from the distance between the
// sensor (mounted at the rim) and the surface. Zero and out-of-range echoes
// are invalid.
func DistanceToLevel(distanceCm, reservoirHeightCm float64) float64 {
	if !messages.Valid(distanceCm) || distanceCm <= 0 || distanceCm >= UltrasonicMaxDistanceCm {
		return messages.Invalid
	}
	return clamp(reservoirHeightCm-distanceCm, 0, reservoirHeightCm)
}

// Water temperature probes report this value when they drop off the bus.
const DeviceDisconnectedC = -127.0

// WaterTemperature filters probe readings outside the plausible range.
func WaterTemperature(c float64) float64 {
	if !messages.Valid(c) || c == DeviceDisconnectedC || c < -50 || c > 120 {
		return messages.Invalid
	}
	return c
}

// ADC conversion of the analog front end.
const (
	ADCVRef       = 3.3
	ADCResolution = 4095.0
)

// ADCToVoltage converts a 12-bit count to volts.
func ADCToVoltage(count float64) float64 {
	return count * ADCVRef / ADCResolution
}
