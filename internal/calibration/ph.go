// Package calibration converts raw sensor quantities into physical values.
// Every function returns messages.Invalid (NaN) when the input cannot be
// trusted; no function substitutes a default.
package calibration

import (
	"math"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

// Buffer solution anchors. Higher voltage means more acidic with this probe.
const (
	PHAcid    = 4.01
	PHNeutral = 6.86
	PHBase    = 9.18
	PHDisplay = 7.00 // shown on the calibration bench only

	PHAcidVolt    = 3.045
	PHNeutralVolt = 2.510
	PHBaseVolt    = 2.025
	PHDisplayVolt = 2.814

	PHMinVolt = 0.1
	PHMaxVolt = 3.2
)

// PHSamples is the averaging window of the pH channel.
const (
	PHSamples = 10
)

// VoltageToPH maps a probe voltage to pH by segmental linear interpolation
// between the buffer anchors. Outside the outer anchors the nearest segment
// is extrapolated, then the result is clamped to [0, 14].
func VoltageToPH(v float64) float64 {
	if !messages.Valid(v) || v < PHMinVolt || v > PHMaxVolt {
		return messages.Invalid
	}

	acidSlope := (PHAcidVolt - PHNeutralVolt) / (PHAcid - PHNeutral)
	baseSlope := (PHNeutralVolt - PHBaseVolt) / (PHNeutral - PHBase)

	var ph float64
	if v >= PHNeutralVolt {
		// acid segment, also extended above PHAcidVolt
		ph = PHNeutral + (v-PHNeutralVolt)/acidSlope
	} else {
		// base segment, also extended below PHBaseVolt
		ph = PHBase + (v-PHBaseVolt)/baseSlope
	}
	return clamp(ph, 0, 14)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
