package calibration

import "github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"

const (
	TDSMinVolt = 0.1
	TDSMaxVolt = 2.4

	DefaultTDSK         = 635.40
	DefaultTDSTempCoeff = 0.02
	TDSReferenceTempC   = 25.0
)

// TDS holds the probe constants. K comes from a reference solution of known
// concentration at TDSReferenceTempC.
type TDS struct {
	K         float64
	TempCoeff float64
}

// DefaultTDS returns the constants of the stock probe.
func DefaultTDS() TDS {
	return TDS{K: DefaultTDSK, TempCoeff: DefaultTDSTempCoeff}
}

// VoltageToTDS returns the temperature-compensated concentration in ppm.
// An invalid water temperature makes the result invalid.
func (t TDS) VoltageToTDS(v, waterTempC float64) float64 {
	if !messages.Valid(waterTempC) || !messages.Valid(v) {
		return messages.Invalid
	}
	if v < TDSMinVolt || v > TDSMaxVolt {
		return messages.Invalid
	}
	raw := v * t.K
	return raw / (1.0 + t.TempCoeff*(waterTempC-TDSReferenceTempC))
}

// VoltageToTDS uses the stock probe constants.
func VoltageToTDS(v, waterTempC float64) float64 {
	return DefaultTDS().VoltageToTDS(v, waterTempC)
}
