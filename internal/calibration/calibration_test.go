package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVoltageToPH_Anchors(t *testing.T) {
	tests := []struct {
		name string
		volt float64
		want float64
	}{
		{"acid", PHAcidVolt, PHAcid},
		{"neutral", PHNeutralVolt, PHNeutral},
		{"base", PHBaseVolt, PHBase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, VoltageToPH(tt.volt), 1e-9)
		})
	}
}

func TestVoltageToPH_Interpolation(t *testing.T) {
	mid := (PHNeutralVolt + PHBaseVolt) / 2
	assert.InDelta(t, (PHNeutral+PHBase)/2, VoltageToPH(mid), 1e-9)

	mid = (PHAcidVolt + PHNeutralVolt) / 2
	assert.InDelta(t, (PHAcid+PHNeutral)/2, VoltageToPH(mid), 1e-9)
}

func TestVoltageToPH_Extrapolation(t *testing.T) {
	// above the acid anchor the acid slope continues
	acidSlope := (PHAcidVolt - PHNeutralVolt) / (PHAcid - PHNeutral)
	want := PHNeutral + (3.1-PHNeutralVolt)/acidSlope
	assert.InDelta(t, want, VoltageToPH(3.1), 1e-9)
	assert.Less(t, VoltageToPH(3.1), PHAcid)

	// pH 10.01 buffer measured at ~1.855 V sits on the extended base slope
	assert.InDelta(t, 10.0, VoltageToPH(1.855), 0.1)
}

func TestVoltageToPH_Clamped(t *testing.T) {
	// far below the base anchor the extrapolation exceeds 14
	assert.Equal(t, 14.0, VoltageToPH(0.2))
}

func TestVoltageToPH_Monotonic(t *testing.T) {
	prev := VoltageToPH(PHMinVolt)
	for v := PHMinVolt; v <= PHMaxVolt; v += 0.01 {
		ph := VoltageToPH(v)
		assert.LessOrEqual(t, ph, prev+1e-9, "v=%.2f", v)
		prev = ph
	}
}

func TestVoltageToPH_OutOfBand(t *testing.T) {
	for _, v := range []float64{0, 0.05, 3.21, 5, -1, math.NaN()} {
		assert.True(t, math.IsNaN(VoltageToPH(v)), "v=%v", v)
	}
}

func TestVoltageToTDS(t *testing.T) {
	t.Run("reference temperature", func(t *testing.T) {
		assert.InDelta(t, 1.0*DefaultTDSK, VoltageToTDS(1.0, 25), 1e-9)
	})
	t.Run("warm water reads lower", func(t *testing.T) {
		got := VoltageToTDS(1.0, 30)
		assert.InDelta(t, DefaultTDSK/1.1, got, 1e-9)
	})
	t.Run("custom probe", func(t *testing.T) {
		p := TDS{K: 500, TempCoeff: 0.019}
		assert.InDelta(t, 2*500/(1+0.019*(20-25)), p.VoltageToTDS(2, 20), 1e-9)
	})
	t.Run("invalid temperature short-circuits", func(t *testing.T) {
		assert.True(t, math.IsNaN(VoltageToTDS(1.0, math.NaN())))
	})
	t.Run("out of band", func(t *testing.T) {
		for _, v := range []float64{0, 0.09, 2.41, 3.3, math.NaN()} {
			assert.True(t, math.IsNaN(VoltageToTDS(v, 25)), "v=%v", v)
		}
	})
}

func TestDistanceToLevel(t *testing.T) {
	const h = ReservoirHeightCm
	assert.True(t, math.IsNaN(DistanceToLevel(0, h)))
	assert.True(t, math.IsNaN(DistanceToLevel(UltrasonicMaxDistanceCm, h)))
	assert.True(t, math.IsNaN(DistanceToLevel(250, h)))
	assert.True(t, math.IsNaN(DistanceToLevel(math.NaN(), h)))
	assert.Equal(t, 0.0, DistanceToLevel(h, h))
	assert.Equal(t, 0.0, DistanceToLevel(150, h))
	assert.Equal(t, 70.0, DistanceToLevel(30, h))
	assert.Equal(t, 99.0, DistanceToLevel(1, h))

	prev := DistanceToLevel(1, h)
	for d := 1.0; d < UltrasonicMaxDistanceCm; d++ {
		l := DistanceToLevel(d, h)
		assert.LessOrEqual(t, l, prev)
		prev = l
	}
}

func TestWaterTemperature(t *testing.T) {
	assert.True(t, math.IsNaN(WaterTemperature(DeviceDisconnectedC)))
	assert.True(t, math.IsNaN(WaterTemperature(-60)))
	assert.True(t, math.IsNaN(WaterTemperature(121)))
	assert.Equal(t, 24.5, WaterTemperature(24.5))
}

func TestADCToVoltage(t *testing.T) {
	assert.InDelta(t, ADCVRef, ADCToVoltage(4095), 1e-9)
	assert.Equal(t, 0.0, ADCToVoltage(0))
}
