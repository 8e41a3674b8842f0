package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/calibration"
)

// ====== Tunables ======
const (
	// refillCmPerMin: level gained per minute while the refill pump is ON.
	refillCmPerMin = 4.0
	// irrigationCmPerMin: level lost per minute while watering.
	irrigationCmPerMin = 1.5
	// evaporationCmPerHour: loss at rest.
	evaporationCmPerHour = 0.2

	// nutrientPpmPerMin: TDS added per minute by a nutrient pump.
	nutrientPpmPerMin = 120.0
	// uptakePpmPerHour: plant uptake.
	uptakePpmPerHour = 15.0
	// phDownPerMin: effect of the pH pump.
	phDownPerMin = 0.4
	// phDriftPerHour: pH creeps up without correction.
	phDriftPerHour = 0.05
)

// Reservoir holds the simulated tank state and evolves it over time.
type Reservoir struct {
	mu   sync.Mutex
	last time.Time
	rnd  *rand.Rand

	LevelCm    float64
	TDSPpm     float64
	PH         float64
	WaterTempC float64
	AirTempC   float64
	Humidity   float64
	EnergyWh   float64

	HeightCm float64
	Noise    bool
}

// NewReservoir seeds a tank at a comfortable working point.
func NewReservoir(heightCm float64, seed int64) *Reservoir {
	if heightCm <= 0 {
		heightCm = calibration.ReservoirHeightCm
	}
	return &Reservoir{
		rnd:        rand.New(rand.NewSource(seed)),
		LevelCm:    heightCm * 0.6,
		TDSPpm:     700,
		PH:         6.2,
		WaterTempC: 25,
		AirTempC:   29,
		Humidity:   70,
		HeightCm:   heightCm,
	}
}

// Active reports which effects are running during an advance.
type Active struct {
	Refill   bool
	Water    bool
	Nutrient bool
	PHDown   bool
	Loads    int
}

// Advance moves the state forward to now with the given actuators running
// for the whole elapsed span.
func (r *Reservoir) Advance(now time.Time, a Active) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last.IsZero() {
		r.last = now
		return
	}
	dtMin := now.Sub(r.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	r.last = now

	level := r.LevelCm - evaporationCmPerHour*dtMin/60
	if a.Refill {
		level += refillCmPerMin * dtMin
	}
	if a.Water {
		level -= irrigationCmPerMin * dtMin
	}
	r.LevelCm = clamp(level, 0, r.HeightCm)

	tds := r.TDSPpm - uptakePpmPerHour*dtMin/60
	if a.Nutrient {
		tds += nutrientPpmPerMin * dtMin
	}
	r.TDSPpm = math.Max(0, tds)

	ph := r.PH + phDriftPerHour*dtMin/60
	if a.PHDown {
		ph -= phDownPerMin * dtMin
	}
	r.PH = clamp(ph, 0, 14)

	// 60 W per running pump
	r.EnergyWh += float64(a.Loads) * 60 * dtMin / 60
}

func (r *Reservoir) jitter(v, amp float64) float64 {
	if !r.Noise || amp == 0 {
		return v
	}
	return v + (r.rnd.Float64()*2-1)*amp
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// phToVoltage inverts calibration.VoltageToPH on the calibrated segments.
func phToVoltage(ph float64) float64 {
	if ph <= calibration.PHNeutral {
		slope := (calibration.PHAcidVolt - calibration.PHNeutralVolt) / (calibration.PHNeutral - calibration.PHAcid)
		return calibration.PHNeutralVolt + (calibration.PHNeutral-ph)*slope
	}
	slope := (calibration.PHNeutralVolt - calibration.PHBaseVolt) / (calibration.PHBase - calibration.PHNeutral)
	return calibration.PHNeutralVolt - (ph-calibration.PHNeutral)*slope
}

// tdsToVoltage inverts the compensated TDS conversion.
func tdsToVoltage(ppm, tempC float64, t calibration.TDS) float64 {
	return ppm * (1 + t.TempCoeff*(tempC-calibration.TDSReferenceTempC)) / t.K
}
