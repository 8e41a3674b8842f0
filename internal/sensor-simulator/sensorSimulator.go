package sensor_simulator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/calibration"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/sensors"
)

// Rig is a bench stand-in for the whole board: it accepts output writes
// like the relays do and answers raw channel reads from a simulated tank.
// Running pumps feed back into the readings.
type Rig struct {
	mu    sync.Mutex
	tank  *Reservoir
	tds   calibration.TDS
	now   func() time.Time
	roles map[string]effect
	lines map[string]bool
}

type effect int

const (
	effectNone effect = iota
	effectRefill
	effectWater
	effectNutrient
	effectPHDown
)

// NewRig maps the roster onto tank effects: refill raises the level, the
// duration pump waters, dosing pumps add nutrients except a pump whose slug
// names pH.
func NewRig(roster []entities.Pump, tank *Reservoir, now func() time.Time) *Rig {
	if now == nil {
		now = time.Now
	}
	r := &Rig{
		tank:  tank,
		tds:   calibration.DefaultTDS(),
		now:   now,
		roles: map[string]effect{},
		lines: map[string]bool{},
	}
	for _, p := range roster {
		switch p.Role {
		case entities.RoleRefill:
			r.roles[p.Line] = effectRefill
		case entities.RoleDuration:
			r.roles[p.Line] = effectWater
		case entities.RoleDosing:
			if strings.Contains(strings.ToLower(p.Slug), "ph") {
				r.roles[p.Line] = effectPHDown
			} else {
				r.roles[p.Line] = effectNutrient
			}
		}
	}
	tank.Advance(now(), Active{})
	return r
}

func (r *Rig) activeLocked() Active {
	var a Active
	for line, on := range r.lines {
		if !on {
			continue
		}
		switch r.roles[line] {
		case effectRefill:
			a.Refill = true
		case effectWater:
			a.Water = true
		case effectNutrient:
			a.Nutrient = true
		case effectPHDown:
			a.PHDown = true
		default:
			continue
		}
		a.Loads++
	}
	return a
}

// SetOutput implements controller.Outputs.
func (r *Rig) SetOutput(line string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tank.Advance(r.now(), r.activeLocked())
	if r.lines[line] != active {
		log.Printf("sim: line %s -> %v", line, active)
	}
	r.lines[line] = active
	return nil
}

// Active reports the state of one line.
func (r *Rig) Active(line string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines[line]
}

// ReadRaw implements sensors.RawReader with the raw values the physical
// probes would return.
func (r *Rig) ReadRaw(_ context.Context, ch sensors.Channel) (float64, error) {
	r.mu.Lock()
	r.tank.Advance(r.now(), r.activeLocked())
	loads := r.activeLocked().Loads
	r.mu.Unlock()

	t := r.tank
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ch {
	case sensors.ChannelDistance:
		return t.jitter(t.HeightCm-t.LevelCm, 0.3), nil
	case sensors.ChannelWaterTemp:
		return t.jitter(t.WaterTempC, 0.05), nil
	case sensors.ChannelAirTemp:
		return t.jitter(t.AirTempC, 0.2), nil
	case sensors.ChannelAirHumidity:
		return t.jitter(t.Humidity, 0.5), nil
	case sensors.ChannelTDSVolt:
		return t.jitter(tdsToVoltage(t.TDSPpm, t.WaterTempC, r.tds), 0.002), nil
	case sensors.ChannelPHVolt:
		return t.jitter(phToVoltage(t.PH), 0.003), nil
	case sensors.ChannelVoltage:
		return t.jitter(220, 1), nil
	case sensors.ChannelCurrent:
		return float64(loads) * 60 / 220, nil
	case sensors.ChannelPower:
		return float64(loads) * 60, nil
	case sensors.ChannelEnergyWh:
		return t.EnergyWh, nil
	case sensors.ChannelFrequency:
		return 50, nil
	case sensors.ChannelPowerFactor:
		if loads == 0 {
			return 0, nil
		}
		return 0.9, nil
	}
	return 0, fmt.Errorf("sim %s: %w", ch, sensors.ErrNoChannel)
}

var _ sensors.RawReader = (*Rig)(nil)
