package sensor_simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/calibration"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/sensors"
)

func roster() []entities.Pump {
	return []entities.Pump{
		{Slug: "nutrisi_a", Line: "25", Role: entities.RoleDosing},
		{Slug: "ph", Line: "27", Role: entities.RoleDosing},
		{Slug: "siram", Line: "32", Role: entities.RoleDuration},
		{Slug: "isi_ulang", Line: "33", Role: entities.RoleRefill},
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRig() (*Rig, *Reservoir, *clock) {
	clk := &clock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	tank := NewReservoir(100, 1)
	return NewRig(roster(), tank, clk.now), tank, clk
}

func TestRig_RefillRaisesLevel(t *testing.T) {
	rig, tank, clk := newRig()
	start := tank.LevelCm

	require.NoError(t, rig.SetOutput("33", true))
	clk.t = clk.t.Add(5 * time.Minute)
	require.NoError(t, rig.SetOutput("33", false))

	assert.InDelta(t, start+5*refillCmPerMin, tank.LevelCm, 0.1)
	assert.False(t, rig.Active("33"))
}

func TestRig_LevelClampedAtRim(t *testing.T) {
	rig, tank, clk := newRig()
	require.NoError(t, rig.SetOutput("33", true))
	clk.t = clk.t.Add(2 * time.Hour)

	d, err := rig.ReadRaw(context.Background(), sensors.ChannelDistance)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
	assert.Equal(t, tank.HeightCm, tank.LevelCm)
}

func TestRig_DosingEffects(t *testing.T) {
	rig, tank, clk := newRig()
	tds, ph := tank.TDSPpm, tank.PH

	require.NoError(t, rig.SetOutput("25", true))
	clk.t = clk.t.Add(time.Minute)
	require.NoError(t, rig.SetOutput("25", false))
	assert.Greater(t, tank.TDSPpm, tds)

	require.NoError(t, rig.SetOutput("27", true))
	clk.t = clk.t.Add(time.Minute)
	require.NoError(t, rig.SetOutput("27", false))
	assert.Less(t, tank.PH, ph)
}

func TestRig_ThroughAggregator(t *testing.T) {
	rig, tank, clk := newRig()
	agg := sensors.NewAggregator(rig, sensors.WithPHSamples(3, 0), sensors.WithNow(clk.now))

	snap := agg.Read(context.Background())
	assert.InDelta(t, tank.LevelCm, snap.WaterLevelCm, 1e-6)
	assert.InDelta(t, tank.PH, snap.PH, 1e-6)
	assert.InDelta(t, tank.TDSPpm, snap.TDSPpm, 1e-6)
	assert.InDelta(t, 220.0, snap.Voltage, 1e-9)
	assert.Equal(t, 0.0, snap.Power)
}

func TestPHVoltageInverse(t *testing.T) {
	for _, ph := range []float64{4.01, 5.5, 6.86, 7.5, 9.18} {
		assert.InDelta(t, ph, calibration.VoltageToPH(phToVoltage(ph)), 1e-9, ph)
	}
}

func TestRig_UnknownChannel(t *testing.T) {
	rig, _, _ := newRig()
	_, err := rig.ReadRaw(context.Background(), sensors.Channel("lux"))
	assert.ErrorIs(t, err, sensors.ErrNoChannel)
}
