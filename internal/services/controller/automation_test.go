package controller

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

func doseTime() time.Duration {
	return entities.DoseDuration(defaultDosingML, defaultMsPerML)
}

func TestAutoDose_Sequence(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(defaultAutoDoseInterval)

	assert.True(t, f.ctrl.AutoDose(snapshot(f.clock.Now(), 50, 500)))
	assert.Equal(t, []string{"nutrisi_a"}, f.running())
	assert.Equal(t, WaitingForSecondDose.String(), f.ctrl.Status().AutoDose)

	f.clock.Advance(doseTime())
	f.ctrl.Tick()
	assert.Equal(t, []string{"nutrisi_b"}, f.running())
	assert.Equal(t, Idle.String(), f.ctrl.Status().AutoDose)

	f.clock.Advance(doseTime())
	f.ctrl.Tick()
	assert.Empty(t, f.running())

	assert.Equal(t, []entities.PumpState{entities.PumpOn, entities.PumpOff}, f.rec.pumpStates("nutrisi_a"))
	assert.Equal(t, []entities.PumpState{entities.PumpOn, entities.PumpOff}, f.rec.pumpStates("nutrisi_b"))
	for _, e := range f.rec.pumps {
		if e.NewState == entities.PumpOn {
			assert.Equal(t, messages.ReasonAutoDose, e.Reason)
			assert.Equal(t, doseTime(), e.Planned)
		}
	}
}

func TestAutoDose_Guards(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		tds   float64
	}{
		{"interval not elapsed", func(f *fixture) { f.clock.Advance(defaultAutoDoseInterval - time.Second) }, 500},
		{"cleaner mode", func(f *fixture) {
			f.clock.Advance(defaultAutoDoseInterval)
			require.NoError(t, f.ctrl.HandleModeCommand("CLEANER"))
		}, 500},
		{"dosing toggle off", func(f *fixture) {
			f.clock.Advance(defaultAutoDoseInterval)
			require.NoError(t, f.ctrl.HandleToggleCommand(entities.ToggleDosing, "OFF"))
		}, 500},
		{"pump running", func(f *fixture) {
			require.NoError(t, f.ctrl.HandlePumpCommand("siram", "3600"))
			f.clock.Advance(defaultAutoDoseInterval)
		}, 500},
		{"tds invalid", func(f *fixture) { f.clock.Advance(defaultAutoDoseInterval) }, math.NaN()},
		{"tds at threshold", func(f *fixture) { f.clock.Advance(defaultAutoDoseInterval) }, defaultTDSLowerPpm},
		{"tds above threshold", func(f *fixture) { f.clock.Advance(defaultAutoDoseInterval) }, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			before := len(f.rec.pumps)
			assert.False(t, f.ctrl.AutoDose(snapshot(f.clock.Now(), 50, tt.tds)))
			assert.Len(t, f.rec.pumps, before)
			assert.Equal(t, Idle.String(), f.ctrl.Status().AutoDose)
		})
	}
}

func TestAutoDose_IntervalStampedBeforeGuards(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(defaultAutoDoseInterval)

	// invalid TDS still consumes the check
	assert.False(t, f.ctrl.AutoDose(snapshot(f.clock.Now(), 50, math.NaN())))
	f.clock.Advance(time.Minute)
	assert.False(t, f.ctrl.AutoDose(snapshot(f.clock.Now(), 50, 500)))

	f.clock.Advance(defaultAutoDoseInterval)
	assert.True(t, f.ctrl.AutoDose(snapshot(f.clock.Now(), 50, 500)))
}

func TestAutoDose_ManualStopCancelsSequence(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(defaultAutoDoseInterval)
	require.True(t, f.ctrl.AutoDose(snapshot(f.clock.Now(), 50, 500)))

	require.NoError(t, f.ctrl.HandlePumpCommand("nutrisi_a", "OFF"))
	assert.Equal(t, Idle.String(), f.ctrl.Status().AutoDose)
	require.NoError(t, f.ctrl.HandlePumpCommand("siram", "600"))

	f.clock.Advance(doseTime())
	f.ctrl.Tick()
	assert.Equal(t, []string{"siram"}, f.running())
	assert.Empty(t, f.rec.pumpStates("nutrisi_b"))
}

func TestAutoDose_ViaProcessSnapshot(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(defaultAutoDoseInterval)
	f.ctrl.ProcessSnapshot(snapshot(f.clock.Now(), 50, 100))
	assert.Equal(t, []string{"nutrisi_a"}, f.running())
}

func TestInterlock_ForcesRefillOff(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.HandlePumpCommand("isi_ulang", "ON"))
	// mode and toggles do not matter
	require.NoError(t, f.ctrl.HandleModeCommand("CLEANER"))
	require.NoError(t, f.ctrl.HandleToggleCommand(entities.ToggleRefill, "OFF"))

	f.ctrl.ProcessSnapshot(snapshot(f.clock.Now(), SafetyCeilingCm-0.1, 700))
	f.ctrl.Tick()
	assert.Equal(t, []string{"isi_ulang"}, f.running())

	f.ctrl.ProcessSnapshot(snapshot(f.clock.Now(), SafetyCeilingCm, 700))
	f.ctrl.Tick()
	assert.Empty(t, f.running())
	assert.False(t, f.out.Active("33"))

	last := f.rec.pumps[len(f.rec.pumps)-1]
	assert.Equal(t, messages.ReasonInterlock, last.Reason)
}

func TestInterlock_IgnoresInvalidLevel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.HandlePumpCommand("isi_ulang", "ON"))
	f.ctrl.ProcessSnapshot(snapshot(f.clock.Now(), math.NaN(), 700))
	f.ctrl.Tick()
	assert.Equal(t, []string{"isi_ulang"}, f.running())
}

func TestAutoRefill(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.RefillTargetCm = 70 })
	require.NoError(t, f.ctrl.HandleToggleCommand(entities.ToggleRefill, "ON"))

	f.ctrl.ProcessSnapshot(snapshot(f.clock.Now(), 40, 700))
	assert.Equal(t, []string{"isi_ulang"}, f.running())

	f.ctrl.ProcessSnapshot(snapshot(f.clock.Now(), 69.9, 700))
	f.ctrl.Tick()
	assert.Equal(t, []string{"isi_ulang"}, f.running())

	f.ctrl.ProcessSnapshot(snapshot(f.clock.Now(), 70, 700))
	f.ctrl.Tick()
	assert.Empty(t, f.running())
	last := f.rec.pumps[len(f.rec.pumps)-1]
	assert.Equal(t, messages.ReasonCompleted, last.Reason)
}

func TestAutoRefill_ToggleOff(t *testing.T) {
	f := newFixture(t)
	f.ctrl.ProcessSnapshot(snapshot(f.clock.Now(), 10, 700))
	assert.Empty(t, f.running())
}

func TestScheduledIrrigation(t *testing.T) {
	f := newFixture(t, func(s *Settings) {
		s.IrrigationInterval = time.Hour
		s.IrrigationDuration = 2 * time.Minute
	})

	f.clock.Advance(time.Hour)
	f.ctrl.Tick()
	assert.Empty(t, f.running(), "toggle off")

	require.NoError(t, f.ctrl.HandleToggleCommand(entities.ToggleIrrigation, "ON"))
	f.clock.Advance(time.Hour)
	f.ctrl.Tick()
	assert.Equal(t, []string{"siram"}, f.running())

	f.clock.Advance(2 * time.Minute)
	f.ctrl.Tick()
	assert.Empty(t, f.running())
}
