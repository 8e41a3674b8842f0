package controller

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlert_Edges(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	f.ctrl.UpdateAlert(snapshot(now, 50, 700))
	assert.Empty(t, f.rec.alerts)
	assert.False(t, f.out.Active("17"))

	f.ctrl.UpdateAlert(snapshot(now, math.NaN(), 700))
	require.Len(t, f.rec.alerts, 1)
	assert.True(t, f.rec.alerts[0].Active)
	assert.Equal(t, AlertSensorInvalid, f.rec.alerts[0].Message)
	assert.True(t, f.out.Active("17"))

	// repeated invalid readings stay quiet
	f.ctrl.UpdateAlert(snapshot(now, math.NaN(), 700))
	f.ctrl.UpdateAlert(snapshot(now, 10, 700))
	assert.Len(t, f.rec.alerts, 1)

	f.ctrl.UpdateAlert(snapshot(now, 60, 700))
	require.Len(t, f.rec.alerts, 2)
	assert.False(t, f.rec.alerts[1].Active)
	assert.Equal(t, AlertNormal, f.rec.alerts[1].Message)
	assert.False(t, f.out.Active("17"))
}

func TestAlert_CriticalMessage(t *testing.T) {
	f := newFixture(t)
	f.ctrl.UpdateAlert(snapshot(f.clock.Now(), defaultCriticalLevelCm, 700))
	require.Len(t, f.rec.alerts, 1)
	assert.Equal(t, fmt.Sprintf(AlertCriticalFmt, defaultCriticalLevelCm), f.rec.alerts[0].Message)
	assert.Equal(t, "ALERT: Level air kritis! 20.0 cm", f.rec.alerts[0].Message)
}

func TestAlert_CleanerModeSilent(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	f.ctrl.UpdateAlert(snapshot(now, 5, 700))
	require.Len(t, f.rec.alerts, 1)
	assert.True(t, f.out.Active("17"))

	// switching to CLEANER forces the buzzer off at once
	require.NoError(t, f.ctrl.HandleModeCommand("cleaner"))
	assert.False(t, f.out.Active("17"))

	// the latch clears without a normal notification
	f.ctrl.UpdateAlert(snapshot(now, 5, 700))
	assert.Len(t, f.rec.alerts, 1)
	assert.False(t, f.ctrl.Status().AlertActive)

	// no alert at all while cleaning
	f.ctrl.UpdateAlert(snapshot(now, math.NaN(), 700))
	assert.Len(t, f.rec.alerts, 1)
	f.ctrl.Tick()
	assert.False(t, f.out.Active("17"))
}

func TestAlert_BuzzerFollowsTick(t *testing.T) {
	f := newFixture(t)
	f.ctrl.ProcessSnapshot(snapshot(f.clock.Now(), math.NaN(), 700))
	f.ctrl.Tick()
	assert.True(t, f.ctrl.Status().Buzzer)
	assert.True(t, f.out.Active("17"))
}
