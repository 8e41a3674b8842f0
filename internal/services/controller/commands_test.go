package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
)

func TestModeCommand(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.HandleModeCommand("nutrition"))
	require.NoError(t, f.ctrl.HandleModeCommand("NuTrItIoN"))
	assert.Empty(t, f.rec.modes)

	assert.ErrorIs(t, f.ctrl.HandleModeCommand("garbage"), ErrBadPayload)
	assert.Equal(t, entities.ModeNutrition, f.ctrl.Mode())
	assert.Empty(t, f.rec.modes)

	require.NoError(t, f.ctrl.HandleModeCommand(" Cleaner "))
	require.NoError(t, f.ctrl.HandleModeCommand("CLEANER"))
	assert.Equal(t, []entities.SystemMode{entities.ModeCleaner}, f.rec.modes)

	require.NoError(t, f.ctrl.HandleModeCommand("NUTRITION"))
	assert.Equal(t, []entities.SystemMode{entities.ModeCleaner, entities.ModeNutrition}, f.rec.modes)
}

func TestToggleCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
	}{
		{"ON", true},
		{"on", true},
		{" On ", true},
		{"OFF", false},
		{"yes", false},
		{"", false},
		{"1", false},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.ctrl.HandleToggleCommand(entities.ToggleRefill, tt.payload))
			assert.Equal(t, tt.want, f.ctrl.Status().Toggles[entities.ToggleRefill])
			assert.Equal(t, []bool{tt.want}, f.rec.toggles[entities.ToggleRefill])
		})
	}
}

func TestToggleCommand_RepublishesUnchanged(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.HandleToggleCommand(entities.ToggleDosing, "ON"))
	require.NoError(t, f.ctrl.HandleToggleCommand(entities.ToggleDosing, "ON"))
	assert.Equal(t, []bool{true, true}, f.rec.toggles[entities.ToggleDosing])
}

func TestToggleCommand_Unknown(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.ctrl.HandleToggleCommand("lights", "ON"), ErrUnknownToggle)
	assert.Empty(t, f.rec.toggles)
}

func TestToggleStore(t *testing.T) {
	s := NewToggleStore(map[entities.Toggle]bool{entities.ToggleIrrigation: true})
	assert.False(t, s.Enabled(entities.ToggleDosing))
	assert.True(t, s.Enabled(entities.ToggleIrrigation))

	assert.True(t, s.Set(entities.ToggleDosing, true))
	assert.False(t, s.Set(entities.ToggleDosing, true))

	snap := s.Snapshot()
	snap[entities.ToggleDosing] = false
	assert.True(t, s.Enabled(entities.ToggleDosing))
	assert.Len(t, snap, len(entities.Toggles))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, `pump/ph="5"`, Command{Kind: PumpCommand, Target: "ph", Payload: "5"}.String())
	assert.Equal(t, `mode="CLEANER"`, Command{Kind: ModeCommand, Payload: "CLEANER"}.String())
}
