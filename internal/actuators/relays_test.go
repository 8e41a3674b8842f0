package actuators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	on   bool
	fail bool
}

func (f *fakeRelay) On() error {
	if f.fail {
		return errors.New("i/o")
	}
	f.on = true
	return nil
}

func (f *fakeRelay) Off() error {
	if f.fail {
		return errors.New("i/o")
	}
	f.on = false
	return nil
}

func TestRelays_SetOutput(t *testing.T) {
	a, b := &fakeRelay{}, &fakeRelay{}
	r := newRelays(map[string]relay{"25": a, "26": b}, false)

	require.NoError(t, r.SetOutput("25", true))
	assert.True(t, a.on)
	assert.True(t, r.Active("25"))
	assert.False(t, b.on)

	assert.Error(t, r.SetOutput("99", true))
}

func TestRelays_Inverted(t *testing.T) {
	a := &fakeRelay{on: true}
	r := newRelays(map[string]relay{"17": a}, true)

	require.NoError(t, r.SetOutput("17", true))
	assert.False(t, a.on)
	require.NoError(t, r.SetOutput("17", false))
	assert.True(t, a.on)
}

func TestRelays_FailureKeepsState(t *testing.T) {
	a := &fakeRelay{fail: true}
	r := newRelays(map[string]relay{"25": a}, false)
	assert.Error(t, r.SetOutput("25", true))
	assert.False(t, r.Active("25"))
}

func TestRelays_CloseDrivesOff(t *testing.T) {
	a, b := &fakeRelay{}, &fakeRelay{}
	r := newRelays(map[string]relay{"25": a, "33": b}, false)
	require.NoError(t, r.SetOutput("25", true))
	require.NoError(t, r.SetOutput("33", true))

	require.NoError(t, r.Close())
	assert.False(t, a.on)
	assert.False(t, b.on)
}
