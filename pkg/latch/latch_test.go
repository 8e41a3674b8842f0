package latch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatch_Edges(t *testing.T) {
	l := New()

	seq := []struct {
		cond bool
		want Edge
	}{
		{false, None},
		{true, Rising},
		{true, None},
		{true, None},
		{false, Falling},
		{false, None},
		{true, Rising},
	}
	for i, s := range seq {
		assert.Equal(t, s.want, l.Update(s.cond), "step %d", i)
		assert.Equal(t, s.cond, l.Active(), "step %d", i)
	}
}

func TestLatch_ZeroValueIsInactive(t *testing.T) {
	var l Latch
	assert.False(t, l.Active())
	assert.Equal(t, None, l.Update(false))
	assert.Equal(t, Rising, l.Update(true))
}

func TestEdge_String(t *testing.T) {
	assert.Equal(t, "rising", Rising.String())
	assert.Equal(t, "falling", Falling.String())
	assert.Equal(t, "none", None.String())
}
