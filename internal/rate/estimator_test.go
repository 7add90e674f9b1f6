package rate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateUnavailable(t *testing.T) {
	e := New(DefaultWindow)

	_, ok := e.Rate()
	assert.False(t, ok, "empty estimator")

	e.Push(3.0)
	_, ok = e.Rate()
	assert.False(t, ok, "single timestamp")
	assert.Equal(t, 1, e.Count())
}

func TestRateAt100Hz(t *testing.T) {
	e := New(DefaultWindow)
	for i := 0; i < 50; i++ {
		e.Push(0.01 * float64(i))
	}

	r, ok := e.Rate()
	require.True(t, ok)
	assert.InDelta(t, 100.0, r, 1e-6)
	assert.Equal(t, 50, e.Count())
}

func TestRateEvictsOldest(t *testing.T) {
	e := New(5)

	// A slow start followed by a fast burst: only the burst is in the window.
	e.Push(0)
	e.Push(1)
	for i := 0; i < 5; i++ {
		e.Push(10 + 0.02*float64(i))
	}

	r, ok := e.Rate()
	require.True(t, ok)
	assert.Equal(t, 5, e.Count())
	assert.InDelta(t, 50.0, r, 1e-6)
}

func TestRateZeroSpan(t *testing.T) {
	e := New(DefaultWindow)
	e.Push(1)
	e.Push(1)

	_, ok := e.Rate()
	assert.False(t, ok)
}

func TestRateReset(t *testing.T) {
	e := New(DefaultWindow)
	e.Push(0)
	e.Push(0.1)
	e.Reset()

	_, ok := e.Rate()
	assert.False(t, ok)
	assert.Zero(t, e.Count())
	assert.Equal(t, DefaultWindow, e.Capacity())
}

func TestNewMinimumCapacity(t *testing.T) {
	e := New(0)
	assert.Equal(t, 2, e.Capacity())

	e.Push(0)
	e.Push(0.5)
	r, ok := e.Rate()
	require.True(t, ok)
	assert.InDelta(t, 2.0, r, 1e-12)
}
