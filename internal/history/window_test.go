package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

func sampleAt(ts float64) orientation.Attitude {
	return orientation.NewAttitude(ts, orientation.Identity)
}

func timestamps(w *Window) []float64 {
	var out []float64
	for _, s := range w.Samples() {
		out = append(out, s.Timestamp)
	}
	return out
}

func TestAppendKeepsTrailingTenSeconds(t *testing.T) {
	w := New(10 * time.Second)
	for i := 0; i <= 15; i++ {
		w.Append(sampleAt(float64(i)))
	}

	// 15-10 = 5 ties the cutoff and is retained; 0..4 fall below it.
	assert.Equal(t, []float64{5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, timestamps(w))
	assert.Equal(t, 11, w.Len())

	w.Append(sampleAt(15.5))
	assert.Equal(t, []float64{6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 15.5}, timestamps(w))
}

func TestAppendBoundaryIsInclusive(t *testing.T) {
	w := New(10 * time.Second)
	w.Append(sampleAt(0))
	w.Append(sampleAt(10))
	assert.Equal(t, []float64{0, 10}, timestamps(w))

	w.Append(sampleAt(10.000001))
	assert.Equal(t, []float64{10, 10.000001}, timestamps(w))
}

func TestAppendBoundedAtHighRate(t *testing.T) {
	w := New(time.Second)

	// 100 Hz for 30 s: never more than 101 samples retained.
	for i := 0; i < 3000; i++ {
		w.Append(sampleAt(float64(i) * 0.01))
		require.LessOrEqual(t, w.Len(), 101)
	}
	assert.LessOrEqual(t, cap(w.buf), 4*101)

	newest, ok := w.Newest()
	require.True(t, ok)
	assert.InDelta(t, 29.99, newest.Timestamp, 1e-9)
}

func TestSamplesIsACopy(t *testing.T) {
	w := New(0)
	w.Append(sampleAt(1))

	got := w.Samples()
	got[0] = sampleAt(99)

	assert.Equal(t, []float64{1}, timestamps(w))
	assert.Equal(t, DefaultRetention, w.Retention())
}

func TestReset(t *testing.T) {
	w := New(10 * time.Second)
	w.Append(sampleAt(1))
	w.Append(sampleAt(2))
	w.Reset()

	assert.Zero(t, w.Len())
	assert.Empty(t, w.Samples())
	_, ok := w.Newest()
	assert.False(t, ok)
}
