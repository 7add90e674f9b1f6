package pipeline

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/fusion"
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

func stationary(ts float64) imu.Sample {
	return imu.Sample{Timestamp: ts, Accel: imu.Vec3{Z: imu.StandardGravity}}
}

func newCollecting(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p := New(cfg)
	p.Reset("test-session", DeviceMotion9D)
	p.SetCollecting(true)
	return p
}

func TestProducersIgnoredWhenNotCollecting(t *testing.T) {
	p := New(Config{})
	p.OnPlatformAttitude(orientation.Identity, 1)
	p.OnRawInertial(stationary(1))

	snap := p.PublishTick()
	assert.Nil(t, snap.Platform.Latest)
	assert.Nil(t, snap.Fused.Latest)
	assert.Nil(t, snap.Raw)
	assert.Empty(t, snap.Platform.History)
	assert.Nil(t, snap.Platform.Rate)
}

func TestEndToEndStationaryDevice(t *testing.T) {
	var delivered []Snapshot
	p := newCollecting(t, Config{Sink: SinkFunc(func(s Snapshot) { delivered = append(delivered, s) })})

	// 100 raw samples at 10 ms, publish ticks at 30 Hz over the same second.
	const publishPeriod = 1.0 / 30
	nextTick := publishPeriod
	ticks := 0
	for i := 0; i < 100; i++ {
		ts := 100 + 0.01*float64(i)
		p.OnRawInertial(stationary(ts))
		for ts-100 >= nextTick {
			p.PublishTick()
			nextTick += publishPeriod
			ticks++
		}
	}
	snap := p.PublishTick()
	ticks++

	require.Len(t, delivered, ticks)
	assert.Equal(t, snap, delivered[len(delivered)-1])
	assert.Equal(t, "test-session", snap.Session)
	assert.Equal(t, "device_motion_9d", snap.Source)
	assert.Equal(t, uint64(ticks), snap.Sequence)

	require.NotNil(t, snap.Fused.Rate)
	assert.InDelta(t, 100.0, *snap.Fused.Rate, 1e-6)
	assert.Equal(t, uint64(100), snap.Fused.Samples)
	assert.Nil(t, snap.Platform.Rate, "stream A never produced")

	n := len(snap.Fused.History)
	assert.Positive(t, n)
	assert.LessOrEqual(t, n, 100)
	assert.LessOrEqual(t, n, ticks)

	require.NotNil(t, snap.Fused.Latest)
	assert.InDelta(t, 0.99, snap.Fused.Latest.Timestamp, 1e-9, "rebased to the session origin")
	assert.InDelta(t, 0, snap.Fused.Latest.Euler.Roll, 1e-6)
	assert.InDelta(t, 0, snap.Fused.Latest.Euler.Pitch, 1e-6)

	require.NotNil(t, snap.Raw)
	assert.InDelta(t, 0.99, snap.Raw.Timestamp, 1e-9)
}

func TestHistoryBoundedByRetention(t *testing.T) {
	p := newCollecting(t, Config{Retention: time.Second})

	for i := 0; i < 500; i++ {
		p.OnRawInertial(stationary(0.01 * float64(i)))
		p.PublishTick()
	}

	snap, ok := p.Last()
	require.True(t, ok)
	assert.LessOrEqual(t, len(snap.Fused.History), 101)
	first := snap.Fused.History[0].Timestamp
	last := snap.Fused.History[len(snap.Fused.History)-1].Timestamp
	assert.LessOrEqual(t, last-first, 1.0+1e-9)
}

func TestPublishTickRepeatsStaleValues(t *testing.T) {
	p := newCollecting(t, Config{})

	h := math.Sqrt(0.5)
	p.OnPlatformAttitude(quat.Number{Real: h, Imag: h}, 50)
	p.OnPlatformAttitude(orientation.Identity, 50.01)

	first := p.PublishTick()
	second := p.PublishTick()

	require.NotNil(t, second.Platform.Latest)
	if diff := cmp.Diff(first.Platform, second.Platform); diff != "" {
		t.Errorf("stale stream changed between ticks (-first +second):\n%s", diff)
	}
	assert.Len(t, second.Platform.History, 1, "no append without a new sample")
	assert.InDelta(t, 0.01, second.Platform.Latest.Timestamp, 1e-9)
	assert.Equal(t, uint64(2), second.Platform.Samples)

	require.NotNil(t, second.Platform.Rate)
	assert.InDelta(t, 100, *second.Platform.Rate, 1e-6)
}

func TestNonFiniteSamplesAreDropped(t *testing.T) {
	nan := quat.Number{Real: math.NaN()}
	p := newCollecting(t, Config{EngineFactory: func(float64, float64) fusion.Engine {
		return constEngine(nan)
	}})

	p.OnPlatformAttitude(orientation.Identity, 1)
	p.OnPlatformAttitude(nan, 1.01)
	p.OnRawInertial(stationary(1))

	snap := p.PublishTick()
	require.NotNil(t, snap.Platform.Latest)
	assert.Equal(t, orientation.Quaternion{W: 1}, snap.Platform.Latest.Quaternion)
	assert.Equal(t, uint64(1), snap.Platform.Samples)

	assert.Nil(t, snap.Fused.Latest)
	assert.Empty(t, snap.Fused.History)
	assert.NotNil(t, snap.Raw, "raw sample is still cached")
}

type constEngine quat.Number

func (constEngine) UpdateGyro(float64, imu.Vec3)  {}
func (constEngine) UpdateAccel(float64, imu.Vec3) {}
func (e constEngine) Quaternion6D() quat.Number   { return quat.Number(e) }

func TestResetClearsSession(t *testing.T) {
	p := newCollecting(t, Config{})
	p.OnPlatformAttitude(orientation.Identity, 10)
	p.OnPlatformAttitude(orientation.Identity, 10.5)
	p.OnRawInertial(stationary(10))
	p.PublishTick()

	p.SetCollecting(false)
	p.Reset("second", GameRotation)
	p.SetCollecting(true)

	_, ok := p.Last()
	assert.False(t, ok)

	p.OnPlatformAttitude(orientation.Identity, 99)
	snap := p.PublishTick()
	assert.Equal(t, "second", snap.Session)
	assert.Equal(t, "game_rotation", snap.Source)
	assert.Equal(t, uint64(1), snap.Sequence)
	require.Len(t, snap.Platform.History, 1)
	assert.Equal(t, 0.0, snap.Platform.History[0].Timestamp, "new origin")
	assert.Nil(t, snap.Platform.Rate)
	assert.Nil(t, snap.Raw)
}

func TestCompactDropsHistory(t *testing.T) {
	p := newCollecting(t, Config{})
	p.OnPlatformAttitude(orientation.Identity, 1)
	snap := p.PublishTick()

	c := snap.Compact()
	assert.Nil(t, c.Platform.History)
	assert.Equal(t, snap.Platform.Latest, c.Platform.Latest)
	assert.Len(t, snap.Platform.History, 1)
}

func TestConcurrentProducersAndPublisher(t *testing.T) {
	p := newCollecting(t, Config{})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			p.OnPlatformAttitude(orientation.Identity, float64(i)*0.01)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			p.OnRawInertial(stationary(float64(i) * 0.01))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 300; i++ {
			snap := p.PublishTick()
			if snap.Fused.Latest != nil {
				assert.InDelta(t, 1, quat.Abs(snap.Fused.Latest.Number()), 1e-9)
			}
		}
	}()
	wg.Wait()

	p.SetCollecting(false)
	p.OnPlatformAttitude(orientation.Identity, 100)
	snap := p.PublishTick()
	assert.Equal(t, uint64(1000), snap.Platform.Samples)
	assert.Equal(t, uint64(1000), snap.Fused.Samples)
}

func TestMultiSink(t *testing.T) {
	var a, b int
	sink := MultiSink{
		SinkFunc(func(Snapshot) { a++ }),
		SinkFunc(func(Snapshot) { b++ }),
	}
	p := New(Config{Sink: sink})
	p.PublishTick()
	p.PublishTick()
	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)
}
