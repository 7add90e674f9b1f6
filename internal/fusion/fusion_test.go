package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

const step = 0.01

var gravityZ = imu.Vec3{Z: imu.StandardGravity}

func TestMahonyStationaryStaysLevel(t *testing.T) {
	m := NewMahony(step, step)
	for i := 0; i < 500; i++ {
		m.UpdateGyro(step, imu.Vec3{})
		m.UpdateAccel(step, gravityZ)
	}

	p := orientation.ToEuler(m.Quaternion6D())
	assert.InDelta(t, 0, p.Roll, 1e-9)
	assert.InDelta(t, 0, p.Pitch, 1e-9)
	assert.InDelta(t, 0, p.Yaw, 1e-9)
}

func TestMahonyConvergesToTilt(t *testing.T) {
	// Gravity as seen by a device rolled 30°.
	roll := 30 * math.Pi / 180
	acc := imu.Vec3{Y: imu.StandardGravity * math.Sin(roll), Z: imu.StandardGravity * math.Cos(roll)}

	m := NewMahony(step, step)
	for i := 0; i < 1000; i++ {
		m.UpdateGyro(step, imu.Vec3{})
		m.UpdateAccel(step, acc)
	}

	p := orientation.ToEuler(m.Quaternion6D())
	assert.InDelta(t, 30, p.Roll, 0.5)
	assert.InDelta(t, 0, p.Pitch, 0.5)
	assert.InDelta(t, 1, quat.Abs(m.Quaternion6D()), 1e-9)
}

func TestMahonyIntegratesYawRate(t *testing.T) {
	m := NewMahony(step, step)
	for i := 0; i < 100; i++ {
		m.UpdateGyro(step, imu.Vec3{Z: 1})
		m.UpdateAccel(step, gravityZ)
	}

	p := orientation.ToEuler(m.Quaternion6D())
	assert.InDelta(t, 180/math.Pi, p.Yaw, 0.5)
}

func TestMahonyIgnoresZeroAccel(t *testing.T) {
	m := NewMahony(step, step)
	m.UpdateAccel(step, imu.Vec3{})
	m.UpdateGyro(0, imu.Vec3{})

	assert.Equal(t, orientation.Identity, m.Quaternion6D())
}

type recordingEngine struct {
	calls []string
	steps []float64
	q     quat.Number
}

func (e *recordingEngine) UpdateGyro(step float64, _ imu.Vec3) {
	e.calls = append(e.calls, "gyro")
	e.steps = append(e.steps, step)
}

func (e *recordingEngine) UpdateAccel(step float64, _ imu.Vec3) {
	e.calls = append(e.calls, "accel")
	e.steps = append(e.steps, step)
}

func (e *recordingEngine) Quaternion6D() quat.Number { return e.q }

func TestAdapterFeedsGyroThenAccel(t *testing.T) {
	eng := &recordingEngine{q: orientation.Identity}
	var gotGyro, gotAccel float64
	a := NewAdapter(func(g, acc float64) Engine {
		gotGyro, gotAccel = g, acc
		return eng
	}, 10*time.Millisecond)

	att, ok := a.OnRawSample(imu.Sample{Timestamp: 4.2, Accel: gravityZ})
	require.True(t, ok)

	assert.Equal(t, []string{"gyro", "accel"}, eng.calls)
	assert.Equal(t, []float64{0.01, 0.01}, eng.steps)
	assert.Equal(t, 0.01, gotGyro)
	assert.Equal(t, 0.01, gotAccel)
	assert.Equal(t, 0.01, a.Step())
	assert.Equal(t, 4.2, att.Timestamp)
	assert.Equal(t, orientation.Pose{}, att.Euler)
}

func TestAdapterUsesFixedStepRegardlessOfJitter(t *testing.T) {
	eng := &recordingEngine{q: orientation.Identity}
	a := NewAdapter(func(float64, float64) Engine { return eng }, 10*time.Millisecond)

	for _, ts := range []float64{0, 0.013, 0.019, 0.041} {
		_, ok := a.OnRawSample(imu.Sample{Timestamp: ts})
		require.True(t, ok)
	}
	for _, s := range eng.steps {
		assert.Equal(t, 0.01, s)
	}
}

func TestAdapterDropsNonFiniteQuaternion(t *testing.T) {
	eng := &recordingEngine{q: quat.Number{Real: math.NaN()}}
	a := NewAdapter(func(float64, float64) Engine { return eng }, 10*time.Millisecond)

	_, ok := a.OnRawSample(imu.Sample{Timestamp: 1})
	assert.False(t, ok)
}

func TestAdapterDefaultsToMahony(t *testing.T) {
	a := NewAdapter(nil, 10*time.Millisecond)
	_, isMahony := a.engine.(*Mahony)
	assert.True(t, isMahony)
}
