// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

const (
	defaultKp = 2.0
	defaultKi = 0.01
)

// Mahony is a quaternion complementary filter: gyro rates are integrated
// and the accelerometer's gravity direction feeds back a PI correction.
// The correction computed by UpdateAccel is applied on the next UpdateGyro.
type Mahony struct {
	q        quat.Number
	kp, ki   float64
	err      imu.Vec3 // latest accel error, rad
	integral imu.Vec3 // integrated error, rad/s

	gyroStep, accelStep float64
}

// NewMahony returns a filter at identity with the default gains.
func NewMahony(gyroStep, accelStep float64) Engine {
	return &Mahony{
		q:         orientation.Identity,
		kp:        defaultKp,
		ki:        defaultKi,
		gyroStep:  gyroStep,
		accelStep: accelStep,
	}
}

// SetGains overrides the proportional and integral feedback gains.
func (m *Mahony) SetGains(kp, ki float64) {
	m.kp, m.ki = kp, ki
}

// UpdateGyro integrates the corrected body rate over step seconds. A
// non-positive step falls back to the configured gyro step.
func (m *Mahony) UpdateGyro(step float64, gyro imu.Vec3) {
	if step <= 0 {
		step = m.gyroStep
	}

	w := quat.Number{
		Imag: gyro.X + m.kp*m.err.X + m.integral.X,
		Jmag: gyro.Y + m.kp*m.err.Y + m.integral.Y,
		Kmag: gyro.Z + m.kp*m.err.Z + m.integral.Z,
	}
	m.err = imu.Vec3{}

	// q̇ = ½ q ⊗ ω
	dq := quat.Scale(0.5*step, quat.Mul(m.q, w))
	q, ok := orientation.Normalize(quat.Add(m.q, dq))
	if !ok {
		return
	}
	m.q = q
}

// UpdateAccel compares the measured gravity direction with the one
// predicted by the current estimate. Readings of zero norm are ignored.
func (m *Mahony) UpdateAccel(step float64, accel imu.Vec3) {
	if step <= 0 {
		step = m.accelStep
	}
	n := accel.Norm()
	if n == 0 {
		return
	}
	a := accel.Scale(1 / n)

	w, x, y, z := m.q.Real, m.q.Imag, m.q.Jmag, m.q.Kmag
	v := imu.Vec3{
		X: 2 * (x*z - w*y),
		Y: 2 * (w*x + y*z),
		Z: w*w - x*x - y*y + z*z,
	}

	// e = a × v
	m.err = imu.Vec3{
		X: a.Y*v.Z - a.Z*v.Y,
		Y: a.Z*v.X - a.X*v.Z,
		Z: a.X*v.Y - a.Y*v.X,
	}
	if m.ki > 0 {
		m.integral.X += m.ki * m.err.X * step
		m.integral.Y += m.ki * m.err.Y * step
		m.integral.Z += m.ki * m.err.Z * step
	}
}

// Quaternion6D returns the current estimate.
func (m *Mahony) Quaternion6D() quat.Number {
	return m.q
}
