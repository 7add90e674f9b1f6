// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
)

// toBody expresses the world vector v in the body frame of attitude q.
func toBody(q quat.Number, v imu.Vec3) imu.Vec3 {
	p := quat.Mul(quat.Mul(quat.Conj(q), quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), q)
	return imu.Vec3{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// bodyRate returns the body angular velocity in rad/s that carries q0 to
// q1 over dt seconds.
func bodyRate(q0, q1 quat.Number, dt float64) imu.Vec3 {
	dq := quat.Scale(1/dt, quat.Sub(q1, q0))
	w := quat.Scale(2, quat.Mul(quat.Conj(q0), dq))
	return imu.Vec3{X: w.Imag, Y: w.Jmag, Z: w.Kmag}
}
