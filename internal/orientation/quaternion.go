// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Identity is the quaternion of no rotation.
var Identity = quat.Number{Real: 1}

// ToEuler converts a unit quaternion (w,x,y,z) into intrinsic Z-Y-X
// (yaw-pitch-roll) angles in degrees:
//
//	roll  = atan2(2(wx+yz), 1-2(x²+y²))
//	pitch = asin(clamp(2(wy-zx), -1, 1))
//	yaw   = atan2(2(wz+xy), 1-2(y²+z²))
//
// The asin argument is clamped so rounding near ±90° pitch yields ±90
// instead of NaN. No normalization is performed.
func ToEuler(q quat.Number) Pose {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	pitch := math.Asin(clamp(2*(w*y-z*x), -1, 1))
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return Pose{
		Roll:  roll * radToDeg,
		Pitch: pitch * radToDeg,
		Yaw:   yaw * radToDeg,
	}
}

// FromEuler builds the unit quaternion for ZYX angles given in degrees.
// It is the inverse of ToEuler away from gimbal lock.
func FromEuler(p Pose) quat.Number {
	cr, sr := math.Cos(p.Roll*degToRad/2), math.Sin(p.Roll*degToRad/2)
	cp, sp := math.Cos(p.Pitch*degToRad/2), math.Sin(p.Pitch*degToRad/2)
	cy, sy := math.Cos(p.Yaw*degToRad/2), math.Sin(p.Yaw*degToRad/2)

	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// Normalize scales q to unit norm. It reports false when q is zero or
// not finite, in which case the identity is returned.
func Normalize(q quat.Number) (quat.Number, bool) {
	if !IsFinite(q) {
		return Identity, false
	}
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity, false
	}
	return quat.Scale(1/n, q), true
}

// IsFinite reports whether every component of q is a finite number.
func IsFinite(q quat.Number) bool {
	return !quat.IsNaN(q) && !quat.IsInf(q)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
