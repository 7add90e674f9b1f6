// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"gonum.org/v1/gonum/num/quat"
)

// Attitude is one timestamped orientation estimate. Timestamp is in
// seconds on a monotonic clock. Values are never mutated after NewAttitude.
type Attitude struct {
	Timestamp  float64    `json:"t"`
	Quaternion Quaternion `json:"q"`
	Euler      Pose       `json:"euler"`
}

// Quaternion is the JSON form of a quat.Number, scalar first.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewAttitude stamps q and derives its Euler angles.
func NewAttitude(ts float64, q quat.Number) Attitude {
	return Attitude{
		Timestamp:  ts,
		Quaternion: Quaternion{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag},
		Euler:      ToEuler(q),
	}
}

// Number returns the attitude quaternion as a gonum quaternion.
func (a Attitude) Number() quat.Number {
	return quat.Number{Real: a.Quaternion.W, Imag: a.Quaternion.X, Jmag: a.Quaternion.Y, Kmag: a.Quaternion.Z}
}

// Rebased returns a copy of a with origin subtracted from its timestamp.
func (a Attitude) Rebased(origin float64) Attitude {
	a.Timestamp -= origin
	return a
}
