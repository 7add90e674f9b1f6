// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "math"

// Raw is a single sample in sensor counts, as read off the bus.
type Raw struct {
	Source string `json:"source"`

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Scale holds the sensitivities used to turn counts into SI units.
type Scale struct {
	AccelLSBPerG  float64 // e.g. 16384 at ±2g
	GyroLSBPerDPS float64 // e.g. 131 at ±250°/s
}

// Sample converts r to SI units and stamps it with ts.
func (r Raw) Sample(ts float64, s Scale) Sample {
	a := StandardGravity / s.AccelLSBPerG
	g := (math.Pi / 180) / s.GyroLSBPerDPS
	return Sample{
		Source:    r.Source,
		Timestamp: ts,
		Accel:     Vec3{X: float64(r.Ax) * a, Y: float64(r.Ay) * a, Z: float64(r.Az) * a},
		Gyro:      Vec3{X: float64(r.Gx) * g, Y: float64(r.Gy) * g, Z: float64(r.Gz) * g},
	}
}
