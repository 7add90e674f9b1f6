// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "math"

// StandardGravity converts accelerometer readings reported in g to m/s².
const StandardGravity = 9.81

// Vec3 is a 3-axis reading.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scale returns v multiplied by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// AccelFromG converts an accelerometer reading in g to m/s².
func AccelFromG(g Vec3) Vec3 {
	return g.Scale(StandardGravity)
}

// Sample is one raw inertial reading in SI units.
type Sample struct {
	Source    string  `json:"source,omitempty"`
	Timestamp float64 `json:"t"`     // monotonic seconds
	Accel     Vec3    `json:"accel"` // m/s²
	Gyro      Vec3    `json:"gyro"`  // rad/s
	Mag       *Vec3   `json:"mag,omitempty"`
}
