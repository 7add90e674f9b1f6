// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation holds the attitude representations shared by both
// streams: unit quaternions, ZYX Euler angles and timestamped samples.
package orientation

import (
	"math"
)

// Pose is the Euler form of an attitude, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

const (
	radToDeg = 180.0 / math.Pi
	degToRad = math.Pi / 180.0
)

// TiltFromAccel computes roll and pitch from accelerometer data only.
// Yaw is 0 because gravity carries no heading information.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func TiltFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * radToDeg,
		Pitch: pitchRad * radToDeg,
		Yaw:   0,
	}
}
