// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fusion drives a 6-axis orientation filter from raw inertial
// samples at a fixed step.
package fusion

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
)

// Engine is an orientation filter fed one gyro and one accel reading per
// step. The pipeline treats it as opaque.
type Engine interface {
	UpdateGyro(step float64, gyro imu.Vec3)
	UpdateAccel(step float64, accel imu.Vec3)
	Quaternion6D() quat.Number
}

// EngineFactory builds an engine for the given gyro and accel step sizes
// in seconds. Engines expose no reset, so a new one is built per session.
type EngineFactory func(gyroStep, accelStep float64) Engine
