// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion provides the platform motion services the viewer reads
// from: a push stream of fused attitude quaternions plus raw
// accelerometer, gyroscope and magnetometer readings pulled on demand.
package motion

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
)

// ErrUnavailable is returned when a service cannot provide a capability.
var ErrUnavailable = errors.New("motion: capability unavailable")

// ReferenceFrame selects how the platform anchors the yaw of its fused
// attitude.
type ReferenceFrame int

const (
	// ArbitraryZVertical: Z along gravity, yaw relative to where the
	// session started. No magnetometer correction.
	ArbitraryZVertical ReferenceFrame = iota
	// MagneticNorthZVertical: Z along gravity, X towards magnetic north.
	MagneticNorthZVertical
)

func (f ReferenceFrame) String() string {
	switch f {
	case ArbitraryZVertical:
		return "arbitrary"
	case MagneticNorthZVertical:
		return "magnetic_north"
	default:
		return fmt.Sprintf("ReferenceFrame(%d)", int(f))
	}
}

// AttitudeHandler receives a fused unit quaternion and its timestamp in
// monotonic seconds.
type AttitudeHandler func(q quat.Number, ts float64)

// Service is a platform motion service.
//
// StartDeviceMotion begins delivering fused attitude to fn at roughly the
// requested interval until StopDeviceMotion is called. fn may be invoked
// from any goroutine. The raw readers return the latest reading, or false
// when the sensor has produced nothing yet; accelerometer values are in
// m/s², gyroscope in rad/s, magnetometer in µT.
type Service interface {
	StartDeviceMotion(interval time.Duration, frame ReferenceFrame, fn AttitudeHandler) error
	StopDeviceMotion()
	Accelerometer() (imu.Vec3, bool)
	Gyroscope() (imu.Vec3, bool)
	Magnetometer() (imu.Vec3, bool)
	Close() error
}
