// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

// Simulator is a Service that moves a virtual device through smooth,
// repeatable motion. Raw readings are derived from the same trajectory as
// the fused attitude, so both streams agree up to the fusion engine's error.
type Simulator struct {
	start   time.Time
	now     func() time.Time
	heading float64  // degrees from magnetic north at t=0
	field   imu.Vec3 // earth field in the world frame, µT
	push    pusher
}

// NewSimulator creates a simulator whose clock starts now.
func NewSimulator() *Simulator {
	return &Simulator{
		start:   time.Now(),
		now:     time.Now,
		heading: 35,
		field:   imu.Vec3{X: 20, Y: 0, Z: -40},
	}
}

// pose is the trajectory in the arbitrary frame, in degrees.
func (s *Simulator) pose(t float64) orientation.Pose {
	return orientation.Pose{
		Roll:  20 * math.Sin(t),
		Pitch: 15 * math.Sin(t*0.7),
		Yaw:   30 * math.Sin(t*0.3),
	}
}

func (s *Simulator) attitude(t float64, frame ReferenceFrame) quat.Number {
	p := s.pose(t)
	if frame == MagneticNorthZVertical {
		p.Yaw += s.heading
	}
	return orientation.FromEuler(p)
}

func (s *Simulator) elapsed() float64 {
	return s.now().Sub(s.start).Seconds()
}

// StartDeviceMotion pushes attitude samples from a ticker goroutine. A
// previous stream is stopped first.
func (s *Simulator) StartDeviceMotion(interval time.Duration, frame ReferenceFrame, fn AttitudeHandler) error {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	s.push.start(interval, func() {
		t := s.elapsed()
		fn(s.attitude(t, frame), t)
	})
	log.Printf("simulator: device motion started (interval=%s frame=%s)", interval, frame)
	return nil
}

// StopDeviceMotion stops the attitude goroutine and waits for it to exit.
func (s *Simulator) StopDeviceMotion() {
	s.push.halt()
}

// Accelerometer returns the specific force of a device at rest: gravity
// reaction along the world Z axis, in body coordinates.
func (s *Simulator) Accelerometer() (imu.Vec3, bool) {
	q := s.attitude(s.elapsed(), MagneticNorthZVertical)
	return toBody(q, imu.Vec3{Z: imu.StandardGravity}), true
}

// Gyroscope differentiates the trajectory over one millisecond.
func (s *Simulator) Gyroscope() (imu.Vec3, bool) {
	const h = 1e-3
	t := s.elapsed()
	return bodyRate(s.attitude(t, MagneticNorthZVertical), s.attitude(t+h, MagneticNorthZVertical), h), true
}

// Magnetometer returns the earth field in body coordinates.
func (s *Simulator) Magnetometer() (imu.Vec3, bool) {
	q := s.attitude(s.elapsed(), MagneticNorthZVertical)
	return toBody(q, s.field), true
}

// Close stops any running stream.
func (s *Simulator) Close() error {
	s.StopDeviceMotion()
	return nil
}
