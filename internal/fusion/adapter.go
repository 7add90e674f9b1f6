// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"time"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

// Adapter steps an Engine once per raw sample with a fixed step size and
// turns its output into attitude samples. It is owned by a single goroutine.
//
// The step is the nominal raw-sensor period, not the measured interval
// between samples, so timer jitter is not fed into the filter.
type Adapter struct {
	engine Engine
	step   float64
}

// NewAdapter builds a fresh engine from factory for the given step.
// A nil factory uses NewMahony.
func NewAdapter(factory EngineFactory, step time.Duration) *Adapter {
	if factory == nil {
		factory = NewMahony
	}
	s := step.Seconds()
	return &Adapter{engine: factory(s, s), step: s}
}

// OnRawSample feeds gyro then accel into the engine and reads back the
// fused quaternion stamped with the sample's timestamp. It reports false
// when the engine returns a non-finite quaternion; the caller keeps its
// previous value in that case.
func (a *Adapter) OnRawSample(s imu.Sample) (orientation.Attitude, bool) {
	a.engine.UpdateGyro(a.step, s.Gyro)
	a.engine.UpdateAccel(a.step, s.Accel)

	q := a.engine.Quaternion6D()
	if !orientation.IsFinite(q) {
		return orientation.Attitude{}, false
	}
	return orientation.NewAttitude(s.Timestamp, q), true
}

// Step returns the fixed step in seconds.
func (a *Adapter) Step() float64 {
	return a.step
}
