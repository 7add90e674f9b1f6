// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pipeline

import (
	"sync"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
	"github.com/relabs-tech/inertial_viewer/internal/rate"
)

// origin is a stream's session time base: the first timestamp it sees.
type origin struct {
	t   float64
	set bool
}

// of returns the origin, taking ts as the origin if none is set yet.
func (o *origin) of(ts float64) float64 {
	if !o.set {
		o.t, o.set = ts, true
	}
	return o.t
}

// attitudeSlot is a single-value, last-write-wins cache shared between a
// producer and the publisher. seq counts writes so the publisher can tell
// a fresh value from a repeated one. The rate estimator is fed on write.
type attitudeSlot struct {
	mu     sync.Mutex
	clock  origin
	rebase bool
	latest orientation.Attitude
	seq    uint64
	rate   *rate.Estimator
}

func newAttitudeSlot(window int, rebase bool) *attitudeSlot {
	return &attitudeSlot{rate: rate.New(window), rebase: rebase}
}

func (s *attitudeSlot) store(a orientation.Attitude) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rebase {
		a = a.Rebased(s.clock.of(a.Timestamp))
	}
	s.latest = a
	s.seq++
	s.rate.Push(a.Timestamp)
}

// slotView is a consistent copy of a slot.
type slotView struct {
	latest  orientation.Attitude
	seq     uint64
	rate    float64
	hasRate bool
}

func (s *attitudeSlot) load() slotView {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rate.Rate()
	return slotView{latest: s.latest, seq: s.seq, rate: r, hasRate: ok}
}

func (s *attitudeSlot) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock = origin{}
	s.latest = orientation.Attitude{}
	s.seq = 0
	s.rate.Reset()
}

// rawSlot caches the latest raw inertial sample and owns stream B's
// time base.
type rawSlot struct {
	mu     sync.Mutex
	clock  origin
	latest imu.Sample
	seq    uint64
}

// store rebases s onto the session clock and returns the stored copy.
func (r *rawSlot) store(s imu.Sample) imu.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.Timestamp -= r.clock.of(s.Timestamp)
	if s.Mag != nil {
		m := *s.Mag
		s.Mag = &m
	}
	r.latest = s
	r.seq++
	return s
}

func (r *rawSlot) load() (imu.Sample, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.seq
}

func (r *rawSlot) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clock = origin{}
	r.latest = imu.Sample{}
	r.seq = 0
}
