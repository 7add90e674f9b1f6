// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package rate estimates the actual sampling rate of a stream from the
// timestamps of its most recent samples.
package rate

// DefaultWindow is the number of timestamps averaged over.
const DefaultWindow = 50

// Estimator keeps the last N timestamps in a fixed ring. It is not safe
// for concurrent use.
type Estimator struct {
	times []float64
	head  int // next write position
	size  int
}

// New returns an estimator over the last capacity timestamps. A capacity
// below 2 is raised to 2, the minimum that yields a rate.
func New(capacity int) *Estimator {
	if capacity < 2 {
		capacity = 2
	}
	return &Estimator{times: make([]float64, capacity)}
}

// Push records a sample timestamp in seconds, evicting the oldest one when
// the window is full. Timestamps are expected to be non-decreasing.
func (e *Estimator) Push(ts float64) {
	e.times[e.head] = ts
	e.head = (e.head + 1) % len(e.times)
	if e.size < len(e.times) {
		e.size++
	}
}

// Rate returns (count-1)/(newest-oldest) in Hz. It reports false until two
// samples spanning a non-zero interval have been pushed.
func (e *Estimator) Rate() (float64, bool) {
	if e.size < 2 {
		return 0, false
	}
	span := e.newest() - e.oldest()
	if span == 0 {
		return 0, false
	}
	return float64(e.size-1) / span, true
}

// Count returns the number of timestamps currently held.
func (e *Estimator) Count() int {
	return e.size
}

// Capacity returns the window size.
func (e *Estimator) Capacity() int {
	return len(e.times)
}

// Reset forgets all timestamps.
func (e *Estimator) Reset() {
	e.head = 0
	e.size = 0
}

func (e *Estimator) oldest() float64 {
	return e.times[(e.head-e.size+len(e.times))%len(e.times)]
}

func (e *Estimator) newest() float64 {
	return e.times[(e.head-1+len(e.times))%len(e.times)]
}
