// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package history keeps the trailing time window of attitude samples shown
// on the charts.
package history

import (
	"time"

	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

// DefaultRetention is how far back a window reaches behind its newest sample.
const DefaultRetention = 10 * time.Second

// Window is an append-only, time-ordered buffer that drops samples older
// than the newest timestamp minus the retention. A window has exactly one
// writer and is not safe for concurrent use.
type Window struct {
	retention float64 // seconds
	buf       []orientation.Attitude
	start     int // index of the oldest retained sample in buf
}

// New returns an empty window. A non-positive retention uses DefaultRetention.
func New(retention time.Duration) *Window {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Window{retention: retention.Seconds()}
}

// Append adds a to the back and evicts every front sample with
// timestamp < a.Timestamp - retention. Samples exactly on the boundary
// are kept.
func (w *Window) Append(a orientation.Attitude) {
	w.buf = append(w.buf, a)

	cutoff := a.Timestamp - w.retention
	for w.start < len(w.buf) && w.buf[w.start].Timestamp < cutoff {
		w.buf[w.start] = orientation.Attitude{}
		w.start++
	}

	// Reclaim the evicted prefix once it dominates the backing array so
	// memory stays proportional to the retained span.
	if w.start > 0 && w.start >= len(w.buf)/2 {
		n := copy(w.buf, w.buf[w.start:])
		w.buf = w.buf[:n]
		w.start = 0
	}
}

// Samples returns a copy of the retained samples, oldest first.
func (w *Window) Samples() []orientation.Attitude {
	out := make([]orientation.Attitude, len(w.buf)-w.start)
	copy(out, w.buf[w.start:])
	return out
}

// Len returns the number of retained samples.
func (w *Window) Len() int {
	return len(w.buf) - w.start
}

// Newest returns the most recently appended sample.
func (w *Window) Newest() (orientation.Attitude, bool) {
	if w.Len() == 0 {
		return orientation.Attitude{}, false
	}
	return w.buf[len(w.buf)-1], true
}

// Retention returns the configured window span.
func (w *Window) Retention() time.Duration {
	return time.Duration(w.retention * float64(time.Second))
}

// Reset drops every sample.
func (w *Window) Reset() {
	w.buf = w.buf[:0]
	w.start = 0
}
