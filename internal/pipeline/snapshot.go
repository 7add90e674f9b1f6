// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pipeline

import (
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

// StreamState is what the consumer sees of one attitude stream.
type StreamState struct {
	Latest  *orientation.Attitude  `json:"latest,omitempty"`
	History []orientation.Attitude `json:"history"`
	Rate    *float64               `json:"rate_hz,omitempty"` // nil until two samples have arrived
	Samples uint64                 `json:"samples"`           // writes since session start
}

// Snapshot is the consolidated state emitted once per publish tick.
// Stream A is the platform attitude, stream B the fused raw sensors.
type Snapshot struct {
	Session  string      `json:"session"`
	Sequence uint64      `json:"seq"`
	Source   string      `json:"source"`
	Platform StreamState `json:"platform"`
	Fused    StreamState `json:"fused"`
	Raw      *imu.Sample `json:"raw,omitempty"`
}

// Compact returns s without the history slices, for consumers that only
// need the latest values.
func (s Snapshot) Compact() Snapshot {
	s.Platform.History = nil
	s.Fused.History = nil
	return s
}

// Sink receives every published snapshot on the publish goroutine.
// Implementations must not block.
type Sink interface {
	Publish(Snapshot)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Snapshot)

// Publish calls f(s).
func (f SinkFunc) Publish(s Snapshot) { f(s) }

// MultiSink fans a snapshot out to several sinks in order.
type MultiSink []Sink

// Publish forwards s to every sink.
func (m MultiSink) Publish(s Snapshot) {
	for _, sink := range m {
		sink.Publish(s)
	}
}
