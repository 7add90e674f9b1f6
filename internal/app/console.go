// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/inertial_viewer/internal/pipeline"
)

// ConsoleSink logs a one-line summary of both streams at most once per
// interval. It is a pipeline.Sink and is only called from the publish loop.
type ConsoleSink struct {
	logger   *log.Logger
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

// NewConsoleSink logs to logger, or the standard logger when nil.
func NewConsoleSink(logger *log.Logger, interval time.Duration) *ConsoleSink {
	if logger == nil {
		logger = log.Default()
	}
	return &ConsoleSink{logger: logger, interval: interval, now: time.Now}
}

// Publish logs s unless the previous line is younger than the interval.
func (c *ConsoleSink) Publish(s pipeline.Snapshot) {
	now := c.now()
	if !c.last.IsZero() && now.Sub(c.last) < c.interval {
		return
	}
	c.last = now
	c.logger.Printf("viewer: #%d %s  [A] %s  [B] %s", s.Sequence, s.Source, formatStream(s.Platform), formatStream(s.Fused))
}

func formatStream(st pipeline.StreamState) string {
	rate := "--"
	if st.Rate != nil {
		rate = fmt.Sprintf("%.1fHz", *st.Rate)
	}
	if st.Latest == nil {
		return "waiting " + rate
	}
	e := st.Latest.Euler
	return fmt.Sprintf("ROLL=%6.2f PITCH=%6.2f YAW=%7.2f %s", e.Roll, e.Pitch, e.Yaw, rate)
}
