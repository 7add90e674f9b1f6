// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"log"
	"sync"
	"time"
)

// errorLog reports read errors of a polled sensor without flooding the
// log: the first error of a failure run is logged, then at most one line
// per interval with the count of errors in between, and one line when
// reads recover.
type errorLog struct {
	name     string
	interval time.Duration
	now      func() time.Time
	logf     func(format string, args ...any)

	mu         sync.Mutex
	failing    bool
	last       time.Time
	suppressed int
	total      int
}

func newErrorLog(name string, interval time.Duration) *errorLog {
	return &errorLog{name: name, interval: interval, now: time.Now, logf: log.Printf}
}

func (e *errorLog) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.total++
	switch {
	case !e.failing:
		e.failing = true
		e.last, e.suppressed = now, 0
		e.logf("%s: read error: %v", e.name, err)
	case now.Sub(e.last) >= e.interval:
		e.logf("%s: read error: %v (%d more since last report)", e.name, err, e.suppressed)
		e.last, e.suppressed = now, 0
	default:
		e.suppressed++
	}
}

func (e *errorLog) ok() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.failing {
		return
	}
	e.logf("%s: reads recovered after %d errors", e.name, e.total)
	e.failing, e.suppressed, e.total = false, 0, 0
}
