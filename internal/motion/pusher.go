// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"sync"
	"time"
)

// pusher runs one ticker goroutine at a time for services that poll a
// source and push attitude to a handler.
type pusher struct {
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// start replaces any running loop with one calling tick every interval.
func (p *pusher) start(interval time.Duration, tick func()) {
	p.halt()

	p.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	p.stop, p.done = stop, done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
}

// halt stops the loop and waits for an in-flight tick to return.
func (p *pusher) halt() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
