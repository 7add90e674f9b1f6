// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/inertial_viewer/internal/fusion"
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/motion"
)

// State is the controller lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Options configures a Controller. Zero values take the defaults noted.
type Options struct {
	Source          Source
	RawStep         time.Duration // 10ms
	PublishInterval time.Duration // 1/30 s
	MotionInterval  time.Duration // 5ms, twice the wanted rate as platforms under-deliver
	Retention       time.Duration // 10s
	RateWindow      int           // 50
	EngineFactory   fusion.EngineFactory
	Sink            Sink
	Now             func() time.Time
}

func (o *Options) applyDefaults() {
	if o.RawStep <= 0 {
		o.RawStep = 10 * time.Millisecond
	}
	if o.PublishInterval <= 0 {
		o.PublishInterval = time.Second / 30
	}
	if o.MotionInterval <= 0 {
		o.MotionInterval = 5 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Controller owns the session lifecycle: it starts and stops the stream A
// device-motion subscription, the stream B raw sampling loop and the
// publish loop together.
type Controller struct {
	svc  motion.Service
	opts Options
	pipe *Pipeline

	mu      sync.Mutex
	state   State
	source  Source
	session string
	epoch   time.Time
	cancel  context.CancelFunc
	gen     uint64 // bumped on every Start
	wg      sync.WaitGroup
}

// NewController builds an idle controller reading from svc.
func NewController(svc motion.Service, opts Options) *Controller {
	opts.applyDefaults()
	return &Controller{
		svc:    svc,
		opts:   opts,
		source: opts.Source,
		pipe: New(Config{
			RawStep:       opts.RawStep,
			Retention:     opts.Retention,
			RateWindow:    opts.RateWindow,
			EngineFactory: opts.EngineFactory,
			Sink:          opts.Sink,
		}),
	}
}

// Start begins a new session. It is a no-op while running. Otherwise the
// device-motion subscription is opened, then the histories, rate
// estimators and time origins are cleared, a fresh fusion engine is built
// and the raw and publish loops are started. A failed start leaves the
// previous session's data in place. Cancelling ctx ends the session as
// Stop would.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running {
		return nil
	}

	if err := c.svc.StartDeviceMotion(c.opts.MotionInterval, c.source.Frame(), c.pipe.OnPlatformAttitude); err != nil {
		return fmt.Errorf("pipeline: start device motion: %w", err)
	}

	session := uuid.NewString()
	c.pipe.Reset(session, c.source)
	c.pipe.SetCollecting(true)

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.gen++
	c.session = session
	c.epoch = c.opts.Now()

	c.wg.Add(2)
	go c.rawLoop(loopCtx)
	go c.publishLoop(loopCtx)
	go c.watch(ctx, loopCtx, c.gen)

	c.state = Running
	log.Printf("pipeline: session %s started (source=%s raw=%s publish=%s)",
		session, c.source, c.opts.RawStep, c.opts.PublishInterval)
	return nil
}

// Stop ends the session. It is a no-op while idle. When it returns no loop
// or producer callback mutates pipeline state any more.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.state == Idle {
		return
	}

	c.pipe.SetCollecting(false)
	c.svc.StopDeviceMotion()
	c.cancel()
	c.wg.Wait()

	c.cancel = nil
	c.state = Idle
	log.Printf("pipeline: session %s stopped", c.session)
}

// watch stops session gen when ctx is done first. It returns as soon as
// the session's loops are cancelled by Stop.
func (c *Controller) watch(ctx, loop context.Context, gen uint64) {
	select {
	case <-loop.Done():
		return
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	log.Printf("pipeline: session %s context done: %v", c.session, ctx.Err())
	c.stopLocked()
}

// rawLoop samples the platform's raw sensors every RawStep and drives
// stream B. Ticks where accel or gyro have no reading are skipped.
func (c *Controller) rawLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.RawStep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			acc, ok := c.svc.Accelerometer()
			if !ok {
				continue
			}
			gyro, ok := c.svc.Gyroscope()
			if !ok {
				continue
			}
			s := imu.Sample{
				Source:    "platform",
				Timestamp: c.opts.Now().Sub(c.epoch).Seconds(),
				Accel:     acc,
				Gyro:      gyro,
			}
			if mag, ok := c.svc.Magnetometer(); ok {
				s.Mag = &mag
			}
			c.pipe.OnRawInertial(s)
		}
	}
}

func (c *Controller) publishLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pipe.PublishTick()
		}
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	return c.State() == Running
}

// SetSource selects the stream A source for the next session.
func (c *Controller) SetSource(s Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = s
}

// Source returns the source selected for the next (or current) session.
func (c *Controller) Source() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Session returns the ID of the current or last session.
func (c *Controller) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Snapshot returns the last published snapshot.
func (c *Controller) Snapshot() (Snapshot, bool) {
	return c.pipe.Last()
}

// Pipeline exposes the underlying pipeline.
func (c *Controller) Pipeline() *Pipeline {
	return c.pipe
}
