// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline runs the multi-rate acquisition core: two producer
// streams write into single-slot caches at their own pace, and a fixed-rate
// publisher folds the caches into history windows and emits snapshots.
package pipeline

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/fusion"
	"github.com/relabs-tech/inertial_viewer/internal/history"
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
	"github.com/relabs-tech/inertial_viewer/internal/rate"
)

// Config sizes a Pipeline.
type Config struct {
	RawStep       time.Duration // fusion step, the raw sampling period
	Retention     time.Duration // history span per stream
	RateWindow    int           // timestamps per rate estimate
	EngineFactory fusion.EngineFactory
	Sink          Sink
}

func (c *Config) applyDefaults() {
	if c.RawStep <= 0 {
		c.RawStep = 10 * time.Millisecond
	}
	if c.Retention <= 0 {
		c.Retention = history.DefaultRetention
	}
	if c.RateWindow <= 0 {
		c.RateWindow = rate.DefaultWindow
	}
	if c.EngineFactory == nil {
		c.EngineFactory = fusion.NewMahony
	}
}

// publisherState is touched only by PublishTick and Reset.
type publisherState struct {
	platformHist *history.Window
	fusedHist    *history.Window
	platformSeq  uint64
	fusedSeq     uint64
	sequence     uint64
	last         Snapshot
	haveLast     bool
}

// Pipeline holds the caches and histories of one viewer.
//
// OnPlatformAttitude and OnRawInertial are the producer entry points and
// never block on the publisher. OnRawInertial must be called from a single
// goroutine since it steps the fusion engine.
type Pipeline struct {
	cfg Config

	// gate orders producers against SetCollecting: producers hold it
	// shared, so turning collection off waits for in-flight writes.
	gate       sync.RWMutex
	collecting bool
	adapter    *fusion.Adapter

	platform *attitudeSlot
	fused    *attitudeSlot
	raw      rawSlot

	pubMu   sync.Mutex
	pub     publisherState
	session string
	source  Source
}

// New returns an idle pipeline.
func New(cfg Config) *Pipeline {
	cfg.applyDefaults()
	p := &Pipeline{
		cfg:      cfg,
		platform: newAttitudeSlot(cfg.RateWindow, true),
		fused:    newAttitudeSlot(cfg.RateWindow, false),
		adapter:  fusion.NewAdapter(cfg.EngineFactory, cfg.RawStep),
	}
	p.pub.platformHist = history.New(cfg.Retention)
	p.pub.fusedHist = history.New(cfg.Retention)
	return p
}

// Reset starts a new session: caches, histories, rate estimators and time
// origins are cleared and a fresh fusion engine is built. Call it only
// while not collecting.
func (p *Pipeline) Reset(session string, source Source) {
	p.gate.Lock()
	p.adapter = fusion.NewAdapter(p.cfg.EngineFactory, p.cfg.RawStep)
	p.platform.reset()
	p.fused.reset()
	p.raw.reset()
	p.gate.Unlock()

	p.pubMu.Lock()
	p.pub.platformHist.Reset()
	p.pub.fusedHist.Reset()
	p.pub.platformSeq, p.pub.fusedSeq, p.pub.sequence = 0, 0, 0
	p.pub.last, p.pub.haveLast = Snapshot{}, false
	p.session, p.source = session, source
	p.pubMu.Unlock()
}

// SetCollecting switches the producer entry points on or off. Turning
// collection off returns only after in-flight producer writes finish.
func (p *Pipeline) SetCollecting(on bool) {
	p.gate.Lock()
	p.collecting = on
	p.gate.Unlock()
}

// Collecting reports whether producers are accepted.
func (p *Pipeline) Collecting() bool {
	p.gate.RLock()
	defer p.gate.RUnlock()
	return p.collecting
}

// OnPlatformAttitude is the stream A producer. Non-finite quaternions are
// dropped and the previous value kept.
func (p *Pipeline) OnPlatformAttitude(q quat.Number, ts float64) {
	p.gate.RLock()
	defer p.gate.RUnlock()
	if !p.collecting || !orientation.IsFinite(q) {
		return
	}
	p.platform.store(orientation.NewAttitude(ts, q))
}

// OnRawInertial is the stream B producer: it caches s, steps the fusion
// engine and caches the fused attitude.
func (p *Pipeline) OnRawInertial(s imu.Sample) {
	p.gate.RLock()
	defer p.gate.RUnlock()
	if !p.collecting {
		return
	}

	s = p.raw.store(s)
	a, ok := p.adapter.OnRawSample(s)
	if !ok {
		return
	}
	p.fused.store(a)
}

// PublishTick folds the caches into the histories and emits a snapshot to
// the sink. A stream whose cache has not changed since the previous tick
// repeats its latest value and adds nothing to its history.
func (p *Pipeline) PublishTick() Snapshot {
	platform := p.platform.load()
	fused := p.fused.load()
	raw, rawSeq := p.raw.load()

	p.pubMu.Lock()
	pub := &p.pub
	pub.sequence++
	snap := Snapshot{
		Session:  p.session,
		Sequence: pub.sequence,
		Source:   p.source.String(),
		Platform: fold(platform, &pub.platformSeq, pub.platformHist),
		Fused:    fold(fused, &pub.fusedSeq, pub.fusedHist),
	}
	if rawSeq > 0 {
		snap.Raw = &raw
	}
	pub.last, pub.haveLast = snap, true
	p.pubMu.Unlock()

	if p.cfg.Sink != nil {
		p.cfg.Sink.Publish(snap)
	}
	return snap
}

// fold appends v's value to hist if it is new and builds the stream state.
func fold(v slotView, lastSeq *uint64, hist *history.Window) StreamState {
	if v.seq > *lastSeq {
		hist.Append(v.latest)
		*lastSeq = v.seq
	}

	st := StreamState{History: hist.Samples(), Samples: v.seq}
	if v.seq > 0 {
		latest := v.latest
		st.Latest = &latest
	}
	if v.hasRate {
		r := v.rate
		st.Rate = &r
	}
	return st
}

// Last returns the most recently published snapshot.
func (p *Pipeline) Last() (Snapshot, bool) {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()
	return p.pub.last, p.pub.haveLast
}
