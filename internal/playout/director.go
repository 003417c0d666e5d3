/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout stands in for the audio engine: it keeps the playback
// queue topped up and advances the track on air.
package playout

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/events"
	"github.com/friendsincode/boombox/internal/library"
)

// Preparer queues the next track.
type Preparer interface {
	Prepare(ctx context.Context, done func(ok bool)) *library.Track
	TrackStarted(ctx context.Context, track *library.Track)
}

// DirectorConfig configures a Director.
type DirectorConfig struct {
	// Lookahead is how many tracks to keep waiting behind the one on air.
	Lookahead int
	// TrackLength is how long each track stays on air.
	TrackLength time.Duration
	// TickInterval is how often the queue is checked.
	TickInterval time.Duration
	// Bus receives health events when the queue starves. Optional.
	Bus events.Publisher
	// Leader reports whether this node drives the queue. Nil means always.
	Leader func() bool
}

// Director drives the queue and emits track starts.
type Director struct {
	box    Preparer
	queue  *Queue
	cfg    DirectorConfig
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	started time.Time
	misses  int
}

// NewDirector creates a playout director.
func NewDirector(box Preparer, queue *Queue, cfg DirectorConfig, logger zerolog.Logger) *Director {
	if cfg.Lookahead < 1 {
		cfg.Lookahead = 1
	}
	if cfg.TrackLength <= 0 {
		cfg.TrackLength = 3 * time.Minute
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Director{
		box:    box,
		queue:  queue,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes the director loop until context cancellation.
func (d *Director) Run(ctx context.Context) error {
	d.logger.Info().
		Int("lookahead", d.cfg.Lookahead).
		Dur("track_length", d.cfg.TrackLength).
		Msg("playout director started")
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	d.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("playout director stopped")
			return ctx.Err()
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Director) tick(ctx context.Context) {
	if d.cfg.Leader != nil && !d.cfg.Leader() {
		return
	}
	d.fill(ctx)

	d.mu.Lock()
	due := d.queue.Current() == nil || d.now().Sub(d.started) >= d.cfg.TrackLength
	d.mu.Unlock()
	if due {
		d.advance(ctx)
	}
}

// fill prepares tracks until the lookahead is met or nothing is available.
func (d *Director) fill(ctx context.Context) {
	for d.queue.Len() < d.cfg.Lookahead {
		if d.box.Prepare(ctx, nil) == nil {
			d.mu.Lock()
			d.misses++
			misses := d.misses
			d.mu.Unlock()
			// starvation is transient, the next tick retries
			if misses == 1 || misses%30 == 0 {
				d.logger.Warn().Int("misses", misses).Msg("no track available to queue")
				d.publishHealth("starved", misses)
			}
			return
		}
		d.mu.Lock()
		recovered := d.misses > 0
		d.misses = 0
		d.mu.Unlock()
		if recovered {
			d.publishHealth("ok", 0)
		}
	}
}

func (d *Director) publishHealth(status string, misses int) {
	if d.cfg.Bus == nil {
		return
	}
	d.cfg.Bus.Publish(events.EventHealth, events.Payload{
		"component": "playout",
		"status":    status,
		"misses":    misses,
		"queued":    d.queue.Len(),
	})
}

// Skip takes the current track off air and starts the next one.
func (d *Director) Skip(ctx context.Context) *library.Track {
	d.fill(ctx)
	return d.advance(ctx)
}

func (d *Director) advance(ctx context.Context) *library.Track {
	next, ok := d.queue.Pop()
	if !ok {
		return nil
	}

	d.mu.Lock()
	d.started = d.now()
	d.mu.Unlock()

	d.box.TrackStarted(ctx, next)
	d.fill(ctx)
	return next
}

// NowPlaying returns the track on air and when it started.
func (d *Director) NowPlaying() (*library.Track, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Current(), d.started
}
