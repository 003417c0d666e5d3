/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package crate implements weighted groups of track collections and the
// profiles that order them.
package crate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/friendsincode/boombox/internal/library"
)

var (
	// ErrEmpty means no collection could yield a track.
	ErrEmpty = errors.New("crate: no track available")
	// ErrRejected means a track was drawn but failed validation.
	ErrRejected = errors.New("crate: track rejected by validator")
)

// Collection is the view of a track pool a crate draws from.
type Collection interface {
	ID() string
	Len() int
	Shift() (*library.Track, bool)
	Push(tracks ...*library.Track) int
	LatchDisabled() bool
}

// Source binds a collection to its sampling weight.
type Source struct {
	Collection Collection
	Weight     float64
}

// Validator reports whether a track path is currently loadable.
type Validator func(ctx context.Context, path string) (bool, error)

// Config describes a crate.
type Config struct {
	ID      string
	Sources []Source
	Limit   LimitSpec
	Chance  ChanceSpec
	Rand    *rand.Rand
}

// Crate owns a weighted set of collections plus its limit and chance rules.
type Crate struct {
	id     string
	limit  LimitSpec
	chance *Chance

	mu      sync.Mutex
	sources []Source
	rng     *rand.Rand
	max     int
	maxLive bool
}

// New creates a crate.
func New(cfg Config) *Crate {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sources := make([]Source, len(cfg.Sources))
	copy(sources, cfg.Sources)
	return &Crate{
		id:      cfg.ID,
		limit:   cfg.Limit,
		chance:  NewChance(cfg.Chance),
		sources: sources,
		rng:     rng,
	}
}

// ID returns the crate id.
func (c *Crate) ID() string { return c.id }

// Limit returns the crate's limit spec.
func (c *Crate) Limit() LimitSpec { return c.limit }

// Chance returns the crate's chance spec.
func (c *Crate) Chance() ChanceSpec { return c.chance.Spec() }

// String describes the crate for logs.
func (c *Crate) String() string {
	return fmt.Sprintf("crate(%s limit=%s chance=%s)", c.id, c.limit, c.chance.Spec())
}

// Sources returns a copy of the crate's sources.
func (c *Crate) Sources() []Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Source, len(c.sources))
	copy(out, c.sources)
	return out
}

// SetSources replaces the crate's sources.
func (c *Crate) SetSources(sources []Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append([]Source(nil), sources...)
}

// Contains reports whether the collection is one of the crate's sources.
func (c *Crate) Contains(collectionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sources {
		if s.Collection.ID() == collectionID {
			return true
		}
	}
	return false
}

// Len returns the live sum of all source lengths.
func (c *Crate) Len() int {
	total := 0
	for _, s := range c.Sources() {
		total += s.Collection.Len()
	}
	return total
}

// Select decides whether the crate runs this rotation and resolves its
// limit. A forced select skips the chance rule.
func (c *Crate) Select(force bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && !c.chance.Next(c.rng) {
		c.max = 0
		c.maxLive = false
		return false
	}

	c.max, c.maxLive = EvaluateLimit(c.rng, c.limit)
	return true
}

// Max returns how many tracks the current run allows. It is only
// meaningful after Select.
func (c *Crate) Max() int {
	c.mu.Lock()
	live := c.maxLive
	max := c.max
	c.mu.Unlock()

	if live {
		return c.Len()
	}
	return max
}

// Next draws one candidate. When intended is set it is used directly,
// otherwise a source is picked by weight. The drawn track is rotated to
// the back of its collection before validation runs.
func (c *Crate) Next(ctx context.Context, validate Validator, intended Collection) (*library.Track, error) {
	col := intended
	if col == nil {
		c.mu.Lock()
		weights := make([]float64, len(c.sources))
		for i, s := range c.sources {
			weights[i] = s.Weight
		}
		idx := weightedSample(c.rng, weights)
		if idx >= 0 {
			col = c.sources[idx].Collection
		}
		c.mu.Unlock()
	}
	if col == nil {
		return nil, ErrEmpty
	}

	track, ok := col.Shift()
	if !ok {
		return nil, ErrEmpty
	}
	col.Push(track)

	if validate == nil {
		return track, nil
	}
	valid, err := validate.Check(ctx, track.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRejected, track.Path, err)
	}
	if !valid {
		return nil, ErrRejected
	}
	return track, nil
}

// Check runs the validator and reports a panic as an error.
func (v Validator) Check(ctx context.Context, path string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("validator panic: %v", r)
		}
	}()
	return v(ctx, path)
}
