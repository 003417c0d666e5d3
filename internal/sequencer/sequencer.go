/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sequencer walks the crates of a profile to decide which track
// plays next.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/friendsincode/boombox/internal/crate"
	"github.com/friendsincode/boombox/internal/library"
	"github.com/friendsincode/boombox/internal/telemetry"
)

// DefaultNoCratesInterval spaces out repeated "no crates" warnings.
const DefaultNoCratesInterval = 5 * time.Second

// Verdict is a verifier's decision about a candidate track.
type Verdict struct {
	ShouldPlay bool
	Extra      *library.Extra
}

// Verifier applies domain rules to a candidate that passed validation.
type Verifier func(ctx context.Context, track *library.Track) (Verdict, error)

// Options configures a Sequencer.
type Options struct {
	Validator        crate.Validator
	Verifier         Verifier
	NoCratesInterval time.Duration
	Logger           zerolog.Logger
}

// Status is a point-in-time view of the sequencer state.
type Status struct {
	ProfileID        string         `json:"profile_id"`
	CrateIndex       int            `json:"crate_index"`
	CrateID          string         `json:"crate_id,omitempty"`
	CrateMax         int            `json:"crate_max"`
	PlayCounter      int            `json:"play_counter"`
	LastCollectionID string         `json:"last_collection_id,omitempty"`
	ForcedCollection string         `json:"forced_collection_id,omitempty"`
	Latches          []LatchSession `json:"latches"`
}

// Sequencer is the crate rotation state machine.
type Sequencer struct {
	logger   zerolog.Logger
	validate crate.Validator
	verify   Verifier
	noCrates *rate.Sometimes
	obs      observers

	// selecting guards NextTrack against concurrent and re-entrant calls.
	selecting sync.Mutex

	mu             sync.Mutex
	profile        *crate.Profile
	index          int
	lastCrate      *crate.Crate
	lastCollection crate.Collection
	playCounter    int
	latches        []*LatchSession
	forced         crate.Collection
}

// New creates a sequencer driving profile.
func New(profile *crate.Profile, opts Options) *Sequencer {
	if profile == nil {
		profile = crate.NewProfile("", "")
	}
	interval := opts.NoCratesInterval
	if interval <= 0 {
		interval = DefaultNoCratesInterval
	}
	s := &Sequencer{
		logger:   opts.Logger,
		validate: opts.Validator,
		verify:   opts.Verifier,
		noCrates: &rate.Sometimes{Interval: interval},
		profile:  profile,
	}
	profile.Attach(s)
	return s
}

// SetVerifier replaces the verifier. Used when the verifier depends on a
// component built after the sequencer.
func (s *Sequencer) SetVerifier(v Verifier) {
	s.mu.Lock()
	s.verify = v
	s.mu.Unlock()
}

// Profile returns the active profile.
func (s *Sequencer) Profile() *crate.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// wrapIndex maps i into [0, n). An empty list maps everything to 0.
func wrapIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// NextTrack produces the next track to play, annotated with its
// sequencing record, or nil when nothing could be selected.
func (s *Sequencer) NextTrack(ctx context.Context) *library.Track {
	if !s.selecting.TryLock() {
		s.logger.Debug().Msg("selection already in progress")
		return nil
	}
	defer s.selecting.Unlock()

	profile := s.Profile()
	bound := profile.Len()
	if bound == 0 {
		s.warnNoCrates(profile)
		return nil
	}

	var scanned, ignored int
	for attempt := 0; attempt < bound; attempt++ {
		c, ok := s.enterCrate()
		if c == nil {
			break
		}
		if ok {
			track, stats := s.scanCrate(ctx, c)
			scanned += stats.scanned
			ignored += stats.ignored
			if track != nil {
				return track
			}
		}
		if !s.advance() {
			break
		}
	}

	if scanned > 0 && scanned == ignored {
		s.logger.Warn().Int("scanned", scanned).Int("ignored", ignored).Msg("every candidate was rejected")
		s.obs.rescue.Each(func(fn RescueFunc) { fn(scanned, ignored) })
	}
	return nil
}

// enterCrate resolves the crate at the current index, relocating to the
// active latch's collection when needed and selecting the crate when it
// differs from the last one used. ok is false when the crate declined.
func (s *Sequencer) enterCrate() (c *crate.Crate, ok bool) {
	var events pending
	defer func() { events.fire() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	crates := s.profile.Crates()
	if len(crates) == 0 {
		return nil, false
	}
	s.index = wrapIndex(s.index, len(crates))

	force := false
	if latch := s.activeLatchLocked(); latch != nil {
		if idx := s.profile.IndexOfCollection(latch.CollectionID, s.index); idx >= 0 {
			force = true
			if idx != s.index {
				s.emitIndexChange(&events, crates[idx], crates[s.index])
				s.index = idx
			}
		}
	}
	c = crates[s.index]
	if s.forced != nil && c.Contains(s.forced.ID()) {
		force = true
	}

	if c == s.lastCrate {
		return c, true
	}
	if !c.Select(force) {
		s.logger.Debug().Str("crate_id", c.ID()).Msg("crate skipped this rotation")
		return c, false
	}

	previous := s.lastCrate
	s.lastCrate = c
	s.logger.Debug().Str("crate_id", c.ID()).Int("max", c.Max()).Msg("crate selected")
	s.emitChange(&events, c, previous)
	return c, true
}

type scanStats struct {
	scanned int
	ignored int
}

// scanCrate draws from the crate until a candidate is accepted, the crate's
// play limit is reached or every source has been tried once per track.
func (s *Sequencer) scanCrate(ctx context.Context, c *crate.Crate) (*library.Track, scanStats) {
	var stats scanStats

	for _, src := range c.Sources() {
		for i := 0; i < src.Collection.Len(); i++ {
			intended, latch, stop := s.prepareDraw(c)
			if stop {
				return nil, stats
			}

			track, err := c.Next(ctx, s.validate, intended)
			if err != nil {
				if errors.Is(err, crate.ErrRejected) {
					stats.scanned++
					stats.ignored++
					telemetry.CandidatesRejected.WithLabelValues("validation").Inc()
					s.logger.Debug().Err(err).Str("crate_id", c.ID()).Msg("candidate failed validation")
				}
				continue
			}
			stats.scanned++

			verdict, err := s.runVerifier(ctx, track)
			if err != nil {
				telemetry.CandidatesRejected.WithLabelValues("verifier_error").Inc()
				s.logger.Warn().Err(err).Str("track_id", track.ID).Msg("verifier failed, skipping candidate")
			}
			if err != nil || !verdict.ShouldPlay {
				stats.ignored++
				continue
			}

			return s.accept(c, track, intended, latch, verdict), stats
		}
	}
	return nil, stats
}

// prepareDraw ends an exhausted latch, enforces the crate's play limit and
// resolves which collection the next draw must use.
func (s *Sequencer) prepareDraw(c *crate.Crate) (intended crate.Collection, latch *LatchSession, stop bool) {
	var events pending
	defer func() { events.fire() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if active := s.activeLatchLocked(); active != nil && active.Count >= active.Max {
		s.logger.Info().Str("latch_id", active.ID).Int("count", active.Count).Msg("latch session finished")
		s.removeLatchLocked(&events, active)
	}

	latch = s.activeLatchLocked()
	if latch == nil && s.playCounter+1 > c.Max() {
		return nil, nil, true
	}

	switch {
	case latch != nil:
		intended = latch.Collection
	case s.forced != nil:
		intended = s.forced
		s.forced = nil
	}
	return intended, latch, false
}

func (s *Sequencer) accept(c *crate.Crate, track *library.Track, intended crate.Collection, latch *LatchSession, verdict Verdict) *library.Track {
	var events pending
	defer func() { events.fire() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.playCounter++
	seq := library.Sequencing{
		ProfileID: s.profile.ID(),
		CrateID:   c.ID(),
		PlayOrder: [2]int{s.playCounter, c.Max()},
	}

	// the latch may have been cancelled while the verifier ran
	if latch != nil && s.hasLatchLocked(latch) && latch.CollectionID == track.CollectionID {
		latch.Count++
		seq.Latch = &library.LatchOrder{SessionID: latch.ID, Order: [2]int{latch.Count, latch.Max}}
		if latch.Count >= latch.Max {
			s.logger.Info().Str("latch_id", latch.ID).Int("count", latch.Count).Msg("latch session finished")
			s.removeLatchLocked(&events, latch)
		}
	}

	if col := collectionOf(c, track.CollectionID, intended); col != nil {
		s.lastCollection = col
	}

	out := track
	if verdict.Extra != nil {
		out = out.WithExtra(verdict.Extra)
	}
	return out.WithSequencing(seq)
}

func collectionOf(c *crate.Crate, collectionID string, intended crate.Collection) crate.Collection {
	if intended != nil && intended.ID() == collectionID {
		return intended
	}
	for _, src := range c.Sources() {
		if src.Collection.ID() == collectionID {
			return src.Collection
		}
	}
	return nil
}

func (s *Sequencer) runVerifier(ctx context.Context, track *library.Track) (v Verdict, err error) {
	s.mu.Lock()
	verify := s.verify
	s.mu.Unlock()
	if verify == nil {
		return Verdict{ShouldPlay: true}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			v, err = Verdict{}, fmt.Errorf("verifier panic: %v", r)
		}
	}()
	return verify(ctx, track)
}

// advance moves to the next crate and resets the play counter. It reports
// false when the profile has been emptied concurrently.
func (s *Sequencer) advance() bool {
	var events pending
	defer func() { events.fire() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile.Len() == 0 {
		return false
	}
	s.advanceLocked(&events)
	return true
}

func (s *Sequencer) advanceLocked(events *pending) {
	crates := s.profile.Crates()
	if len(crates) == 0 {
		panic("sequencer: advancing a profile with no crates")
	}
	previous := crates[wrapIndex(s.index, len(crates))]
	s.playCounter = 0
	s.index = wrapIndex(s.index+1, len(crates))
	s.emitIndexChange(events, crates[s.index], previous)
}

// Next forces a move to the next crate.
func (s *Sequencer) Next() {
	var events pending
	defer func() { events.fire() }()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(&events)
}

func (s *Sequencer) warnNoCrates(profile *crate.Profile) {
	s.noCrates.Do(func() {
		s.logger.Warn().Str("profile_id", profile.ID()).Msg("profile has no crates, nothing to play")
		s.obs.noCrates.Each(func(fn NoCratesFunc) { fn(profile) })
	})
}

// SetProfile swaps the active profile. When the collection being played
// also lives in the new profile the rotation continues from there with
// its play counter intact; otherwise it restarts at the first crate.
func (s *Sequencer) SetProfile(profile *crate.Profile) {
	if profile == nil {
		return
	}

	s.mu.Lock()
	previous := s.profile
	if previous == profile {
		s.mu.Unlock()
		return
	}
	s.profile = profile

	idx := -1
	if s.lastCollection != nil {
		idx = profile.IndexOfCollection(s.lastCollection.ID(), 0)
	}
	if idx >= 0 {
		c := profile.Crates()[idx]
		c.Select(true)
		s.index = idx
		s.lastCrate = c
	} else {
		s.index = 0
		s.playCounter = 0
		s.lastCrate = nil
	}
	s.logger.Info().
		Str("from", previous.ID()).
		Str("to", profile.ID()).
		Bool("continued", idx >= 0).
		Msg("profile changed")
	s.mu.Unlock()

	previous.Detach(s)
	profile.Attach(s)
	s.obs.profileChange.Each(func(fn ProfileChangeFunc) { fn(previous, profile) })
}

// ProfileMutated re-resolves the crate index after the attached profile's
// crate list changed, following the collection that was playing.
func (s *Sequencer) ProfileMutated(profile *crate.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile != s.profile {
		return
	}

	crates := profile.Crates()
	if s.lastCrate != nil {
		for i, c := range crates {
			if c == s.lastCrate {
				s.index = i
				return
			}
		}
	}
	s.index = wrapIndex(s.index, len(crates))
	if s.lastCollection != nil {
		if idx := profile.IndexOfCollection(s.lastCollection.ID(), s.index); idx >= 0 {
			s.index = idx
		}
	}
}

// ForceSelect jumps to the first crate holding the collection and makes
// the next draw come from it. It reports false when no crate holds it.
func (s *Sequencer) ForceSelect(collectionID string) bool {
	var events pending
	defer func() { events.fire() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	crates := s.profile.Crates()
	idx := s.profile.IndexOfCollection(collectionID, 0)
	if idx < 0 {
		return false
	}
	col := collectionOf(crates[idx], collectionID, nil)
	if col == nil {
		return false
	}

	if idx != s.index {
		s.emitIndexChange(&events, crates[idx], crates[wrapIndex(s.index, len(crates))])
	}
	s.index = idx
	s.playCounter = 0
	s.lastCrate = nil
	s.forced = col
	s.logger.Info().Str("collection_id", collectionID).Int("crate_index", idx).Msg("collection forcefully selected")
	return true
}

// CurrentCollection returns the collection of the last accepted track.
func (s *Sequencer) CurrentCollection() crate.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCollection
}

// Status snapshots the sequencer state.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ProfileID:   s.profile.ID(),
		CrateIndex:  s.index,
		PlayCounter: s.playCounter,
		Latches:     make([]LatchSession, len(s.latches)),
	}
	if s.lastCrate != nil {
		st.CrateID = s.lastCrate.ID()
		st.CrateMax = s.lastCrate.Max()
	}
	if s.lastCollection != nil {
		st.LastCollectionID = s.lastCollection.ID()
	}
	if s.forced != nil {
		st.ForcedCollection = s.forced.ID()
	}
	for i, l := range s.latches {
		st.Latches[i] = *l
	}
	return st
}
