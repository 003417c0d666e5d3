/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sequencer

import (
	"github.com/friendsincode/boombox/internal/crate"
	"github.com/friendsincode/boombox/internal/notify"
)

// ChangeFunc receives the crate that became current and the previous one.
type ChangeFunc func(current, previous *crate.Crate)

// RescueFunc receives the counts of a pass where every candidate was rejected.
type RescueFunc func(scanned, ignored int)

// ProfileChangeFunc receives the previous and the new profile.
type ProfileChangeFunc func(previous, current *crate.Profile)

// LatchCreatedFunc receives a snapshot of a new latch session.
type LatchCreatedFunc func(session LatchSession)

// LatchRemovedFunc receives a snapshot of a latch session that was
// cancelled or ran out.
type LatchRemovedFunc func(session LatchSession)

// NoCratesFunc is called (rate limited) when the profile has no crates.
type NoCratesFunc func(profile *crate.Profile)

type observers struct {
	change        notify.List[ChangeFunc]
	indexChange   notify.List[ChangeFunc]
	rescue        notify.List[RescueFunc]
	profileChange notify.List[ProfileChangeFunc]
	latchCreated  notify.List[LatchCreatedFunc]
	latchRemoved  notify.List[LatchRemovedFunc]
	noCrates      notify.List[NoCratesFunc]
}

// OnChange subscribes to crate changes that follow a successful select.
// The returned func unsubscribes.
func (s *Sequencer) OnChange(fn ChangeFunc) func() { return s.obs.change.Add(fn) }

// OnIndexChange subscribes to raw crate index moves.
func (s *Sequencer) OnIndexChange(fn ChangeFunc) func() { return s.obs.indexChange.Add(fn) }

// OnRescue subscribes to rescue signals.
func (s *Sequencer) OnRescue(fn RescueFunc) func() { return s.obs.rescue.Add(fn) }

// OnProfileChange subscribes to profile swaps.
func (s *Sequencer) OnProfileChange(fn ProfileChangeFunc) func() { return s.obs.profileChange.Add(fn) }

// OnLatchCreated subscribes to new latch sessions.
func (s *Sequencer) OnLatchCreated(fn LatchCreatedFunc) func() { return s.obs.latchCreated.Add(fn) }

// OnLatchRemoved subscribes to latch sessions leaving the list, whether
// they ran out or were cancelled.
func (s *Sequencer) OnLatchRemoved(fn LatchRemovedFunc) func() { return s.obs.latchRemoved.Add(fn) }

// OnNoCrates subscribes to the rate limited "no crates" signal.
func (s *Sequencer) OnNoCrates(fn NoCratesFunc) func() { return s.obs.noCrates.Add(fn) }

// pending collects notifications raised under the state lock so they can
// be delivered, in order, once the lock is released.
type pending []func()

func (p *pending) add(fn func()) { *p = append(*p, fn) }

func (p pending) fire() {
	for _, fn := range p {
		fn()
	}
}

func (s *Sequencer) emitChange(p *pending, current, previous *crate.Crate) {
	p.add(func() { s.obs.change.Each(func(fn ChangeFunc) { fn(current, previous) }) })
}

func (s *Sequencer) emitIndexChange(p *pending, current, previous *crate.Crate) {
	p.add(func() { s.obs.indexChange.Each(func(fn ChangeFunc) { fn(current, previous) }) })
}

func (s *Sequencer) emitLatchCreated(p *pending, session LatchSession) {
	p.add(func() { s.obs.latchCreated.Each(func(fn LatchCreatedFunc) { fn(session) }) })
}

func (s *Sequencer) emitLatchRemoved(p *pending, session LatchSession) {
	p.add(func() { s.obs.latchRemoved.Each(func(fn LatchRemovedFunc) { fn(session) }) })
}
