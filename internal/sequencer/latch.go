/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sequencer

import (
	"github.com/google/uuid"

	"github.com/friendsincode/boombox/internal/crate"
)

// LatchSession binds playback to one collection for a bounded number of tracks.
type LatchSession struct {
	ID           string           `json:"id"`
	CollectionID string           `json:"collection_id"`
	Collection   crate.Collection `json:"-"`
	Count        int              `json:"count"`
	Max          int              `json:"max"`
}

// Remaining returns how many tracks the session still allows.
func (l LatchSession) Remaining() int {
	if l.Max <= l.Count {
		return 0
	}
	return l.Max - l.Count
}

// LatchOptions drives Latch.
type LatchOptions struct {
	// Collection to latch onto. Falls back to the active latch's collection,
	// then to the collection last played.
	Collection crate.Collection
	// Increase adds to the remaining count when Length is nil.
	Increase int
	// Length, when set, replaces the remaining count. Zero cancels.
	Length *int
	// Important moves the session to the front, making it the active one.
	Important bool
}

// Length is a helper for LatchOptions.Length.
func Length(n int) *int { return &n }

// Latch queries, creates, extends or cancels a latch session. A nil opts
// returns the active session. The returned value is a snapshot; nil means
// there is no session for the target.
func (s *Sequencer) Latch(opts *LatchOptions) *LatchSession {
	var events pending
	defer func() { events.fire() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if opts == nil {
		return snapshot(s.activeLatchLocked())
	}

	col := opts.Collection
	if col == nil {
		if active := s.activeLatchLocked(); active != nil {
			col = active.Collection
		} else {
			col = s.lastCollection
		}
	}
	if col == nil {
		return nil
	}

	cancel := opts.Length != nil && *opts.Length == 0
	session := s.findLatchLocked(col.ID())
	created := false
	if session == nil {
		if cancel || col.LatchDisabled() {
			return nil
		}
		session = &LatchSession{ID: uuid.NewString(), CollectionID: col.ID(), Collection: col}
		created = true
	}

	switch {
	case cancel:
		session.Max = 0
	case opts.Length != nil:
		session.Max = session.Count + *opts.Length
	default:
		session.Max += opts.Increase
	}

	if session.Max <= 0 || session.Max <= session.Count {
		if !created {
			s.removeLatchLocked(&events, session)
		}
		s.logger.Debug().Str("collection_id", col.ID()).Msg("latch cancelled")
		return nil
	}

	switch {
	case created && opts.Important:
		s.latches = append([]*LatchSession{session}, s.latches...)
	case created:
		s.latches = append(s.latches, session)
	case opts.Important:
		s.moveLatchToFrontLocked(session)
	}

	if created {
		s.logger.Info().
			Str("latch_id", session.ID).
			Str("collection_id", col.ID()).
			Int("max", session.Max).
			Bool("important", opts.Important).
			Msg("latch session created")
		s.emitLatchCreated(&events, *session)
	}
	return snapshot(session)
}

// ActiveLatch returns the session currently driving selection.
func (s *Sequencer) ActiveLatch() *LatchSession {
	return s.Latch(nil)
}

// Latches returns every session in priority order.
func (s *Sequencer) Latches() []LatchSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LatchSession, len(s.latches))
	for i, l := range s.latches {
		out[i] = *l
	}
	return out
}

// RemoveLatch cancels the session bound to the collection.
func (s *Sequencer) RemoveLatch(collectionID string) bool {
	var events pending
	defer func() { events.fire() }()

	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.findLatchLocked(collectionID)
	if session == nil {
		return false
	}
	s.removeLatchLocked(&events, session)
	return true
}

func (s *Sequencer) activeLatchLocked() *LatchSession {
	if len(s.latches) == 0 {
		return nil
	}
	return s.latches[0]
}

func (s *Sequencer) findLatchLocked(collectionID string) *LatchSession {
	for _, l := range s.latches {
		if l.CollectionID == collectionID {
			return l
		}
	}
	return nil
}

func (s *Sequencer) hasLatchLocked(session *LatchSession) bool {
	for _, l := range s.latches {
		if l == session {
			return true
		}
	}
	return false
}

// removeLatchLocked drops the session and tombstones it so stale holders
// see it as finished. Listeners get the session as it was when removed.
func (s *Sequencer) removeLatchLocked(p *pending, session *LatchSession) {
	for i, l := range s.latches {
		if l == session {
			s.latches = append(s.latches[:i], s.latches[i+1:]...)
			s.emitLatchRemoved(p, *session)
			break
		}
	}
	session.Max = 0
}

func (s *Sequencer) moveLatchToFrontLocked(session *LatchSession) {
	rest := make([]*LatchSession, 0, len(s.latches))
	for _, l := range s.latches {
		if l != session {
			rest = append(rest, l)
		}
	}
	s.latches = append([]*LatchSession{session}, rest...)
}

func snapshot(l *LatchSession) *LatchSession {
	if l == nil {
		return nil
	}
	cp := *l
	return &cp
}
