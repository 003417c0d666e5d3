/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sequencer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/crate"
	"github.com/friendsincode/boombox/internal/library"
)

func newCollection(id string, n int) *library.Collection {
	c := library.NewCollection(id, id)
	for i := 1; i <= n; i++ {
		c.Push(&library.Track{ID: fmt.Sprintf("%s%d", id, i), Path: fmt.Sprintf("/music/%s/%d.mp3", id, i)})
	}
	return c
}

func newCrate(id string, limit crate.LimitSpec, cols ...*library.Collection) *crate.Crate {
	sources := make([]crate.Source, 0, len(cols))
	for _, c := range cols {
		sources = append(sources, crate.Source{Collection: c, Weight: 1})
	}
	return crate.New(crate.Config{
		ID:      id,
		Sources: sources,
		Limit:   limit,
		Chance:  crate.Always(),
		Rand:    rand.New(rand.NewSource(7)),
	})
}

func newSequencer(p *crate.Profile, verify Verifier) *Sequencer {
	return New(p, Options{Verifier: verify, Logger: zerolog.Nop()})
}

func acceptAll(context.Context, *library.Track) (Verdict, error) {
	return Verdict{ShouldPlay: true}, nil
}

func rejectAll(context.Context, *library.Track) (Verdict, error) {
	return Verdict{}, nil
}

func nextIDs(t *testing.T, s *Sequencer, n int) []string {
	t.Helper()
	var out []string
	for i := 0; i < n; i++ {
		track := s.NextTrack(context.Background())
		if track == nil {
			t.Fatalf("call %d returned no track", i+1)
		}
		out = append(out, track.ID)
	}
	return out
}

func TestNextTrackWalksCratesByLimit(t *testing.T) {
	p := crate.NewProfile("p", "Main",
		newCrate("A", crate.Fixed(2), newCollection("a", 5)),
		newCrate("B", crate.Fixed(1), newCollection("b", 3)),
	)
	s := newSequencer(p, acceptAll)

	got := nextIDs(t, s, 4)
	want := []string{"a1", "a2", "b1", "a3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence %v, want %v", got, want)
		}
	}
}

func TestNextTrackSequencingRecord(t *testing.T) {
	p := crate.NewProfile("p", "Main", newCrate("A", crate.Fixed(2), newCollection("a", 3)))
	s := newSequencer(p, acceptAll)

	first := s.NextTrack(context.Background())
	second := s.NextTrack(context.Background())
	if first.Sequencing == nil || second.Sequencing == nil {
		t.Fatal("expected sequencing records")
	}
	if first.Sequencing.CrateID != "A" || first.Sequencing.ProfileID != "p" {
		t.Fatalf("unexpected record %+v", first.Sequencing)
	}
	if first.Sequencing.PlayOrder != [2]int{1, 2} || second.Sequencing.PlayOrder != [2]int{2, 2} {
		t.Fatalf("play orders %v %v", first.Sequencing.PlayOrder, second.Sequencing.PlayOrder)
	}
	if first.Sequencing.Latch != nil {
		t.Fatal("rotation track must not carry a latch order")
	}
}

func TestNextTrackAppliesVerifierExtra(t *testing.T) {
	p := crate.NewProfile("p", "Main", newCrate("A", crate.Fixed(1), newCollection("a", 1)))
	extra := &library.Extra{Tags: &library.Tags{Artist: "Boards of Canada"}}
	s := newSequencer(p, func(context.Context, *library.Track) (Verdict, error) {
		return Verdict{ShouldPlay: true, Extra: extra}, nil
	})

	track := s.NextTrack(context.Background())
	if track == nil || track.Tags() == nil || track.Tags().Artist != "Boards of Canada" {
		t.Fatalf("verifier extra not applied: %+v", track)
	}
}

func TestNextTrackSkipsDecliningCrate(t *testing.T) {
	never := crate.New(crate.Config{
		ID:      "never",
		Sources: []crate.Source{{Collection: newCollection("x", 2), Weight: 1}},
		Limit:   crate.Fixed(1),
		Chance:  crate.Ratio(0, 1),
	})
	p := crate.NewProfile("p", "Main", never, newCrate("B", crate.Fixed(1), newCollection("b", 2)))
	s := newSequencer(p, acceptAll)

	var got []string
	for i := 0; i < 6; i++ {
		if track := s.NextTrack(context.Background()); track != nil {
			got = append(got, track.ID)
		}
	}
	if len(got) == 0 || got[0] != "b1" {
		t.Fatalf("expected rotation to start on b1, got %v", got)
	}
	for _, id := range got {
		if id[0] != 'b' {
			t.Fatalf("declining crate produced %s", id)
		}
	}
}

func TestLatchLifecycle(t *testing.T) {
	a := newCollection("a", 3)
	p := crate.NewProfile("p", "Main",
		newCrate("A", crate.Fixed(1), a),
		newCrate("B", crate.Fixed(1), newCollection("b", 3)),
	)
	s := newSequencer(p, acceptAll)

	var created, removed []LatchSession
	s.OnLatchCreated(func(l LatchSession) { created = append(created, l) })
	s.OnLatchRemoved(func(l LatchSession) { removed = append(removed, l) })

	session := s.Latch(&LatchOptions{Collection: a, Increase: 5})
	if session == nil || session.Max != 5 {
		t.Fatalf("unexpected session %+v", session)
	}
	if len(created) != 1 {
		t.Fatalf("latchCreated fired %d times", len(created))
	}

	for i := 1; i <= 5; i++ {
		track := s.NextTrack(context.Background())
		if track == nil || track.CollectionID != "a" {
			t.Fatalf("draw %d not from latched collection: %+v", i, track)
		}
		if track.Sequencing.Latch == nil || track.Sequencing.Latch.Order != [2]int{i, 5} {
			t.Fatalf("draw %d latch order %+v", i, track.Sequencing.Latch)
		}
		if track.Sequencing.Latch.SessionID != session.ID {
			t.Fatalf("draw %d wrong session", i)
		}
	}

	if got := s.Latch(nil); got != nil {
		t.Fatalf("latch should be gone, got %+v", got)
	}
	if len(s.Latches()) != 0 {
		t.Fatal("latch list should be empty")
	}
	if len(removed) != 1 || removed[0].ID != session.ID || removed[0].Count != 5 || removed[0].Max != 5 {
		t.Fatalf("latchRemoved on expiry %+v", removed)
	}

	// the play counter overran crate A's limit so rotation moves on
	if track := s.NextTrack(context.Background()); track.CollectionID != "b" {
		t.Fatalf("expected rotation to resume on b, got %s", track.ID)
	}
}

func TestLatchRemovedOnCancel(t *testing.T) {
	a := newCollection("a", 3)
	b := newCollection("b", 3)
	p := crate.NewProfile("p", "Main", newCrate("A", crate.Fixed(1), a, b))
	s := newSequencer(p, acceptAll)

	var removed []string
	s.OnLatchRemoved(func(l LatchSession) { removed = append(removed, l.CollectionID) })

	s.Latch(&LatchOptions{Collection: a, Increase: 2})
	s.Latch(&LatchOptions{Collection: b, Increase: 2})

	if got := s.Latch(&LatchOptions{Collection: a, Length: Length(0)}); got != nil {
		t.Fatal("length 0 must cancel")
	}
	if !s.RemoveLatch("b") {
		t.Fatal("RemoveLatch should find b")
	}
	if s.RemoveLatch("b") {
		t.Fatal("second RemoveLatch must report false")
	}
	if got := s.Latch(&LatchOptions{Collection: a, Length: Length(0)}); got != nil {
		t.Fatal("cancelling a missing latch is a no-op")
	}

	if len(removed) != 2 || removed[0] != "a" || removed[1] != "b" {
		t.Fatalf("latchRemoved %v", removed)
	}
}

func TestLatchRelocatesToCrate(t *testing.T) {
	b := newCollection("b", 3)
	p := crate.NewProfile("p", "Main",
		newCrate("A", crate.Fixed(3), newCollection("a", 3)),
		newCrate("B", crate.Fixed(1), b),
	)
	s := newSequencer(p, acceptAll)

	var changes []string
	s.OnChange(func(cur, _ *crate.Crate) { changes = append(changes, cur.ID()) })

	s.NextTrack(context.Background())
	s.Latch(&LatchOptions{Collection: b, Length: Length(2)})

	got := nextIDs(t, s, 2)
	if got[0] != "b1" || got[1] != "b2" {
		t.Fatalf("latched draws %v", got)
	}
	if len(changes) != 2 || changes[1] != "B" {
		t.Fatalf("change notifications %v", changes)
	}
}

func TestLatchOptions(t *testing.T) {
	a := newCollection("a", 3)
	b := newCollection("b", 3)
	locked := newCollection("locked", 1)
	locked.SetLatchDisabled(true)
	p := crate.NewProfile("p", "Main", newCrate("A", crate.Fixed(1), a, b, locked))
	s := newSequencer(p, acceptAll)

	if got := s.Latch(&LatchOptions{Increase: 2}); got != nil {
		t.Fatalf("no resolvable collection must be a no-op, got %+v", got)
	}
	if got := s.Latch(&LatchOptions{Collection: locked, Increase: 2}); got != nil {
		t.Fatal("latch disabled collection must be a no-op")
	}

	if got := s.Latch(&LatchOptions{Collection: a, Length: Length(3)}); got == nil || got.Max != 3 {
		t.Fatalf("length: %+v", got)
	}
	if got := s.Latch(&LatchOptions{Increase: 2}); got == nil || got.Max != 5 || got.CollectionID != "a" {
		t.Fatalf("increase on active: %+v", got)
	}

	s.Latch(&LatchOptions{Collection: b, Increase: 1})
	if got := s.ActiveLatch(); got.CollectionID != "a" {
		t.Fatalf("appended latch must not take over, active %s", got.CollectionID)
	}
	s.Latch(&LatchOptions{Collection: b, Increase: 1, Important: true})
	if got := s.ActiveLatch(); got.CollectionID != "b" || got.Max != 2 {
		t.Fatalf("important latch should lead, got %+v", got)
	}

	if got := s.Latch(&LatchOptions{Length: Length(0)}); got != nil {
		t.Fatal("cancel must return nil")
	}
	if got := s.ActiveLatch(); got == nil || got.CollectionID != "a" {
		t.Fatalf("cancel should drop the top session only, active %+v", got)
	}
	if got := s.Latch(&LatchOptions{Collection: a, Increase: -5}); got != nil {
		t.Fatal("max reaching zero removes the session")
	}
	if len(s.Latches()) != 0 {
		t.Fatalf("expected no sessions, got %+v", s.Latches())
	}
}

func TestLatchFallsBackToLastCollection(t *testing.T) {
	p := crate.NewProfile("p", "Main", newCrate("A", crate.Fixed(1), newCollection("a", 2)))
	s := newSequencer(p, acceptAll)
	s.NextTrack(context.Background())

	got := s.Latch(&LatchOptions{Increase: 1})
	if got == nil || got.CollectionID != "a" {
		t.Fatalf("expected latch on last collection, got %+v", got)
	}
	if !s.RemoveLatch("a") || s.RemoveLatch("a") {
		t.Fatal("RemoveLatch should succeed once")
	}
}

func TestRescueFiresOnceWhenAllRejected(t *testing.T) {
	p := crate.NewProfile("p", "Main",
		newCrate("A", crate.Fixed(2), newCollection("a", 3)),
		newCrate("B", crate.Fixed(2), newCollection("b", 2)),
	)
	s := newSequencer(p, rejectAll)

	var calls [][2]int
	s.OnRescue(func(scanned, ignored int) { calls = append(calls, [2]int{scanned, ignored}) })

	if track := s.NextTrack(context.Background()); track != nil {
		t.Fatalf("expected no track, got %s", track.ID)
	}
	if len(calls) != 1 {
		t.Fatalf("rescue fired %d times", len(calls))
	}
	if calls[0][0] == 0 || calls[0][0] != calls[0][1] {
		t.Fatalf("rescue counts %v", calls[0])
	}
}

func TestRescueCountsVerifierFailures(t *testing.T) {
	p := crate.NewProfile("p", "Main", newCrate("A", crate.Fixed(1), newCollection("a", 2)))
	calls := 0
	s := newSequencer(p, func(context.Context, *library.Track) (Verdict, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return Verdict{}, errors.New("tag read failed")
	})

	rescued := 0
	s.OnRescue(func(scanned, ignored int) {
		rescued++
		if scanned != 2 || ignored != 2 {
			t.Errorf("counts %d/%d", scanned, ignored)
		}
	})
	if s.NextTrack(context.Background()) != nil {
		t.Fatal("expected no track")
	}
	if rescued != 1 {
		t.Fatalf("rescue fired %d times", rescued)
	}
}

func TestNoRescueOnEmptyCollections(t *testing.T) {
	p := crate.NewProfile("p", "Main", newCrate("A", crate.Fixed(1), newCollection("a", 0)))
	s := newSequencer(p, acceptAll)
	rescued := false
	s.OnRescue(func(int, int) { rescued = true })

	if s.NextTrack(context.Background()) != nil {
		t.Fatal("expected no track")
	}
	if rescued {
		t.Fatal("starvation must not signal rescue")
	}
}

func TestProfileSwapContinuity(t *testing.T) {
	x := newCollection("x", 5)
	first := crate.NewProfile("p1", "First",
		newCrate("A", crate.Fixed(1), newCollection("a", 2)),
		newCrate("B", crate.Fixed(1), newCollection("b", 2)),
		newCrate("X", crate.Fixed(3), x),
	)
	s := newSequencer(first, acceptAll)
	if !s.ForceSelect("x") {
		t.Fatal("force select failed")
	}
	track := s.NextTrack(context.Background())
	if track.CollectionID != "x" || s.Status().CrateIndex != 2 {
		t.Fatalf("expected to play x from crate 2, got %s at %d", track.ID, s.Status().CrateIndex)
	}

	second := crate.NewProfile("p2", "Second",
		newCrate("X2", crate.Fixed(3), x),
		newCrate("C", crate.Fixed(1), newCollection("c", 2)),
	)
	var swaps int
	s.OnProfileChange(func(prev, cur *crate.Profile) {
		swaps++
		if prev != first || cur != second {
			t.Error("unexpected profile change arguments")
		}
	})
	s.SetProfile(second)

	st := s.Status()
	if st.CrateIndex != 0 || st.PlayCounter != 1 || st.ProfileID != "p2" {
		t.Fatalf("unexpected status after swap %+v", st)
	}
	next := s.NextTrack(context.Background())
	if next.CollectionID != "x" || next.Sequencing.PlayOrder != [2]int{2, 3} {
		t.Fatalf("swap should continue the run, got %s %v", next.ID, next.Sequencing.PlayOrder)
	}
	if swaps != 1 {
		t.Fatalf("profileChange fired %d times", swaps)
	}
}

func TestProfileSwapResetsWhenCollectionMissing(t *testing.T) {
	first := crate.NewProfile("p1", "First", newCrate("A", crate.Fixed(3), newCollection("a", 3)))
	s := newSequencer(first, acceptAll)
	s.NextTrack(context.Background())

	second := crate.NewProfile("p2", "Second",
		newCrate("B", crate.Fixed(1), newCollection("b", 2)),
		newCrate("C", crate.Fixed(1), newCollection("c", 2)),
	)
	s.SetProfile(second)
	if st := s.Status(); st.CrateIndex != 0 || st.PlayCounter != 0 {
		t.Fatalf("expected reset, got %+v", st)
	}
	if track := s.NextTrack(context.Background()); track.CollectionID != "b" {
		t.Fatalf("expected first crate of new profile, got %s", track.ID)
	}

	// the old profile no longer drives the sequencer
	first.Add(newCrate("Z", crate.Fixed(1), newCollection("z", 1)))
	if s.Status().ProfileID != "p2" {
		t.Fatal("detached profile leaked into the sequencer")
	}
}

func TestProfileMutationFollowsCollection(t *testing.T) {
	p := crate.NewProfile("p", "Main",
		newCrate("A", crate.Fixed(1), newCollection("a", 2)),
		newCrate("B", crate.Fixed(5), newCollection("b", 5)),
	)
	s := newSequencer(p, acceptAll)
	s.ForceSelect("b")
	s.NextTrack(context.Background())

	p.Move("B", 0)
	if idx := s.Status().CrateIndex; idx != 0 {
		t.Fatalf("index should follow crate B to 0, got %d", idx)
	}
	p.Add(newCrate("C", crate.Fixed(1), newCollection("c", 1)))
	p.Move("C", 0)
	if idx := s.Status().CrateIndex; idx != 1 {
		t.Fatalf("index should follow crate B to 1, got %d", idx)
	}
	if track := s.NextTrack(context.Background()); track.CollectionID != "b" {
		t.Fatalf("expected rotation to continue on b, got %s", track.ID)
	}

	p.Remove("B")
	if idx := s.Status().CrateIndex; idx != 1 {
		t.Fatalf("index should wrap into the shrunk list, got %d", idx)
	}
}

func TestForceSelect(t *testing.T) {
	b := newCollection("b", 3)
	p := crate.NewProfile("p", "Main",
		newCrate("A", crate.Fixed(1), newCollection("a", 3)),
		newCrate("B", crate.Fixed(1), newCollection("c", 3), b),
	)
	s := newSequencer(p, acceptAll)

	if s.ForceSelect("missing") {
		t.Fatal("unknown collection must not be selected")
	}
	var moves int
	s.OnIndexChange(func(cur, _ *crate.Crate) {
		moves++
		if cur.ID() != "B" {
			t.Errorf("index moved to %s", cur.ID())
		}
	})
	if !s.ForceSelect("b") {
		t.Fatal("force select failed")
	}
	if moves != 1 {
		t.Fatalf("indexChange fired %d times", moves)
	}
	if s.Status().ForcedCollection != "b" {
		t.Fatal("forced collection not recorded")
	}
	if track := s.NextTrack(context.Background()); track.ID != "b1" {
		t.Fatalf("forced draw returned %s", track.ID)
	}
	if s.Status().ForcedCollection != "" {
		t.Fatal("forced collection must be cleared after use")
	}
}

func TestNoCratesWarningIsRateLimited(t *testing.T) {
	s := New(crate.NewProfile("empty", "Empty"), Options{NoCratesInterval: time.Hour, Logger: zerolog.Nop()})
	fired := 0
	s.OnNoCrates(func(*crate.Profile) { fired++ })

	for i := 0; i < 5; i++ {
		if s.NextTrack(context.Background()) != nil {
			t.Fatal("expected no track")
		}
	}
	if fired != 1 {
		t.Fatalf("no crates fired %d times, want 1", fired)
	}

	fast := New(nil, Options{NoCratesInterval: time.Millisecond, Logger: zerolog.Nop()})
	fastFired := 0
	fast.OnNoCrates(func(*crate.Profile) { fastFired++ })
	fast.NextTrack(context.Background())
	time.Sleep(5 * time.Millisecond)
	fast.NextTrack(context.Background())
	if fastFired != 2 {
		t.Fatalf("expected a second warning after the interval, got %d", fastFired)
	}
}

func TestNextTrackIsNotReentrant(t *testing.T) {
	p := crate.NewProfile("p", "Main", newCrate("A", crate.Fixed(5), newCollection("a", 5)))
	var s *Sequencer
	var inner *library.Track
	s = newSequencer(p, func(ctx context.Context, _ *library.Track) (Verdict, error) {
		inner = s.NextTrack(ctx)
		return Verdict{ShouldPlay: true}, nil
	})

	if track := s.NextTrack(context.Background()); track == nil {
		t.Fatal("outer call should succeed")
	}
	if inner != nil {
		t.Fatal("re-entrant call must return nil")
	}
}

func TestLatchCancelledDuringVerification(t *testing.T) {
	a := newCollection("a", 3)
	p := crate.NewProfile("p", "Main", newCrate("A", crate.Fixed(5), a))
	var s *Sequencer
	s = newSequencer(p, func(context.Context, *library.Track) (Verdict, error) {
		s.RemoveLatch("a")
		return Verdict{ShouldPlay: true}, nil
	})
	s.Latch(&LatchOptions{Collection: a, Increase: 3})

	track := s.NextTrack(context.Background())
	if track == nil {
		t.Fatal("expected a track")
	}
	if track.Sequencing.Latch != nil {
		t.Fatal("a cancelled latch must not annotate the track")
	}
}

func TestWrapIndex(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{0, 0, 0},
		{5, 0, 0},
		{3, 3, 0},
		{4, 3, 1},
		{2, 3, 2},
		{-1, 3, 2},
	}
	for _, tt := range tests {
		if got := wrapIndex(tt.i, tt.n); got != tt.want {
			t.Errorf("wrapIndex(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestAdvanceWithoutCratesPanics(t *testing.T) {
	s := New(nil, Options{Logger: zerolog.Nop()})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	s.Next()
}
