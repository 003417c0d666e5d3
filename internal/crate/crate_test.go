/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package crate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/friendsincode/boombox/internal/library"
)

func newCollection(id string, n int) *library.Collection {
	c := library.NewCollection(id, id)
	for i := 1; i <= n; i++ {
		c.Push(&library.Track{ID: fmt.Sprintf("%s%d", id, i), Path: fmt.Sprintf("/music/%s/%d.mp3", id, i)})
	}
	return c
}

func ids(c *library.Collection) []string {
	var out []string
	for _, t := range c.Snapshot() {
		out = append(out, t.ID)
	}
	return out
}

func seeded() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func acceptAll(context.Context, string) (bool, error) { return true, nil }

func TestNextRotatesCollection(t *testing.T) {
	col := newCollection("a", 5)
	before := ids(col)
	c := New(Config{ID: "c", Sources: []Source{{Collection: col, Weight: 1}}, Limit: Fixed(1), Rand: seeded()})

	for n := 1; n <= 12; n++ {
		track, err := c.Next(context.Background(), acceptAll, nil)
		if err != nil {
			t.Fatalf("draw %d: %v", n, err)
		}
		if want := before[(n-1)%len(before)]; track.ID != want {
			t.Fatalf("draw %d returned %s, want %s", n, track.ID, want)
		}

		got := ids(col)
		if len(got) != len(before) {
			t.Fatalf("length changed to %d after %d draws", len(got), n)
		}
		shift := n % len(before)
		want := append(append([]string{}, before[shift:]...), before[:shift]...)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("after %d draws order = %v, want %v", n, got, want)
		}
	}
}

func TestNextRotatesEvenWhenRejected(t *testing.T) {
	col := newCollection("a", 3)
	c := New(Config{ID: "c", Sources: []Source{{Collection: col, Weight: 1}}, Rand: seeded()})

	reject := func(context.Context, string) (bool, error) { return false, nil }
	if _, err := c.Next(context.Background(), reject, nil); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if got := ids(col); !reflect.DeepEqual(got, []string{"a2", "a3", "a1"}) {
		t.Fatalf("rejected draw must still rotate, got %v", got)
	}
}

func TestNextValidatorErrorsAndPanicsReject(t *testing.T) {
	col := newCollection("a", 2)
	c := New(Config{ID: "c", Sources: []Source{{Collection: col, Weight: 1}}, Rand: seeded()})

	failing := func(context.Context, string) (bool, error) { return true, errors.New("disk gone") }
	if _, err := c.Next(context.Background(), failing, nil); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected for validator error, got %v", err)
	}

	panicking := func(context.Context, string) (bool, error) { panic("boom") }
	if _, err := c.Next(context.Background(), panicking, nil); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected for validator panic, got %v", err)
	}
}

func TestNextEmpty(t *testing.T) {
	empty := library.NewCollection("e", "e")
	c := New(Config{ID: "c", Sources: []Source{{Collection: empty, Weight: 1}}, Rand: seeded()})
	if _, err := c.Next(context.Background(), nil, nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	noWeight := New(Config{ID: "c", Sources: []Source{{Collection: newCollection("a", 2), Weight: 0}}, Rand: seeded()})
	if _, err := noWeight.Next(context.Background(), nil, nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("zero weight sources cannot be sampled, got %v", err)
	}
}

func TestNextIntendedBypassesSampling(t *testing.T) {
	a := newCollection("a", 2)
	b := newCollection("b", 2)
	c := New(Config{ID: "c", Sources: []Source{{Collection: a, Weight: 1}, {Collection: b, Weight: 0}}, Rand: seeded()})

	for i := 0; i < 4; i++ {
		track, err := c.Next(context.Background(), nil, b)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if track.CollectionID != "b" {
			t.Fatalf("expected intended collection b, got %s", track.CollectionID)
		}
	}
}

func TestWeightedSampleBias(t *testing.T) {
	rng := seeded()
	counts := [2]int{}
	const draws = 40000
	for i := 0; i < draws; i++ {
		counts[weightedSample(rng, []float64{3, 1})]++
	}
	ratio := float64(counts[0]) / float64(counts[1])
	if ratio < 2.8 || ratio > 3.2 {
		t.Fatalf("expected ratio near 3, got %.3f (%v)", ratio, counts)
	}
}

func TestWeightedSampleNeverPicksNonPositive(t *testing.T) {
	rng := seeded()
	for i := 0; i < 10000; i++ {
		idx := weightedSample(rng, []float64{0, 2, -1, 1})
		if idx == 0 || idx == 2 {
			t.Fatalf("picked non-positive weight index %d", idx)
		}
	}
	if idx := weightedSample(rng, []float64{0, -3}); idx != -1 {
		t.Fatalf("expected -1 when nothing is eligible, got %d", idx)
	}
	if idx := weightedSample(rng, nil); idx != -1 {
		t.Fatalf("expected -1 for no weights, got %d", idx)
	}
}

func TestChanceRatioExactPerWindow(t *testing.T) {
	rng := seeded()
	ch := NewChance(Ratio(2, 1))
	for window := 0; window < 200; window++ {
		yes := 0
		for i := 0; i < 3; i++ {
			if ch.Next(rng) {
				yes++
			}
		}
		if yes != 2 {
			t.Fatalf("window %d: got %d yes, want 2", window, yes)
		}
	}
}

func TestChanceKinds(t *testing.T) {
	rng := seeded()
	always := NewChance(Always())
	never := NewChance(Ratio(0, 4))
	empty := NewChance(Ratio(0, 0))
	for i := 0; i < 50; i++ {
		if !always.Next(rng) {
			t.Fatal("always must be true")
		}
		if never.Next(rng) {
			t.Fatal("0:4 ratio must never be true")
		}
		if !empty.Next(rng) {
			t.Fatal("empty ratio behaves as always")
		}
	}

	random := NewChance(RandomBoolean())
	seen := map[bool]bool{}
	for i := 0; i < 200; i++ {
		seen[random.Next(rng)] = true
	}
	if !seen[true] || !seen[false] {
		t.Fatalf("random chance should produce both outcomes, got %v", seen)
	}
}

func TestEvaluateLimitBounds(t *testing.T) {
	rng := seeded()
	for i := 0; i < 1000; i++ {
		if n, _ := EvaluateLimit(rng, Upto(3)); n < 1 || n > 3 {
			t.Fatalf("upto(3) gave %d", n)
		}
		if n, _ := EvaluateLimit(rng, Range(2, 5)); n < 2 || n > 5 {
			t.Fatalf("range(2,5) gave %d", n)
		}
		if n, _ := EvaluateLimit(rng, Range(5, 2)); n < 2 || n > 5 {
			t.Fatalf("swapped range gave %d", n)
		}
		n, _ := EvaluateLimit(rng, OneOf(4, 7))
		if n != 4 && n != 7 {
			t.Fatalf("oneOf(4,7) gave %d", n)
		}
	}
	if n, deferred := EvaluateLimit(rng, Fixed(6)); n != 6 || deferred {
		t.Fatalf("fixed(6) gave %d deferred=%v", n, deferred)
	}
	if _, deferred := EvaluateLimit(rng, Entirely()); !deferred {
		t.Fatal("entirely must be deferred")
	}
}

func TestEntirelyTracksLiveLengths(t *testing.T) {
	a := newCollection("a", 3)
	b := newCollection("b", 2)
	c := New(Config{ID: "c", Sources: []Source{{Collection: a, Weight: 1}, {Collection: b, Weight: 1}}, Limit: Entirely(), Rand: seeded()})

	if !c.Select(false) {
		t.Fatal("expected select to succeed")
	}
	if got := c.Max(); got != 5 {
		t.Fatalf("max = %d, want 5", got)
	}
	b.Push(&library.Track{ID: "b3"})
	a.Remove("a1")
	if got := c.Max(); got != 5 {
		t.Fatalf("max after mutation = %d, want 5", got)
	}
	a.Push(&library.Track{ID: "a9"}, &library.Track{ID: "a10"})
	if got := c.Max(); got != 7 {
		t.Fatalf("max after growth = %d, want 7", got)
	}
}

func TestSelectDeclinesOnChance(t *testing.T) {
	c := New(Config{ID: "c", Sources: []Source{{Collection: newCollection("a", 1), Weight: 1}}, Limit: Fixed(3), Chance: Ratio(0, 1), Rand: seeded()})
	if c.Select(false) {
		t.Fatal("0:1 chance must decline")
	}
	if c.Max() != 0 {
		t.Fatalf("declined crate must have max 0, got %d", c.Max())
	}
	if !c.Select(true) {
		t.Fatal("forced select must ignore chance")
	}
	if c.Max() != 3 {
		t.Fatalf("max = %d, want 3", c.Max())
	}
}

func TestCrateContains(t *testing.T) {
	c := New(Config{ID: "c", Sources: []Source{{Collection: newCollection("a", 1), Weight: 1}}})
	if !c.Contains("a") || c.Contains("b") {
		t.Fatal("contains mismatch")
	}
}
