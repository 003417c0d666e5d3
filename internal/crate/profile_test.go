/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package crate

import (
	"reflect"
	"testing"
)

type recordingOwner struct {
	calls int
}

func (o *recordingOwner) ProfileMutated(*Profile) { o.calls++ }

func crateIDs(p *Profile) []string {
	var out []string
	for _, c := range p.Crates() {
		out = append(out, c.ID())
	}
	return out
}

func newProfile() *Profile {
	return NewProfile("p", "Profile",
		New(Config{ID: "c1", Sources: []Source{{Collection: newCollection("a", 1), Weight: 1}}}),
		New(Config{ID: "c2", Sources: []Source{{Collection: newCollection("b", 1), Weight: 1}}}),
		New(Config{ID: "c3", Sources: []Source{{Collection: newCollection("c", 1), Weight: 1}}}),
	)
}

func TestProfileMutationsNotifyOwner(t *testing.T) {
	p := newProfile()
	owner := &recordingOwner{}
	p.Attach(owner)

	if !p.Move("c3", 0) {
		t.Fatal("move failed")
	}
	if got := crateIDs(p); !reflect.DeepEqual(got, []string{"c3", "c1", "c2"}) {
		t.Fatalf("after move: %v", got)
	}
	if !p.Remove("c1") {
		t.Fatal("remove failed")
	}
	p.Add(New(Config{ID: "c4"}))
	if got := crateIDs(p); !reflect.DeepEqual(got, []string{"c3", "c2", "c4"}) {
		t.Fatalf("after remove+add: %v", got)
	}
	if owner.calls != 3 {
		t.Fatalf("owner notified %d times, want 3", owner.calls)
	}

	p.Detach(owner)
	p.Remove("c4")
	if owner.calls != 3 {
		t.Fatal("detached owner must not be notified")
	}
}

func TestProfileMoveClampsAndUnknown(t *testing.T) {
	p := newProfile()
	if p.Move("missing", 0) || p.Remove("missing") {
		t.Fatal("unknown crate must not be moved or removed")
	}
	p.Move("c1", 99)
	if got := crateIDs(p); !reflect.DeepEqual(got, []string{"c2", "c3", "c1"}) {
		t.Fatalf("clamped move: %v", got)
	}
}

func TestProfileIndexOfCollectionWraps(t *testing.T) {
	p := newProfile()
	if idx := p.IndexOfCollection("a", 1); idx != 0 {
		t.Fatalf("expected wrap-around to index 0, got %d", idx)
	}
	if idx := p.IndexOfCollection("c", 1); idx != 2 {
		t.Fatalf("expected forward search to index 2, got %d", idx)
	}
	if idx := p.IndexOfCollection("zzz", 0); idx != -1 {
		t.Fatalf("expected -1, got %d", idx)
	}
	if idx := NewProfile("e", "Empty").IndexOfCollection("a", 0); idx != -1 {
		t.Fatalf("empty profile must give -1, got %d", idx)
	}
}
