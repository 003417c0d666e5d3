/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package crate

import "sync"

// Owner is notified whenever the crate list of an attached profile changes.
type Owner interface {
	ProfileMutated(p *Profile)
}

// Profile is an ordered list of crates forming one rotation program.
type Profile struct {
	id   string
	name string

	mu     sync.RWMutex
	crates []*Crate
	owner  Owner
}

// NewProfile creates a profile.
func NewProfile(id, name string, crates ...*Crate) *Profile {
	return &Profile{id: id, name: name, crates: append([]*Crate(nil), crates...)}
}

// ID returns the profile id.
func (p *Profile) ID() string { return p.id }

// Name returns the profile name.
func (p *Profile) Name() string { return p.name }

// Crates returns the crates in rotation order.
func (p *Profile) Crates() []*Crate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Crate, len(p.crates))
	copy(out, p.crates)
	return out
}

// Len returns the number of crates.
func (p *Profile) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.crates)
}

// Crate returns the crate with the given id.
func (p *Profile) Crate(id string) (*Crate, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.crates {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Attach sets the profile's owner.
func (p *Profile) Attach(owner Owner) {
	p.mu.Lock()
	p.owner = owner
	p.mu.Unlock()
}

// Detach clears the owner if it is the given one.
func (p *Profile) Detach(owner Owner) {
	p.mu.Lock()
	if p.owner == owner {
		p.owner = nil
	}
	p.mu.Unlock()
}

// Add appends crates to the rotation.
func (p *Profile) Add(crates ...*Crate) {
	p.mu.Lock()
	p.crates = append(p.crates, crates...)
	owner := p.owner
	p.mu.Unlock()
	p.notify(owner)
}

// Remove drops the crate with the given id.
func (p *Profile) Remove(crateID string) bool {
	p.mu.Lock()
	idx := p.indexLocked(crateID)
	if idx < 0 {
		p.mu.Unlock()
		return false
	}
	p.crates = append(p.crates[:idx], p.crates[idx+1:]...)
	owner := p.owner
	p.mu.Unlock()
	p.notify(owner)
	return true
}

// Move relocates a crate to newIndex, clamped to the list bounds.
func (p *Profile) Move(crateID string, newIndex int) bool {
	p.mu.Lock()
	idx := p.indexLocked(crateID)
	if idx < 0 {
		p.mu.Unlock()
		return false
	}
	c := p.crates[idx]
	p.crates = append(p.crates[:idx], p.crates[idx+1:]...)
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(p.crates) {
		newIndex = len(p.crates)
	}
	p.crates = append(p.crates[:newIndex], append([]*Crate{c}, p.crates[newIndex:]...)...)
	owner := p.owner
	p.mu.Unlock()
	p.notify(owner)
	return true
}

// IndexOfCollection returns the first crate at or after from (wrapping)
// that holds the collection, or -1.
func (p *Profile) IndexOfCollection(collectionID string, from int) int {
	crates := p.Crates()
	n := len(crates)
	if n == 0 {
		return -1
	}
	if from < 0 || from >= n {
		from = 0
	}
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		if crates[idx].Contains(collectionID) {
			return idx
		}
	}
	return -1
}

func (p *Profile) indexLocked(crateID string) int {
	for i, c := range p.crates {
		if c.ID() == crateID {
			return i
		}
	}
	return -1
}

func (p *Profile) notify(owner Owner) {
	if owner != nil {
		owner.ProfileMutated(p)
	}
}
