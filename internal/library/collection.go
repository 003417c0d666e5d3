/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import "sync"

// Collection is an ordered pool of tracks that rotates as it is played.
type Collection struct {
	id            string
	name          string
	latchDisabled bool

	mu     sync.Mutex
	tracks []*Track
}

// NewCollection creates an empty collection.
func NewCollection(id, name string) *Collection {
	return &Collection{id: id, name: name}
}

// ID returns the stable collection id.
func (c *Collection) ID() string { return c.id }

// Name returns the display name.
func (c *Collection) Name() string { return c.name }

// LatchDisabled reports whether latch sessions may bind to this collection.
func (c *Collection) LatchDisabled() bool { return c.latchDisabled }

// SetLatchDisabled toggles latching for the collection.
func (c *Collection) SetLatchDisabled(disabled bool) { c.latchDisabled = disabled }

// Len returns the number of tracks.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tracks)
}

// Shift removes and returns the front track.
func (c *Collection) Shift() (*Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tracks) == 0 {
		return nil, false
	}
	t := c.tracks[0]
	c.tracks[0] = nil
	c.tracks = c.tracks[1:]
	return t, true
}

// Push appends tracks to the back and returns the new length.
func (c *Collection) Push(tracks ...*Track) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tracks {
		if t == nil {
			continue
		}
		t.CollectionID = c.id
		c.tracks = append(c.tracks, t)
	}
	return len(c.tracks)
}

// Find returns the track with the given id.
func (c *Collection) Find(trackID string) (*Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tracks {
		if t.ID == trackID {
			return t, true
		}
	}
	return nil, false
}

// Remove deletes every occurrence of the track and reports whether any was found.
func (c *Collection) Remove(trackID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.tracks[:0]
	removed := false
	for _, t := range c.tracks {
		if t.ID == trackID {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(c.tracks); i++ {
		c.tracks[i] = nil
	}
	c.tracks = kept
	return removed
}

// Snapshot returns the tracks in their current order.
func (c *Collection) Snapshot() []*Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}
