/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package library holds the track and collection primitives the sequencer
// draws from.
package library

import (
	"strings"
)

// TrackKind distinguishes how a track entered the playout queue.
type TrackKind string

const (
	KindNormal    TrackKind = "normal"
	KindRequest   TrackKind = "request"
	KindInsertion TrackKind = "insertion"
)

// Tags carries the metadata used for artist separation.
type Tags struct {
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Artist  string   `json:"artist,omitempty" yaml:"artist,omitempty"`
	Album   string   `json:"album,omitempty" yaml:"album,omitempty"`
	Artists []string `json:"artists,omitempty" yaml:"artists,omitempty"`
}

// Extra is the optional payload attached to a track.
type Extra struct {
	Kind        TrackKind `json:"kind"`
	Tags        *Tags     `json:"tags,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Priority    int       `json:"priority,omitempty"`
}

// LatchOrder records a track's position inside a latch session.
type LatchOrder struct {
	SessionID string `json:"session_id"`
	Order     [2]int `json:"order"`
}

// Sequencing is attached to a track while it is queued or playing.
type Sequencing struct {
	ProfileID string      `json:"profile_id"`
	CrateID   string      `json:"crate_id"`
	PlayOrder [2]int      `json:"play_order"`
	Latch     *LatchOrder `json:"latch,omitempty"`
}

// Track is one playable item owned by a Collection.
type Track struct {
	ID           string      `json:"id"`
	Path         string      `json:"path"`
	CollectionID string      `json:"collection_id"`
	Extra        *Extra      `json:"extra,omitempty"`
	Sequencing   *Sequencing `json:"sequencing,omitempty"`
}

// Kind returns the track kind, defaulting to KindNormal.
func (t *Track) Kind() TrackKind {
	if t == nil || t.Extra == nil || t.Extra.Kind == "" {
		return KindNormal
	}
	return t.Extra.Kind
}

// IsRequest reports whether the track was queued from the request queue.
func (t *Track) IsRequest() bool {
	return t.Kind() == KindRequest
}

// Tags returns the track tags or nil.
func (t *Track) Tags() *Tags {
	if t == nil || t.Extra == nil {
		return nil
	}
	return t.Extra.Tags
}

// WithSequencing returns a copy of the track carrying the sequencing record.
// The library's own track is left untouched.
func (t *Track) WithSequencing(seq Sequencing) *Track {
	out := *t
	out.Sequencing = &seq
	return &out
}

// WithExtra returns a copy of the track with the given payload.
func (t *Track) WithExtra(extra *Extra) *Track {
	out := *t
	out.Extra = extra
	return &out
}

// ClearSequencing drops the transient sequencing record.
func (t *Track) ClearSequencing() {
	t.Sequencing = nil
}

var artistSeparators = []string{" feat. ", " feat ", " ft. ", " ft ", " x ", ",", ";", "&", "/"}

// ArtistNames returns the individual artist names found in the tags.
func (t *Tags) ArtistNames() []string {
	if t == nil {
		return nil
	}
	if len(t.Artists) > 0 {
		return dedupe(t.Artists)
	}
	if strings.TrimSpace(t.Artist) == "" {
		return nil
	}

	parts := []string{t.Artist}
	for _, sep := range artistSeparators {
		var next []string
		for _, p := range parts {
			next = append(next, splitFold(p, sep)...)
		}
		parts = next
	}
	return dedupe(parts)
}

func splitFold(s, sep string) []string {
	var out []string
	lower := strings.ToLower(s)
	for {
		idx := strings.Index(lower, sep)
		if idx < 0 {
			return append(out, s)
		}
		out = append(out, s[:idx])
		s = s[idx+len(sep):]
		lower = lower[idx+len(sep):]
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}
