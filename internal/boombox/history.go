/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package boombox

import (
	"strings"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

const (
	// DefaultHistorySize is how many artists the history keeps.
	DefaultHistorySize = 50
	// DefaultSimilarityThreshold is the score at which two artists count
	// as the same.
	DefaultSimilarityThreshold = 0.48
)

// ArtistHistory is a bounded list of recently played artists, oldest first.
type ArtistHistory struct {
	mu        sync.Mutex
	capacity  int
	threshold float64
	metric    strutil.StringMetric
	artists   []string
}

// NewArtistHistory creates a history holding up to capacity artists.
func NewArtistHistory(capacity int, threshold float64) *ArtistHistory {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	if threshold < 0 {
		threshold = DefaultSimilarityThreshold
	}
	dice := metrics.NewSorensenDice()
	dice.CaseSensitive = false
	return &ArtistHistory{
		capacity:  capacity,
		threshold: threshold,
		metric:    dice,
	}
}

func normalizeArtist(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Add appends artists and trims the oldest ones past capacity.
func (h *ArtistHistory) Add(artists ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range artists {
		if a = normalizeArtist(a); a != "" {
			h.artists = append(h.artists, a)
		}
	}
	if over := len(h.artists) - h.capacity; over > 0 {
		h.artists = append([]string(nil), h.artists[over:]...)
	}
}

// Match returns the first history artist similar to any candidate artist.
func (h *ArtistHistory) Match(artists []string) (candidate, recent string, score float64, ok bool) {
	h.mu.Lock()
	recentArtists := append([]string(nil), h.artists...)
	h.mu.Unlock()

	for _, a := range artists {
		norm := normalizeArtist(a)
		if norm == "" {
			continue
		}
		for _, r := range recentArtists {
			s := h.similarity(norm, r)
			if s >= h.threshold {
				return a, r, s, true
			}
		}
	}
	return "", "", 0, false
}

func (h *ArtistHistory) similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return strutil.Similarity(a, b, h.metric)
}

// Relieve drops the oldest half of the history, at least one entry.
func (h *ArtistHistory) Relieve() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	drop := (len(h.artists) + 1) / 2
	h.artists = append([]string(nil), h.artists[drop:]...)
	return drop
}

// Snapshot returns the artists, oldest first.
func (h *ArtistHistory) Snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.artists...)
}

// Restore replaces the history, keeping the newest entries within capacity.
func (h *ArtistHistory) Restore(artists []string) {
	h.mu.Lock()
	h.artists = nil
	h.mu.Unlock()
	h.Add(artists...)
}

// Len returns the number of artists held.
func (h *ArtistHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.artists)
}

// Threshold returns the similarity threshold.
func (h *ArtistHistory) Threshold() float64 {
	return h.threshold
}
