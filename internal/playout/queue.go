/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"sync"

	"github.com/friendsincode/boombox/internal/library"
	"github.com/friendsincode/boombox/internal/telemetry"
)

// Queue is the playback queue: tracks waiting to play plus the one on air.
type Queue struct {
	mu      sync.Mutex
	tracks  []*library.Track
	current *library.Track
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends a track and returns the new length.
func (q *Queue) Add(track *library.Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = append(q.tracks, track)
	telemetry.PlaybackQueueDepth.Set(float64(len(q.tracks)))
	return len(q.tracks)
}

// Len returns the number of waiting tracks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Pop moves the head of the queue on air and returns it. The previous
// track loses its sequencing record.
func (q *Queue) Pop() (*library.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil {
		q.current.ClearSequencing()
		q.current = nil
	}
	if len(q.tracks) == 0 {
		telemetry.PlaybackQueueDepth.Set(0)
		return nil, false
	}
	q.current = q.tracks[0]
	q.tracks[0] = nil
	q.tracks = q.tracks[1:]
	telemetry.PlaybackQueueDepth.Set(float64(len(q.tracks)))
	return q.current, true
}

// Current returns the track on air.
func (q *Queue) Current() *library.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// List returns the waiting tracks in play order.
func (q *Queue) List() []*library.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*library.Track(nil), q.tracks...)
}

// Locked reports whether the track is on air or already waiting.
func (q *Queue) Locked(track *library.Track) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil && q.current.ID == track.ID {
		return true
	}
	for _, t := range q.tracks {
		if t.ID == track.ID {
			return true
		}
	}
	return false
}
