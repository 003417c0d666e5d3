/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package boombox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/crate"
	"github.com/friendsincode/boombox/internal/library"
	"github.com/friendsincode/boombox/internal/telemetry"
)

// Request is a track waiting in the request queue.
type Request struct {
	ID          string         `json:"id"`
	Track       *library.Track `json:"track"`
	Priority    int            `json:"priority"`
	RequestedBy string         `json:"requested_by,omitempty"`
	AddedAt     time.Time      `json:"added_at"`
}

// RequestQueue holds listener requests ordered by priority, then age.
type RequestQueue struct {
	mu      sync.Mutex
	entries []Request
	logger  zerolog.Logger
}

// NewRequestQueue creates an empty request queue.
func NewRequestQueue(logger zerolog.Logger) *RequestQueue {
	return &RequestQueue{logger: logger}
}

// Add queues a request copy of track and returns the request id.
func (q *RequestQueue) Add(track *library.Track, priority int, requestedBy string) string {
	extra := &library.Extra{}
	if track.Extra != nil {
		*extra = *track.Extra
	}
	extra.Kind = library.KindRequest
	extra.Priority = priority
	extra.RequestedBy = requestedBy

	req := Request{
		ID:          uuid.NewString(),
		Track:       track.WithExtra(extra),
		Priority:    priority,
		RequestedBy: requestedBy,
		AddedAt:     time.Now(),
	}
	req.Track.Sequencing = nil

	q.mu.Lock()
	defer q.mu.Unlock()

	// insert after every entry of the same or higher priority
	pos := len(q.entries)
	for i, e := range q.entries {
		if e.Priority < priority {
			pos = i
			break
		}
	}
	q.entries = append(q.entries, Request{})
	copy(q.entries[pos+1:], q.entries[pos:])
	q.entries[pos] = req
	telemetry.RequestQueueDepth.Set(float64(len(q.entries)))
	return req.ID
}

// Remove drops a request by id.
func (q *RequestQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			telemetry.RequestQueueDepth.Set(float64(len(q.entries)))
			return true
		}
	}
	return false
}

// List returns the pending requests in fetch order.
func (q *RequestQueue) List() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Request(nil), q.entries...)
}

// Len returns the number of pending requests.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Next takes the first request that is not locked and whose file loads.
// Unloadable requests are dropped; locked ones stay queued.
func (q *RequestQueue) Next(ctx context.Context, validate crate.Validator, locked func(*library.Track) bool) *library.Track {
	for _, req := range q.List() {
		if locked != nil && locked(req.Track) {
			continue
		}
		if validate != nil {
			ok, err := validate.Check(ctx, req.Track.Path)
			if err != nil || !ok {
				q.logger.Warn().Err(err).
					Str("request_id", req.ID).
					Str("path", req.Track.Path).
					Msg("dropping unloadable request")
				q.Remove(req.ID)
				continue
			}
		}
		// a concurrent Remove may have won
		if !q.Remove(req.ID) {
			continue
		}
		return req.Track
	}
	return nil
}
