/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package boombox turns sequencer output into a playback queue, serving
// requests first and keeping artists apart.
package boombox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/crate"
	"github.com/friendsincode/boombox/internal/events"
	"github.com/friendsincode/boombox/internal/library"
	"github.com/friendsincode/boombox/internal/notify"
	"github.com/friendsincode/boombox/internal/sequencer"
	"github.com/friendsincode/boombox/internal/telemetry"
)

// ErrNoTrack is returned when neither a request nor the sequencer produced
// a track.
var ErrNoTrack = errors.New("boombox: no track available")

// Queue is the playback queue tracks are pushed onto.
type Queue interface {
	Add(track *library.Track) int
	Len() int
}

// TagReader reads tags from a track file.
type TagReader interface {
	ReadTags(ctx context.Context, path string) (*library.Tags, error)
}

// PlayRecorder persists play history.
type PlayRecorder interface {
	RecordPlay(ctx context.Context, track *library.Track) error
}

// HistoryStore persists the artist history between restarts.
type HistoryStore interface {
	SaveArtistHistory(ctx context.Context, artists []string) error
	LoadArtistHistory(ctx context.Context) ([]string, error)
}

// Mode is how a queued track was sequenced.
type Mode string

const (
	ModeRotation Mode = "rotation"
	ModeLatch    Mode = "latch"
	ModeRequest  Mode = "request"
)

// Sequence identifies a sequencing mode; latches are told apart by session.
type Sequence struct {
	Mode    Mode   `json:"mode"`
	LatchID string `json:"latch_id,omitempty"`
}

func sequenceOf(track *library.Track) Sequence {
	switch {
	case track.IsRequest():
		return Sequence{Mode: ModeRequest}
	case track.Sequencing != nil && track.Sequencing.Latch != nil:
		return Sequence{Mode: ModeLatch, LatchID: track.Sequencing.Latch.SessionID}
	default:
		return Sequence{Mode: ModeRotation}
	}
}

// Options configures a BoomBox.
type Options struct {
	Sequencer *sequencer.Sequencer
	Queue     Queue
	// Validator checks request files before they are queued.
	Validator crate.Validator
	// Locked reports requests that must wait, such as a track already
	// queued or on air.
	Locked              func(track *library.Track) bool
	Tags                TagReader
	Recorder            PlayRecorder
	HistoryStore        HistoryStore
	Publisher           events.Publisher
	HistorySize         int
	SimilarityThreshold float64
	Logger              zerolog.Logger
}

// State is the bookkeeping of the last queued track.
type State struct {
	CollectionID string   `json:"collection_id,omitempty"`
	CrateID      string   `json:"crate_id,omitempty"`
	ProfileID    string   `json:"profile_id,omitempty"`
	Sequence     Sequence `json:"sequence"`
}

// BoomBox orchestrates requests, the sequencer and the playback queue.
type BoomBox struct {
	seq       *sequencer.Sequencer
	queue     Queue
	requests  *RequestQueue
	history   *ArtistHistory
	validate  crate.Validator
	locked    func(*library.Track) bool
	tags      TagReader
	recorder  PlayRecorder
	store     HistoryStore
	publisher events.Publisher
	logger    zerolog.Logger

	preparing sync.Mutex

	mu    sync.Mutex
	state State

	unsubscribe []func()

	sequenceChange   notify.List[SequenceChangeFunc]
	collectionChange notify.List[IDChangeFunc]
	crateChange      notify.List[IDChangeFunc]
	profileChange    notify.List[IDChangeFunc]
	trackQueued      notify.List[TrackQueuedFunc]
	errors           notify.List[ErrorFunc]
}

// New wires a BoomBox to its sequencer. The sequencer's verifier is
// replaced with the artist separation check.
func New(opts Options) (*BoomBox, error) {
	if opts.Sequencer == nil {
		return nil, fmt.Errorf("boombox: sequencer is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("boombox: queue is required")
	}
	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}

	b := &BoomBox{
		seq:       opts.Sequencer,
		queue:     opts.Queue,
		requests:  NewRequestQueue(opts.Logger),
		history:   NewArtistHistory(opts.HistorySize, threshold),
		validate:  opts.Validator,
		locked:    opts.Locked,
		tags:      opts.Tags,
		recorder:  opts.Recorder,
		store:     opts.HistoryStore,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}

	b.seq.SetVerifier(b.Verify)
	b.unsubscribe = append(b.unsubscribe,
		b.seq.OnRescue(b.handleRescue),
		b.seq.OnLatchCreated(func(l sequencer.LatchSession) {
			b.publish(events.EventLatchCreated, events.Payload{
				"latch_id":      l.ID,
				"collection_id": l.CollectionID,
				"max":           l.Max,
			})
		}),
		b.seq.OnLatchRemoved(func(l sequencer.LatchSession) {
			b.publish(events.EventLatchRemoved, events.Payload{
				"latch_id":      l.ID,
				"collection_id": l.CollectionID,
				"count":         l.Count,
				"max":           l.Max,
			})
		}),
		b.seq.OnNoCrates(func(p *crate.Profile) {
			b.publish(events.EventNoCrates, events.Payload{"profile_id": p.ID()})
		}),
	)
	return b, nil
}

// Close detaches the BoomBox from the sequencer's notifications.
func (b *BoomBox) Close() {
	for _, fn := range b.unsubscribe {
		fn()
	}
	b.unsubscribe = nil
}

// Sequencer returns the underlying sequencer.
func (b *BoomBox) Sequencer() *sequencer.Sequencer { return b.seq }

// Requests returns the request queue.
func (b *BoomBox) Requests() *RequestQueue { return b.requests }

// History returns the artist history.
func (b *BoomBox) History() *ArtistHistory { return b.history }

// State returns the bookkeeping of the last queued track.
func (b *BoomBox) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Request queues a track ahead of the rotation.
func (b *BoomBox) Request(track *library.Track, priority int, requestedBy string) string {
	id := b.requests.Add(track, priority, requestedBy)
	b.logger.Info().
		Str("request_id", id).
		Str("track_id", track.ID).
		Int("priority", priority).
		Str("requested_by", requestedBy).
		Msg("request queued")
	b.publish(events.EventRequestAdded, events.Payload{
		"request_id":   id,
		"track_id":     track.ID,
		"priority":     priority,
		"requested_by": requestedBy,
	})
	return id
}

// RestoreHistory loads the persisted artist history, if a store is set.
func (b *BoomBox) RestoreHistory(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	artists, err := b.store.LoadArtistHistory(ctx)
	if err != nil {
		return fmt.Errorf("load artist history: %w", err)
	}
	b.history.Restore(artists)
	telemetry.ArtistHistorySize.Set(float64(b.history.Len()))
	b.logger.Info().Int("artists", b.history.Len()).Msg("artist history restored")
	return nil
}

// Prepare queues one more track. done is called exactly once: at once
// when the queue already holds a track, otherwise with the outcome. The
// queued track is returned, or nil when nothing was available.
func (b *BoomBox) Prepare(ctx context.Context, done func(ok bool)) *library.Track {
	ctx, span := telemetry.StartSpan(ctx, "boombox.prepare")
	defer span.End()

	b.preparing.Lock()
	defer b.preparing.Unlock()

	acked := false
	ack := func(ok bool) {
		if done != nil && !acked {
			acked = true
			done(ok)
		}
	}
	if b.queue.Len() > 0 {
		ack(true)
	}

	track := b.requests.Next(ctx, b.validate, b.locked)
	if track == nil {
		track = b.seq.NextTrack(ctx)
	}
	if track == nil {
		telemetry.PrepareMisses.Inc()
		telemetry.RecordError(span, ErrNoTrack)
		b.logger.Debug().Msg("no track to prepare")
		ack(false)
		return nil
	}

	telemetry.AddSpanAttributes(span, map[string]any{
		"track_id":      track.ID,
		"collection_id": track.CollectionID,
	})
	b.enqueue(track)
	ack(true)
	return track
}

func (b *BoomBox) enqueue(track *library.Track) {
	request := track.IsRequest()
	latched := track.Sequencing != nil && track.Sequencing.Latch != nil

	b.mu.Lock()
	prev := b.state
	next := prev
	next.CollectionID = track.CollectionID
	next.Sequence = sequenceOf(track)
	if !request && track.Sequencing != nil {
		next.ProfileID = track.Sequencing.ProfileID
		if !latched {
			next.CrateID = track.Sequencing.CrateID
		}
	}
	b.state = next
	b.mu.Unlock()

	if prev.Sequence != next.Sequence {
		b.sequenceChange.Each(func(fn SequenceChangeFunc) { fn(prev.Sequence, next.Sequence) })
		b.publish(events.EventSequenceChange, events.Payload{
			"previous": prev.Sequence,
			"current":  next.Sequence,
		})
	}
	if prev.CollectionID != next.CollectionID {
		b.emitIDChange(&b.collectionChange, events.EventCollectionChange, prev.CollectionID, next.CollectionID)
	}
	if prev.CrateID != next.CrateID {
		b.emitIDChange(&b.crateChange, events.EventCrateChange, prev.CrateID, next.CrateID)
	}
	if prev.ProfileID != next.ProfileID {
		b.emitIDChange(&b.profileChange, events.EventProfileChange, prev.ProfileID, next.ProfileID)
	}

	b.queue.Add(track)
	telemetry.TracksQueuedTotal.WithLabelValues(string(next.Sequence.Mode)).Inc()
	telemetry.ActiveLatches.Set(float64(len(b.seq.Latches())))
	b.logger.Info().
		Str("track_id", track.ID).
		Str("collection_id", track.CollectionID).
		Str("mode", string(next.Sequence.Mode)).
		Msg("track queued")

	b.trackQueued.Each(func(fn TrackQueuedFunc) { fn(track) })
	b.publish(events.EventTrackQueued, trackPayload(track))
}

func (b *BoomBox) emitIDChange(subs *notify.List[IDChangeFunc], eventType events.EventType, prev, next string) {
	subs.Each(func(fn IDChangeFunc) { fn(prev, next) })
	b.publish(eventType, events.Payload{"previous": prev, "current": next})
}

// Verify is the sequencer's verifier: it rejects tracks whose artists are
// too close to a recently played one and fills in missing tags.
func (b *BoomBox) Verify(ctx context.Context, track *library.Track) (sequencer.Verdict, error) {
	tags := track.Tags()
	var extra *library.Extra
	if tags == nil && b.tags != nil {
		read, err := b.tags.ReadTags(ctx, track.Path)
		if err != nil {
			b.logger.Debug().Err(err).Str("path", track.Path).Msg("tags unavailable")
		} else {
			tags = read
			extra = &library.Extra{}
			if track.Extra != nil {
				*extra = *track.Extra
			}
			extra.Tags = read
		}
	}

	candidate, recent, score, similar := b.history.Match(tags.ArtistNames())
	if similar {
		telemetry.CandidatesRejected.WithLabelValues("artist").Inc()
		b.logger.Debug().
			Str("track_id", track.ID).
			Str("artist", candidate).
			Str("recent", recent).
			Float64("score", score).
			Msg("artist played recently")
		return sequencer.Verdict{ShouldPlay: false}, nil
	}
	return sequencer.Verdict{ShouldPlay: true, Extra: extra}, nil
}

// TrackStarted records a track that began playing.
func (b *BoomBox) TrackStarted(ctx context.Context, track *library.Track) {
	artists := track.Tags().ArtistNames()
	b.history.Add(artists...)
	telemetry.ArtistHistorySize.Set(float64(b.history.Len()))
	telemetry.TracksPlayedTotal.Inc()

	if b.recorder != nil {
		if err := b.recorder.RecordPlay(ctx, track); err != nil {
			b.reportError(fmt.Errorf("record play %s: %w", track.ID, err))
		}
	}
	if b.store != nil {
		if err := b.store.SaveArtistHistory(ctx, b.history.Snapshot()); err != nil {
			b.reportError(fmt.Errorf("save artist history: %w", err))
		}
	}

	b.logger.Info().
		Str("track_id", track.ID).
		Strs("artists", artists).
		Msg("now playing")
	b.publish(events.EventNowPlaying, trackPayload(track))
}

func (b *BoomBox) handleRescue(scanned, ignored int) {
	dropped := b.history.Relieve()
	telemetry.RescuesTotal.Inc()
	telemetry.ArtistHistorySize.Set(float64(b.history.Len()))
	b.logger.Warn().
		Int("scanned", scanned).
		Int("ignored", ignored).
		Int("dropped", dropped).
		Msg("all candidates rejected, relaxing artist history")
	b.publish(events.EventRescue, events.Payload{
		"scanned": scanned,
		"ignored": ignored,
		"dropped": dropped,
	})
}

func (b *BoomBox) reportError(err error) {
	b.logger.Error().Err(err).Msg("boombox collaborator failed")
	b.errors.Each(func(fn ErrorFunc) { fn(err) })
	b.publish(events.EventError, events.Payload{"error": err.Error()})
}

func (b *BoomBox) publish(eventType events.EventType, payload events.Payload) {
	if b.publisher != nil {
		b.publisher.Publish(eventType, payload)
	}
}

func trackPayload(track *library.Track) events.Payload {
	p := events.Payload{
		"track_id":      track.ID,
		"path":          track.Path,
		"collection_id": track.CollectionID,
		"kind":          string(track.Kind()),
	}
	if tags := track.Tags(); tags != nil {
		p["title"] = tags.Title
		p["artist"] = tags.Artist
	}
	if seq := track.Sequencing; seq != nil {
		p["profile_id"] = seq.ProfileID
		p["crate_id"] = seq.CrateID
		p["play_order"] = seq.PlayOrder
		if seq.Latch != nil {
			p["latch_id"] = seq.Latch.SessionID
			p["latch_order"] = seq.Latch.Order
		}
	}
	return p
}
