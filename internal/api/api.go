/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the engine's control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/boombox/internal/boombox"
	"github.com/friendsincode/boombox/internal/crate"
	"github.com/friendsincode/boombox/internal/events"
	"github.com/friendsincode/boombox/internal/library"
	"github.com/friendsincode/boombox/internal/playout"
	"github.com/friendsincode/boombox/internal/sequencer"
	"github.com/friendsincode/boombox/internal/telemetry"
)

// Library resolves ids from requests into runtime objects.
type Library interface {
	Collection(id string) (*library.Collection, bool)
	Profile(id string) (*crate.Profile, bool)
	Track(collectionID, trackID string) (*library.Track, bool)
}

// ProfileStore persists the active profile.
type ProfileStore interface {
	SetActiveProfile(ctx context.Context, profileID string) error
}

// Player controls the track on air.
type Player interface {
	Skip(ctx context.Context) *library.Track
	NowPlaying() (*library.Track, time.Time)
}

// Options wires the API to the engine.
type Options struct {
	Box      *boombox.BoomBox
	Queue    *playout.Queue
	Player   Player
	Library  Library
	Profiles ProfileStore
	Bus      events.Broker
	Logger   zerolog.Logger
}

// API exposes HTTP handlers.
type API struct {
	box      *boombox.BoomBox
	seq      *sequencer.Sequencer
	queue    *playout.Queue
	player   Player
	library  Library
	profiles ProfileStore
	bus      events.Broker
	logger   zerolog.Logger
}

// New creates the API router wrapper.
func New(opts Options) *API {
	return &API{
		box:      opts.Box,
		seq:      opts.Box.Sequencer(),
		queue:    opts.Queue,
		player:   opts.Player,
		library:  opts.Library,
		profiles: opts.Profiles,
		bus:      opts.Bus,
		logger:   opts.Logger.With().Str("component", "api").Logger(),
	}
}

// Handler returns a traced router with the API and the metrics endpoint
// mounted.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.MetricsMiddleware)

	a.Routes(r)
	r.Handle("/metrics", telemetry.Handler())
	return otelhttp.NewHandler(r, "boombox.api",
		otelhttp.WithFilter(func(req *http.Request) bool { return req.URL.Path != "/metrics" }),
	)
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/status", a.handleStatus)
		r.Get("/history", a.handleHistory)
		r.Get("/events", a.handleEvents)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", a.handleQueue)
			r.Post("/skip", a.handleSkip)
		})

		r.Route("/latch", func(r chi.Router) {
			r.Get("/", a.handleLatchGet)
			r.Post("/", a.handleLatchSet)
			r.Delete("/", a.handleLatchDelete)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", a.handleRequestsList)
			r.Post("/", a.handleRequestsCreate)
			r.Delete("/{requestID}", a.handleRequestsDelete)
		})

		r.Post("/profiles/{profileID}/activate", a.handleProfileActivate)
		r.Post("/collections/{collectionID}/select", a.handleCollectionSelect)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"queued":  a.queue.Len(),
		"profile": a.seq.Profile().ID(),
	})
}

type nowPlaying struct {
	Track     *library.Track `json:"track"`
	StartedAt time.Time      `json:"started_at"`
}

type statusResponse struct {
	Sequencer  sequencer.Status `json:"sequencer"`
	BoomBox    boombox.State    `json:"boombox"`
	NowPlaying *nowPlaying      `json:"now_playing,omitempty"`
	Queued     int              `json:"queued"`
	Requests   int              `json:"requests"`
	History    int              `json:"artist_history"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Sequencer: a.seq.Status(),
		BoomBox:   a.box.State(),
		Queued:    a.queue.Len(),
		Requests:  a.box.Requests().Len(),
		History:   a.box.History().Len(),
	}
	if a.player != nil {
		if track, started := a.player.NowPlaying(); track != nil {
			resp.NowPlaying = &nowPlaying{Track: track, StartedAt: started}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"artists":   a.box.History().Snapshot(),
		"threshold": a.box.History().Threshold(),
	})
}

func (a *API) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"current":  a.queue.Current(),
		"upcoming": a.queue.List(),
	})
}

func (a *API) handleSkip(w http.ResponseWriter, r *http.Request) {
	if a.player == nil {
		writeError(w, http.StatusServiceUnavailable, "player_unavailable")
		return
	}
	next := a.player.Skip(r.Context())
	if next == nil {
		writeError(w, http.StatusConflict, "queue_empty")
		return
	}
	a.logger.Info().Str("track_id", next.ID).Msg("skipped to next track")
	writeJSON(w, http.StatusOK, next)
}

func (a *API) handleLatchGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":  a.seq.ActiveLatch(),
		"latches": a.seq.Latches(),
	})
}

type latchRequest struct {
	CollectionID string `json:"collection_id"`
	Increase     int    `json:"increase"`
	Length       *int   `json:"length"`
	Important    bool   `json:"important"`
}

func (a *API) handleLatchSet(w http.ResponseWriter, r *http.Request) {
	var req latchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Length == nil && req.Increase <= 0 {
		writeError(w, http.StatusBadRequest, "increase_or_length_required")
		return
	}
	if req.Length != nil && *req.Length < 0 {
		writeError(w, http.StatusBadRequest, "negative_length")
		return
	}

	opts := &sequencer.LatchOptions{
		Increase:  req.Increase,
		Length:    req.Length,
		Important: req.Important,
	}
	if req.CollectionID != "" {
		col, ok := a.library.Collection(req.CollectionID)
		if !ok {
			writeError(w, http.StatusNotFound, "collection_not_found")
			return
		}
		opts.Collection = col
	}

	session := a.seq.Latch(opts)
	if session == nil {
		// cancelled, latch-disabled collection, or nothing to latch onto yet
		writeJSON(w, http.StatusOK, map[string]any{"latch": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"latch": session})
}

func (a *API) handleLatchDelete(w http.ResponseWriter, r *http.Request) {
	collectionID := r.URL.Query().Get("collection_id")
	if collectionID == "" {
		active := a.seq.ActiveLatch()
		if active == nil {
			writeError(w, http.StatusNotFound, "no_active_latch")
			return
		}
		collectionID = active.CollectionID
	}
	if !a.seq.RemoveLatch(collectionID) {
		writeError(w, http.StatusNotFound, "latch_not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRequestsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"requests": a.box.Requests().List()})
}

type trackRequest struct {
	CollectionID string `json:"collection_id"`
	TrackID      string `json:"track_id"`
	Priority     int    `json:"priority"`
	RequestedBy  string `json:"requested_by"`
}

func (a *API) handleRequestsCreate(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "track_id_required")
		return
	}
	track, ok := a.library.Track(req.CollectionID, req.TrackID)
	if !ok {
		writeError(w, http.StatusNotFound, "track_not_found")
		return
	}

	id := a.box.Request(track, req.Priority, req.RequestedBy)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "track": track})
}

func (a *API) handleRequestsDelete(w http.ResponseWriter, r *http.Request) {
	if !a.box.Requests().Remove(chi.URLParam(r, "requestID")) {
		writeError(w, http.StatusNotFound, "request_not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleProfileActivate(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	profile, ok := a.library.Profile(profileID)
	if !ok {
		writeError(w, http.StatusNotFound, "profile_not_found")
		return
	}

	if a.profiles != nil {
		if err := a.profiles.SetActiveProfile(r.Context(), profileID); err != nil {
			a.logger.Error().Err(err).Str("profile_id", profileID).Msg("persist active profile failed")
			writeError(w, http.StatusInternalServerError, "persist_failed")
			return
		}
	}
	a.seq.SetProfile(profile)
	writeJSON(w, http.StatusOK, a.seq.Status())
}

func (a *API) handleCollectionSelect(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionID")
	if _, ok := a.library.Collection(collectionID); !ok {
		writeError(w, http.StatusNotFound, "collection_not_found")
		return
	}
	if !a.seq.ForceSelect(collectionID) {
		writeError(w, http.StatusConflict, "collection_not_in_profile")
		return
	}
	writeJSON(w, http.StatusOK, a.seq.Status())
}

func (a *API) publish(eventType events.EventType, payload events.Payload) {
	if a.bus != nil {
		a.bus.Publish(eventType, payload)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
