/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/boombox/internal/api"
	"github.com/friendsincode/boombox/internal/boombox"
	"github.com/friendsincode/boombox/internal/cache"
	"github.com/friendsincode/boombox/internal/db"
	"github.com/friendsincode/boombox/internal/eventbus"
	"github.com/friendsincode/boombox/internal/leadership"
	"github.com/friendsincode/boombox/internal/playout"
	"github.com/friendsincode/boombox/internal/telemetry"
	"github.com/friendsincode/boombox/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rotation and the HTTP API",
	Long:  "Load the catalog, keep the playback queue filled from the active profile and serve the control API.",
	RunE:  runServe,
}

var (
	serveProgram string
	serveProfile string
	serveSeed    int64
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveProgram, "program", "", "Program file to import before starting (overrides BOOMBOX_PROGRAM_FILE)")
	serveCmd.Flags().StringVar(&serveProfile, "profile", "", "Profile to start with (overrides BOOMBOX_PROFILE)")
	serveCmd.Flags().Int64Var(&serveSeed, "seed", 0, "Seed for crate sampling, 0 for time seeded")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if serveProgram == "" {
		serveProgram = cfg.ProgramFile
	}
	if serveProfile == "" {
		serveProfile = cfg.ProfileID
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("version", version.Version).Str("node_id", cfg.NodeID).Msg("BoomBox starting")

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "boombox",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	database, store, err := openCatalog(ctx, cfg, serveProgram)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()

	bus, err := eventbus.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer bus.Close()

	history := newHistoryStore(store)
	defer history.Close()

	eng, err := buildEngine(ctx, cfg, store, engineOptions{
		ProfileID:    serveProfile,
		Rand:         randFromSeed(serveSeed),
		Validate:     cfg.ValidateFiles,
		ReadTags:     cfg.ReadTags,
		Record:       true,
		HistoryStore: history,
		Publisher:    bus,
	})
	if err != nil {
		return err
	}
	defer eng.box.Close()

	if cfg.RestoreArtistHistory {
		if err := eng.box.RestoreHistory(ctx); err != nil {
			logger.Warn().Err(err).Msg("artist history not restored")
		}
	}

	election := newElection()
	directorCfg := playout.DirectorConfig{
		Lookahead:   cfg.QueueLookahead,
		TrackLength: cfg.TrackInterval,
		Bus:         bus,
	}
	if election != nil {
		defer election.Close()
		directorCfg.Leader = election.IsLeader
	}
	director := playout.NewDirector(eng.box, eng.queue, directorCfg, logger.With().Str("component", "director").Logger())

	handler := api.New(api.Options{
		Box:      eng.box,
		Queue:    eng.queue,
		Player:   director,
		Library:  eng.library,
		Profiles: store,
		Bus:      bus,
		Logger:   logger,
	}).Handler()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if election != nil {
		g.Go(func() error { return election.Run(gctx) })
	}
	g.Go(func() error {
		err := director.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down gracefully...")
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(timeoutCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("BoomBox stopped")
	return nil
}

// newElection returns nil when election is disabled or Redis is down, in
// which case this node drives the queue on its own.
func newElection() *leadership.Election {
	if !cfg.LeaderElection {
		return nil
	}
	ec := leadership.DefaultConfig()
	ec.RedisAddr = cfg.RedisAddr
	ec.RedisPassword = cfg.RedisPassword
	ec.RedisDB = cfg.RedisDB
	ec.InstanceID = cfg.NodeID
	election, err := leadership.New(ec, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("leader election unavailable, driving the queue locally")
		return nil
	}
	return election
}

// historyStore persists the artist history in Redis when the cache is
// enabled. Otherwise it only seeds the history from recent plays.
type historyStore interface {
	boombox.HistoryStore
	Close() error
}

func newHistoryStore(fallback cache.ArtistSource) historyStore {
	cc := cache.DefaultConfig()
	cc.RedisAddr = cfg.RedisAddr
	cc.RedisPassword = cfg.RedisPassword
	cc.RedisDB = cfg.RedisDB
	cc.NodeID = cfg.NodeID
	cc.Fallback = fallback
	cc.FallbackLimit = cfg.RecentArtistsFromPlay

	if !cfg.CacheEnabled {
		return cache.NewWithClient(nil, cc, logger)
	}
	return cache.New(cc, logger)
}
