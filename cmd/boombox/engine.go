/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"math/rand"

	"gorm.io/gorm"

	"github.com/friendsincode/boombox/internal/boombox"
	"github.com/friendsincode/boombox/internal/catalog"
	"github.com/friendsincode/boombox/internal/config"
	"github.com/friendsincode/boombox/internal/crate"
	"github.com/friendsincode/boombox/internal/db"
	"github.com/friendsincode/boombox/internal/events"
	"github.com/friendsincode/boombox/internal/library"
	"github.com/friendsincode/boombox/internal/playout"
	"github.com/friendsincode/boombox/internal/sequencer"
)

// engine is the rotation stack shared by serve and simulate.
type engine struct {
	store   *catalog.Store
	library *catalog.Library
	queue   *playout.Queue
	box     *boombox.BoomBox
}

type engineOptions struct {
	ProfileID    string
	Rand         *rand.Rand
	Validate     bool
	ReadTags     bool
	Record       bool
	HistoryStore boombox.HistoryStore
	Publisher    events.Publisher
}

// openCatalog connects, migrates and optionally imports a program file.
func openCatalog(ctx context.Context, c *config.Config, programFile string) (*gorm.DB, *catalog.Store, error) {
	database, err := db.Connect(c)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	store := catalog.NewStore(database, logger)
	if programFile != "" {
		program, err := catalog.LoadProgram(programFile)
		if err != nil {
			_ = db.Close(database)
			return nil, nil, err
		}
		if err := store.Import(ctx, program); err != nil {
			_ = db.Close(database)
			return nil, nil, err
		}
	}
	return database, store, nil
}

func selectProfile(lib *catalog.Library, id string) (*crate.Profile, error) {
	if id != "" {
		p, ok := lib.Profile(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", catalog.ErrProfileNotFound, id)
		}
		return p, nil
	}
	if p := lib.ActiveProfile(); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("catalog has no profiles, import a program first")
}

func buildEngine(ctx context.Context, c *config.Config, store *catalog.Store, opts engineOptions) (*engine, error) {
	lib, err := store.Load(ctx, opts.Rand)
	if err != nil {
		return nil, err
	}
	profile, err := selectProfile(lib, opts.ProfileID)
	if err != nil {
		return nil, err
	}

	var validate crate.Validator
	if opts.Validate {
		validate = library.FileValidator{}.Validate
	}
	seq := sequencer.New(profile, sequencer.Options{
		Validator:        validate,
		NoCratesInterval: c.NoCratesWarnInterval,
		Logger:           logger.With().Str("component", "sequencer").Logger(),
	})

	queue := playout.NewQueue()
	boxOpts := boombox.Options{
		Sequencer:           seq,
		Queue:               queue,
		Validator:           validate,
		Locked:              queue.Locked,
		HistoryStore:        opts.HistoryStore,
		Publisher:           opts.Publisher,
		HistorySize:         c.ArtistHistorySize,
		SimilarityThreshold: c.SimilarityThreshold,
		Logger:              logger.With().Str("component", "boombox").Logger(),
	}
	if opts.ReadTags {
		boxOpts.Tags = library.ID3Reader{}
	}
	if opts.Record {
		boxOpts.Recorder = store
	}
	box, err := boombox.New(boxOpts)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("profile_id", profile.ID()).
		Int("crates", profile.Len()).
		Int("collections", len(lib.Collections())).
		Msg("rotation ready")
	return &engine{store: store, library: lib, queue: queue, box: box}, nil
}

func randFromSeed(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed))
}
