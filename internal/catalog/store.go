/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/boombox/internal/library"
	"github.com/friendsincode/boombox/internal/models"
)

// ErrProfileNotFound is returned when a profile id is not in the catalog.
var ErrProfileNotFound = errors.New("profile not found")

// Store reads and writes the catalog tables.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore wraps a migrated database.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
		now:    time.Now,
	}
}

// Import writes a program into the catalog. Collections and profiles with
// the same ids are replaced along with their tracks and crates; anything
// not named by the program is left alone.
func (s *Store) Import(ctx context.Context, program *Program) error {
	if err := program.Validate(); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range program.Collections {
			if err := importCollection(tx, c); err != nil {
				return fmt.Errorf("collection %s: %w", c.ID, err)
			}
		}
		for _, p := range program.Profiles {
			if err := importProfile(tx, p); err != nil {
				return fmt.Errorf("profile %s: %w", p.ID, err)
			}
		}
		if program.ActiveProfile != "" {
			return activate(tx, program.ActiveProfile)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("import program: %w", err)
	}

	s.logger.Info().
		Int("collections", len(program.Collections)).
		Int("profiles", len(program.Profiles)).
		Str("active_profile", program.ActiveProfile).
		Msg("program imported")
	return nil
}

func importCollection(tx *gorm.DB, def CollectionDef) error {
	name := def.Name
	if name == "" {
		name = def.ID
	}
	if err := tx.Save(&models.Collection{ID: def.ID, Name: name, LatchDisabled: def.LatchDisabled}).Error; err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := tx.Where("collection_id = ?", def.ID).Delete(&models.Track{}).Error; err != nil {
		return fmt.Errorf("clear tracks: %w", err)
	}
	if len(def.Tracks) == 0 {
		return nil
	}

	tracks := make([]models.Track, 0, len(def.Tracks))
	for i, t := range def.Tracks {
		tracks = append(tracks, models.Track{
			CollectionID: def.ID,
			ID:           t.ID,
			Position:     i,
			Path:         t.Path,
			Title:        t.Title,
			Artist:       t.Artist,
			Album:        t.Album,
		})
	}
	if err := tx.CreateInBatches(tracks, 200).Error; err != nil {
		return fmt.Errorf("create tracks: %w", err)
	}
	return nil
}

func importProfile(tx *gorm.DB, def ProfileDef) error {
	name := def.Name
	if name == "" {
		name = def.ID
	}

	var existing models.Profile
	active := false
	if err := tx.First(&existing, "id = ?", def.ID).Error; err == nil {
		active = existing.Active
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup: %w", err)
	}
	if err := tx.Save(&models.Profile{ID: def.ID, Name: name, Active: active}).Error; err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if err := tx.Where("profile_id = ?", def.ID).Delete(&models.CrateSource{}).Error; err != nil {
		return fmt.Errorf("clear sources: %w", err)
	}
	if err := tx.Where("profile_id = ?", def.ID).Delete(&models.Crate{}).Error; err != nil {
		return fmt.Errorf("clear crates: %w", err)
	}

	for i, c := range def.Crates {
		row := models.Crate{
			ProfileID: def.ID,
			ID:        c.ID,
			Position:  i,
			Limit:     c.Limit,
			Chance:    c.Chance,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create crate %s: %w", c.ID, err)
		}
		for j, src := range c.Sources {
			source := models.CrateSource{
				ProfileID:    def.ID,
				CrateID:      c.ID,
				CollectionID: src.Collection,
				Weight:       src.EffectiveWeight(),
				Position:     j,
			}
			if err := tx.Create(&source).Error; err != nil {
				return fmt.Errorf("create source %s/%s: %w", c.ID, src.Collection, err)
			}
		}
	}
	return nil
}

// SetActiveProfile marks one profile as the one to play.
func (s *Store) SetActiveProfile(ctx context.Context, profileID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return activate(tx, profileID)
	})
}

func activate(tx *gorm.DB, profileID string) error {
	var count int64
	if err := tx.Model(&models.Profile{}).Where("id = ?", profileID).Count(&count).Error; err != nil {
		return fmt.Errorf("lookup profile: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%s: %w", profileID, ErrProfileNotFound)
	}
	if err := tx.Model(&models.Profile{}).Where("active = ? AND id <> ?", true, profileID).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("deactivate profiles: %w", err)
	}
	if err := tx.Model(&models.Profile{}).Where("id = ?", profileID).Update("active", true).Error; err != nil {
		return fmt.Errorf("activate profile: %w", err)
	}
	return nil
}

// RecordPlay appends a track that went on air to the play history.
func (s *Store) RecordPlay(ctx context.Context, track *library.Track) error {
	entry := models.PlayHistory{
		ID:           uuid.NewString(),
		TrackID:      track.ID,
		CollectionID: track.CollectionID,
		Kind:         string(track.Kind()),
		StartedAt:    s.now().UTC(),
	}
	if tags := track.Tags(); tags != nil {
		entry.Artist = tags.Artist
		entry.Title = tags.Title
		entry.Album = tags.Album
	}
	if track.Extra != nil {
		entry.RequestedBy = track.Extra.RequestedBy
	}
	if seq := track.Sequencing; seq != nil {
		entry.ProfileID = seq.ProfileID
		entry.CrateID = seq.CrateID
		if seq.Latch != nil {
			entry.LatchID = seq.Latch.SessionID
		}
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return nil
}

// RecentPlays returns up to limit plays, newest first.
func (s *Store) RecentPlays(ctx context.Context, limit int) ([]models.PlayHistory, error) {
	var plays []models.PlayHistory
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&plays).Error
	if err != nil {
		return nil, fmt.Errorf("recent plays: %w", err)
	}
	return plays, nil
}

// RecentArtists returns the artists of the last limit plays, oldest first,
// in the order an artist history expects them.
func (s *Store) RecentArtists(ctx context.Context, limit int) ([]string, error) {
	plays, err := s.RecentPlays(ctx, limit)
	if err != nil {
		return nil, err
	}
	var artists []string
	for i := len(plays) - 1; i >= 0; i-- {
		artists = append(artists, (&library.Tags{Artist: plays[i].Artist}).ArtistNames()...)
	}
	return artists, nil
}
