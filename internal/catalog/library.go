/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/friendsincode/boombox/internal/crate"
	"github.com/friendsincode/boombox/internal/library"
	"github.com/friendsincode/boombox/internal/models"
)

// Library holds the runtime collections and profiles built from the
// catalog. Collections are shared by every profile that references them.
type Library struct {
	collections     []*library.Collection
	collectionsByID map[string]*library.Collection
	profiles        []*crate.Profile
	profilesByID    map[string]*crate.Profile
	active          string
}

// Collection returns a collection by id.
func (l *Library) Collection(id string) (*library.Collection, bool) {
	c, ok := l.collectionsByID[id]
	return c, ok
}

// Collections lists collections in id order.
func (l *Library) Collections() []*library.Collection {
	out := make([]*library.Collection, len(l.collections))
	copy(out, l.collections)
	return out
}

// Profile returns a profile by id.
func (l *Library) Profile(id string) (*crate.Profile, bool) {
	p, ok := l.profilesByID[id]
	return p, ok
}

// Profiles lists profiles in id order.
func (l *Library) Profiles() []*crate.Profile {
	out := make([]*crate.Profile, len(l.profiles))
	copy(out, l.profiles)
	return out
}

// ActiveProfile returns the profile marked active, falling back to the
// first profile. It returns nil for an empty catalog.
func (l *Library) ActiveProfile() *crate.Profile {
	if p, ok := l.profilesByID[l.active]; ok {
		return p
	}
	if len(l.profiles) > 0 {
		return l.profiles[0]
	}
	return nil
}

// Track finds a track by id across all collections. When collectionID is
// not empty only that collection is searched.
func (l *Library) Track(collectionID, trackID string) (*library.Track, bool) {
	if collectionID != "" {
		c, ok := l.collectionsByID[collectionID]
		if !ok {
			return nil, false
		}
		return c.Find(trackID)
	}
	for _, c := range l.collections {
		if t, ok := c.Find(trackID); ok {
			return t, true
		}
	}
	return nil, false
}

// Load builds a Library from the catalog tables. rng seeds every crate's
// sampler; nil uses a time seeded source per crate.
func (s *Store) Load(ctx context.Context, rng *rand.Rand) (*Library, error) {
	db := s.db.WithContext(ctx)

	var collections []models.Collection
	if err := db.Order("id").Find(&collections).Error; err != nil {
		return nil, fmt.Errorf("load collections: %w", err)
	}
	var tracks []models.Track
	if err := db.Order("collection_id, position").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	var profiles []models.Profile
	if err := db.Order("id").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	var crates []models.Crate
	if err := db.Order("profile_id, position").Find(&crates).Error; err != nil {
		return nil, fmt.Errorf("load crates: %w", err)
	}
	var sources []models.CrateSource
	if err := db.Order("profile_id, crate_id, position").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("load crate sources: %w", err)
	}

	lib := &Library{
		collectionsByID: make(map[string]*library.Collection, len(collections)),
		profilesByID:    make(map[string]*crate.Profile, len(profiles)),
	}

	for _, row := range collections {
		c := library.NewCollection(row.ID, row.Name)
		c.SetLatchDisabled(row.LatchDisabled)
		lib.collections = append(lib.collections, c)
		lib.collectionsByID[row.ID] = c
	}
	for _, row := range tracks {
		c, ok := lib.collectionsByID[row.CollectionID]
		if !ok {
			s.logger.Warn().Str("collection_id", row.CollectionID).Str("track_id", row.ID).Msg("track without collection")
			continue
		}
		c.Push(runtimeTrack(row))
	}

	type crateKey struct{ profile, crate string }
	sourcesByCrate := make(map[crateKey][]crate.Source)
	for _, row := range sources {
		c, ok := lib.collectionsByID[row.CollectionID]
		if !ok {
			s.logger.Warn().
				Str("profile_id", row.ProfileID).
				Str("crate_id", row.CrateID).
				Str("collection_id", row.CollectionID).
				Msg("crate source references missing collection")
			continue
		}
		key := crateKey{row.ProfileID, row.CrateID}
		sourcesByCrate[key] = append(sourcesByCrate[key], crate.Source{Collection: c, Weight: row.Weight})
	}

	cratesByProfile := make(map[string][]*crate.Crate)
	for _, row := range crates {
		var crateRand *rand.Rand
		if rng != nil {
			crateRand = rand.New(rand.NewSource(rng.Int63()))
		}
		cratesByProfile[row.ProfileID] = append(cratesByProfile[row.ProfileID], crate.New(crate.Config{
			ID:      row.ID,
			Sources: sourcesByCrate[crateKey{row.ProfileID, row.ID}],
			Limit:   row.Limit,
			Chance:  row.Chance,
			Rand:    crateRand,
		}))
	}

	for _, row := range profiles {
		p := crate.NewProfile(row.ID, row.Name, cratesByProfile[row.ID]...)
		lib.profiles = append(lib.profiles, p)
		lib.profilesByID[row.ID] = p
		if row.Active {
			lib.active = row.ID
		}
	}

	s.logger.Debug().
		Int("collections", len(lib.collections)).
		Int("tracks", len(tracks)).
		Int("profiles", len(lib.profiles)).
		Str("active_profile", lib.active).
		Msg("catalog loaded")
	return lib, nil
}

func runtimeTrack(row models.Track) *library.Track {
	t := &library.Track{
		ID:           row.ID,
		Path:         row.Path,
		CollectionID: row.CollectionID,
	}
	if row.Title != "" || row.Artist != "" || row.Album != "" {
		t.Extra = &library.Extra{
			Kind: library.KindNormal,
			Tags: &library.Tags{Title: row.Title, Artist: row.Artist, Album: row.Album},
		}
	}
	return t
}
