/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/friendsincode/boombox/internal/crate"
)

// Collection is a named pool of tracks.
type Collection struct {
	ID            string `gorm:"type:varchar(64);primaryKey"`
	Name          string
	LatchDisabled bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Track belongs to one collection; Position keeps the rotation order.
type Track struct {
	CollectionID string `gorm:"type:varchar(64);primaryKey"`
	ID           string `gorm:"type:varchar(128);primaryKey"`
	Position     int    `gorm:"index"`
	Path         string
	Title        string
	Artist       string `gorm:"index"`
	Album        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is one rotation program.
type Profile struct {
	ID        string `gorm:"type:varchar(64);primaryKey"`
	Name      string
	Active    bool `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Crate is a profile entry; Position keeps the rotation order.
type Crate struct {
	ProfileID string           `gorm:"type:varchar(64);primaryKey"`
	ID        string           `gorm:"type:varchar(64);primaryKey"`
	Position  int              `gorm:"index"`
	Limit     crate.LimitSpec  `gorm:"serializer:json"`
	Chance    crate.ChanceSpec `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CrateSource binds a collection to a crate with a sampling weight.
type CrateSource struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ProfileID    string `gorm:"type:varchar(64);index:idx_crate_source"`
	CrateID      string `gorm:"type:varchar(64);index:idx_crate_source"`
	CollectionID string `gorm:"type:varchar(64);index"`
	Weight       float64
	Position     int
}

// PlayHistory stores tracks that went on air.
type PlayHistory struct {
	ID           string `gorm:"type:varchar(36);primaryKey"`
	TrackID      string `gorm:"index"`
	CollectionID string `gorm:"index"`
	ProfileID    string
	CrateID      string
	LatchID      string
	Kind         string `gorm:"type:varchar(16)"`
	Artist       string `gorm:"index"`
	Title        string
	Album        string
	RequestedBy  string
	StartedAt    time.Time `gorm:"index"`
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&Collection{},
		&Track{},
		&Profile{},
		&Crate{},
		&CrateSource{},
		&PlayHistory{},
	}
}
