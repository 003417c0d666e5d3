/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog persists collections, profiles and play history, and
// turns them into the runtime objects the sequencer walks.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/boombox/internal/crate"
)

// Program is the YAML document describing a station's music library and
// rotation profiles.
type Program struct {
	Collections   []CollectionDef `yaml:"collections"`
	Profiles      []ProfileDef    `yaml:"profiles"`
	ActiveProfile string          `yaml:"activeProfile,omitempty"`
}

// CollectionDef declares a collection and its tracks in rotation order.
type CollectionDef struct {
	ID            string     `yaml:"id"`
	Name          string     `yaml:"name,omitempty"`
	LatchDisabled bool       `yaml:"latchDisabled,omitempty"`
	Tracks        []TrackDef `yaml:"tracks"`
}

// TrackDef declares one track.
type TrackDef struct {
	ID     string `yaml:"id"`
	Path   string `yaml:"path"`
	Title  string `yaml:"title,omitempty"`
	Artist string `yaml:"artist,omitempty"`
	Album  string `yaml:"album,omitempty"`
}

// ProfileDef declares a rotation profile.
type ProfileDef struct {
	ID     string     `yaml:"id"`
	Name   string     `yaml:"name,omitempty"`
	Crates []CrateDef `yaml:"crates"`
}

// CrateDef declares a crate. Limit and chance accept the short forms
// understood by the crate package (`3`, `entirely`, `{upto: 3}`, `1:4`).
type CrateDef struct {
	ID      string           `yaml:"id"`
	Limit   crate.LimitSpec  `yaml:"limit"`
	Chance  crate.ChanceSpec `yaml:"chance,omitempty"`
	Sources []SourceDef      `yaml:"sources"`
}

// SourceDef binds a collection to a crate. An omitted weight counts as 1;
// a source weighted 0 is only drawn when a latch or force names it.
type SourceDef struct {
	Collection string   `yaml:"collection"`
	Weight     *float64 `yaml:"weight,omitempty"`
}

// EffectiveWeight returns the sampling weight stored for the source.
func (d SourceDef) EffectiveWeight() float64 {
	if d.Weight == nil {
		return 1
	}
	return *d.Weight
}

// LoadProgram reads and validates a program file.
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	program, err := ParseProgram(data)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", path, err)
	}
	return program, nil
}

// ParseProgram decodes and validates a YAML program. Unknown keys are
// rejected.
func ParseProgram(data []byte) (*Program, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var program Program
	if err := dec.Decode(&program); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	if err := program.Validate(); err != nil {
		return nil, err
	}
	return &program, nil
}

// Validate checks ids are present and unique, crate rules are well formed
// and every crate source names a declared collection.
func (p *Program) Validate() error {
	var errs []error

	collections := make(map[string]bool, len(p.Collections))
	for i, c := range p.Collections {
		if c.ID == "" {
			errs = append(errs, fmt.Errorf("collection #%d: missing id", i))
			continue
		}
		if collections[c.ID] {
			errs = append(errs, fmt.Errorf("collection %q: duplicate id", c.ID))
		}
		collections[c.ID] = true

		tracks := make(map[string]bool, len(c.Tracks))
		for j, t := range c.Tracks {
			switch {
			case t.ID == "":
				errs = append(errs, fmt.Errorf("collection %q track #%d: missing id", c.ID, j))
			case t.Path == "":
				errs = append(errs, fmt.Errorf("collection %q track %q: missing path", c.ID, t.ID))
			case tracks[t.ID]:
				errs = append(errs, fmt.Errorf("collection %q track %q: duplicate id", c.ID, t.ID))
			}
			tracks[t.ID] = true
		}
	}

	profiles := make(map[string]bool, len(p.Profiles))
	for i, prof := range p.Profiles {
		if prof.ID == "" {
			errs = append(errs, fmt.Errorf("profile #%d: missing id", i))
			continue
		}
		if profiles[prof.ID] {
			errs = append(errs, fmt.Errorf("profile %q: duplicate id", prof.ID))
		}
		profiles[prof.ID] = true

		crates := make(map[string]bool, len(prof.Crates))
		for j, c := range prof.Crates {
			where := fmt.Sprintf("profile %q crate %q", prof.ID, c.ID)
			if c.ID == "" {
				errs = append(errs, fmt.Errorf("profile %q crate #%d: missing id", prof.ID, j))
				continue
			}
			if crates[c.ID] {
				errs = append(errs, fmt.Errorf("%s: duplicate id", where))
			}
			crates[c.ID] = true

			if c.Limit.Kind == "" {
				errs = append(errs, fmt.Errorf("%s: missing limit", where))
			} else if err := c.Limit.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", where, err))
			}
			if err := c.Chance.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", where, err))
			}
			for _, src := range c.Sources {
				if !collections[src.Collection] {
					errs = append(errs, fmt.Errorf("%s: unknown collection %q", where, src.Collection))
				}
				if src.EffectiveWeight() < 0 {
					errs = append(errs, fmt.Errorf("%s: negative weight for %q", where, src.Collection))
				}
			}
		}
	}

	if p.ActiveProfile != "" && !profiles[p.ActiveProfile] {
		errs = append(errs, fmt.Errorf("active profile %q: %w", p.ActiveProfile, ErrProfileNotFound))
	}
	return errors.Join(errs...)
}
