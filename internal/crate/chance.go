/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package crate

import (
	"fmt"
	"math/rand"
)

// ChanceKind enumerates crate selection chance rules.
type ChanceKind string

const (
	ChanceAlways ChanceKind = "always"
	ChanceRandom ChanceKind = "random"
	ChanceRatio  ChanceKind = "ratio"
)

// ChanceSpec decides whether a crate runs when its turn comes.
type ChanceSpec struct {
	Kind ChanceKind `json:"kind"`
	Yes  int        `json:"yes,omitempty"`
	No   int        `json:"no,omitempty"`
}

// Always runs the crate every time.
func Always() ChanceSpec { return ChanceSpec{Kind: ChanceAlways} }

// RandomBoolean runs the crate on a coin flip.
func RandomBoolean() ChanceSpec { return ChanceSpec{Kind: ChanceRandom} }

// Ratio runs the crate exactly yes times out of every yes+no turns.
func Ratio(yes, no int) ChanceSpec { return ChanceSpec{Kind: ChanceRatio, Yes: yes, No: no} }

// String renders the spec in its short form.
func (c ChanceSpec) String() string {
	switch c.Kind {
	case ChanceRatio:
		return fmt.Sprintf("%d:%d", c.Yes, c.No)
	case "":
		return string(ChanceAlways)
	}
	return string(c.Kind)
}

// Validate checks the spec is well formed.
func (c ChanceSpec) Validate() error {
	switch c.Kind {
	case ChanceAlways, ChanceRandom, "":
		return nil
	case ChanceRatio:
		if c.Yes < 0 || c.No < 0 {
			return fmt.Errorf("chance ratio: negative weight")
		}
		return nil
	}
	return fmt.Errorf("unknown chance kind %q", c.Kind)
}

// Chance evaluates a ChanceSpec. Ratio specs draw from a shuffled bag so
// any yes+no consecutive draws hold exactly the requested split.
type Chance struct {
	spec ChanceSpec
	bag  []bool
	pos  int
}

// NewChance creates an evaluator for spec.
func NewChance(spec ChanceSpec) *Chance {
	return &Chance{spec: spec}
}

// Spec returns the underlying spec.
func (c *Chance) Spec() ChanceSpec { return c.spec }

// Next draws the next decision.
func (c *Chance) Next(rng *rand.Rand) bool {
	switch c.spec.Kind {
	case ChanceRandom:
		return rng.Intn(2) == 1
	case ChanceRatio:
		if c.spec.Yes+c.spec.No <= 0 {
			return true
		}
		if c.bag == nil || c.pos >= len(c.bag) {
			c.refill(rng)
		}
		v := c.bag[c.pos]
		c.pos++
		return v
	default:
		return true
	}
}

func (c *Chance) refill(rng *rand.Rand) {
	if c.bag == nil {
		c.bag = make([]bool, 0, c.spec.Yes+c.spec.No)
		for i := 0; i < c.spec.Yes; i++ {
			c.bag = append(c.bag, true)
		}
		for i := 0; i < c.spec.No; i++ {
			c.bag = append(c.bag, false)
		}
	}
	rng.Shuffle(len(c.bag), func(i, j int) { c.bag[i], c.bag[j] = c.bag[j], c.bag[i] })
	c.pos = 0
}
