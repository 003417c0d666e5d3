/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package crate

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// LimitKind enumerates the ways a crate decides how many tracks it plays.
type LimitKind string

const (
	LimitFixed    LimitKind = "fixed"
	LimitEntirely LimitKind = "entirely"
	LimitUpto     LimitKind = "upto"
	LimitRange    LimitKind = "range"
	LimitOneOf    LimitKind = "oneOf"
)

// LimitSpec describes how many tracks a crate may play per run.
type LimitSpec struct {
	Kind    LimitKind `json:"kind"`
	N       int       `json:"n,omitempty"`
	Min     int       `json:"min,omitempty"`
	Max     int       `json:"max,omitempty"`
	Choices []int     `json:"choices,omitempty"`
}

// Fixed plays exactly n tracks.
func Fixed(n int) LimitSpec { return LimitSpec{Kind: LimitFixed, N: n} }

// Entirely plays as many tracks as the crate's sources hold.
func Entirely() LimitSpec { return LimitSpec{Kind: LimitEntirely} }

// Upto plays a random count in [1, n].
func Upto(n int) LimitSpec { return LimitSpec{Kind: LimitUpto, N: n} }

// Range plays a random count in [min, max].
func Range(min, max int) LimitSpec { return LimitSpec{Kind: LimitRange, Min: min, Max: max} }

// OneOf plays a count picked uniformly from choices.
func OneOf(choices ...int) LimitSpec { return LimitSpec{Kind: LimitOneOf, Choices: choices} }

// String renders the spec in its short form.
func (l LimitSpec) String() string {
	switch l.Kind {
	case LimitFixed, "":
		return strconv.Itoa(l.N)
	case LimitEntirely:
		return "entirely"
	case LimitUpto:
		return fmt.Sprintf("upto(%d)", l.N)
	case LimitRange:
		return fmt.Sprintf("range(%d,%d)", l.Min, l.Max)
	case LimitOneOf:
		parts := make([]string, len(l.Choices))
		for i, c := range l.Choices {
			parts[i] = strconv.Itoa(c)
		}
		return "oneOf(" + strings.Join(parts, ",") + ")"
	}
	return string(l.Kind)
}

// Validate checks the spec is well formed.
func (l LimitSpec) Validate() error {
	switch l.Kind {
	case LimitFixed, LimitUpto:
		if l.N < 0 {
			return fmt.Errorf("limit %s: negative count %d", l.Kind, l.N)
		}
	case LimitRange:
		if l.Min < 0 || l.Max < 0 {
			return fmt.Errorf("limit range: negative bound")
		}
	case LimitOneOf:
		if len(l.Choices) == 0 {
			return fmt.Errorf("limit oneOf: no choices")
		}
	case LimitEntirely:
	default:
		return fmt.Errorf("unknown limit kind %q", l.Kind)
	}
	return nil
}

// EvaluateLimit resolves the spec to a track count. Entirely is deferred:
// deferred is true and the caller must re-read its live source lengths.
func EvaluateLimit(rng *rand.Rand, l LimitSpec) (n int, deferred bool) {
	switch l.Kind {
	case LimitEntirely:
		return 0, true
	case LimitUpto:
		if l.N < 1 {
			return 0, false
		}
		return 1 + rng.Intn(l.N), false
	case LimitRange:
		lo, hi := l.Min, l.Max
		if hi < lo {
			lo, hi = hi, lo
		}
		return lo + rng.Intn(hi-lo+1), false
	case LimitOneOf:
		if len(l.Choices) == 0 {
			return 0, false
		}
		return l.Choices[rng.Intn(len(l.Choices))], false
	default:
		return l.N, false
	}
}
