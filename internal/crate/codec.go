/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package crate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// limitDoc is the union of every accepted limit document shape.
type limitDoc struct {
	Kind    LimitKind `json:"kind" yaml:"kind"`
	N       *int      `json:"n" yaml:"n"`
	Fixed   *int      `json:"fixed" yaml:"fixed"`
	Upto    *int      `json:"upto" yaml:"upto"`
	Range   []int     `json:"range" yaml:"range"`
	Min     *int      `json:"min" yaml:"min"`
	Max     *int      `json:"max" yaml:"max"`
	OneOf   []int     `json:"oneOf" yaml:"oneOf"`
	Choices []int     `json:"choices" yaml:"choices"`
}

func (d limitDoc) spec() (LimitSpec, error) {
	deref := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}

	switch {
	case d.Fixed != nil:
		return Fixed(*d.Fixed), nil
	case d.Upto != nil:
		return Upto(*d.Upto), nil
	case len(d.Range) > 0:
		if len(d.Range) != 2 {
			return LimitSpec{}, fmt.Errorf("limit range needs two bounds, got %d", len(d.Range))
		}
		return Range(d.Range[0], d.Range[1]), nil
	case len(d.OneOf) > 0:
		return OneOf(d.OneOf...), nil
	}

	switch d.Kind {
	case LimitFixed, "":
		return Fixed(deref(d.N)), nil
	case LimitEntirely:
		return Entirely(), nil
	case LimitUpto:
		return Upto(deref(d.N)), nil
	case LimitRange:
		return Range(deref(d.Min), deref(d.Max)), nil
	case LimitOneOf:
		return OneOf(d.Choices...), nil
	}
	return LimitSpec{}, fmt.Errorf("unknown limit kind %q", d.Kind)
}

func parseLimitScalar(s string) (LimitSpec, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "entirely", "all":
		return Entirely(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return LimitSpec{}, fmt.Errorf("invalid limit %q", s)
	}
	return Fixed(n), nil
}

// UnmarshalYAML accepts `3`, `entirely`, `{upto: 3}`, `{range: [2, 5]}`,
// `{oneOf: [1, 2]}` or the canonical `{kind: ..}` mapping.
func (l *LimitSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		spec, err := parseLimitScalar(node.Value)
		if err != nil {
			return err
		}
		*l = spec
		return nil
	}

	var doc limitDoc
	if err := node.Decode(&doc); err != nil {
		return fmt.Errorf("decode limit: %w", err)
	}
	spec, err := doc.spec()
	if err != nil {
		return err
	}
	*l = spec
	return nil
}

// UnmarshalJSON accepts the same shapes as UnmarshalYAML.
func (l *LimitSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '{' {
		var s string
		if data[0] == '"' {
			if err := json.Unmarshal(data, &s); err != nil {
				return err
			}
		} else {
			s = string(data)
		}
		spec, err := parseLimitScalar(s)
		if err != nil {
			return err
		}
		*l = spec
		return nil
	}

	var doc limitDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode limit: %w", err)
	}
	spec, err := doc.spec()
	if err != nil {
		return err
	}
	*l = spec
	return nil
}

type chanceDoc struct {
	Kind ChanceKind `json:"kind" yaml:"kind"`
	Yes  int        `json:"yes" yaml:"yes"`
	No   int        `json:"no" yaml:"no"`
}

func (d chanceDoc) spec() (ChanceSpec, error) {
	switch d.Kind {
	case "":
		if d.Yes == 0 && d.No == 0 {
			return Always(), nil
		}
		return Ratio(d.Yes, d.No), nil
	case ChanceRatio:
		return Ratio(d.Yes, d.No), nil
	case ChanceAlways:
		return Always(), nil
	case ChanceRandom:
		return RandomBoolean(), nil
	}
	return ChanceSpec{}, fmt.Errorf("unknown chance kind %q", d.Kind)
}

func parseChanceScalar(s string) (ChanceSpec, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "always", "true":
		return Always(), nil
	case "random":
		return RandomBoolean(), nil
	}
	if yes, no, ok := strings.Cut(s, ":"); ok {
		y, errY := strconv.Atoi(strings.TrimSpace(yes))
		n, errN := strconv.Atoi(strings.TrimSpace(no))
		if errY == nil && errN == nil {
			return Ratio(y, n), nil
		}
	}
	return ChanceSpec{}, fmt.Errorf("invalid chance %q", s)
}

// UnmarshalYAML accepts `always`, `random`, `"2:1"` or `{yes: 2, no: 1}`.
func (c *ChanceSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		spec, err := parseChanceScalar(node.Value)
		if err != nil {
			return err
		}
		*c = spec
		return nil
	}

	var doc chanceDoc
	if err := node.Decode(&doc); err != nil {
		return fmt.Errorf("decode chance: %w", err)
	}
	spec, err := doc.spec()
	if err != nil {
		return err
	}
	*c = spec
	return nil
}

// UnmarshalJSON accepts the same shapes as UnmarshalYAML.
func (c *ChanceSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		spec, err := parseChanceScalar(s)
		if err != nil {
			return err
		}
		*c = spec
		return nil
	}

	var doc chanceDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode chance: %w", err)
	}
	spec, err := doc.spec()
	if err != nil {
		return err
	}
	*c = spec
	return nil
}
