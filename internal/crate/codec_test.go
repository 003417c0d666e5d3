/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package crate

import (
	"encoding/json"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestLimitSpecYAML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LimitSpec
	}{
		{"number", "3", Fixed(3)},
		{"entirely", "entirely", Entirely()},
		{"upto", "{upto: 4}", Upto(4)},
		{"range", "{range: [2, 5]}", Range(2, 5)},
		{"oneOf", "{oneOf: [1, 3]}", OneOf(1, 3)},
		{"canonical", "{kind: range, min: 1, max: 2}", Range(1, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got LimitSpec
			if err := yaml.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLimitSpecYAMLErrors(t *testing.T) {
	for _, input := range []string{"lots", "{range: [1]}", "{kind: sometimes}"} {
		var got LimitSpec
		if err := yaml.Unmarshal([]byte(input), &got); err == nil {
			t.Fatalf("expected error for %q, got %+v", input, got)
		}
	}
}

func TestLimitSpecJSON(t *testing.T) {
	tests := []struct {
		input string
		want  LimitSpec
	}{
		{`5`, Fixed(5)},
		{`"entirely"`, Entirely()},
		{`{"upto":2}`, Upto(2)},
		{`{"kind":"oneOf","choices":[2,4]}`, OneOf(2, 4)},
	}
	for _, tt := range tests {
		var got LimitSpec
		if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.input, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%s: got %+v, want %+v", tt.input, got, tt.want)
		}
	}

	for _, spec := range []LimitSpec{Fixed(2), Entirely(), Upto(3), Range(0, 4), OneOf(1, 2, 3)} {
		data, err := json.Marshal(spec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back LimitSpec
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !reflect.DeepEqual(back, spec) {
			t.Fatalf("round trip %s: got %+v, want %+v", data, back, spec)
		}
	}
}

func TestChanceSpecParsing(t *testing.T) {
	yamlTests := []struct {
		input string
		want  ChanceSpec
	}{
		{"always", Always()},
		{"random", RandomBoolean()},
		{`"2:1"`, Ratio(2, 1)},
		{"{yes: 1, no: 3}", Ratio(1, 3)},
		{"{kind: random}", RandomBoolean()},
	}
	for _, tt := range yamlTests {
		var got ChanceSpec
		if err := yaml.Unmarshal([]byte(tt.input), &got); err != nil {
			t.Fatalf("yaml %q: %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("yaml %q: got %+v, want %+v", tt.input, got, tt.want)
		}
	}

	var got ChanceSpec
	if err := json.Unmarshal([]byte(`{"kind":"ratio","yes":2,"no":1}`), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got != Ratio(2, 1) {
		t.Fatalf("json: got %+v", got)
	}
	if err := json.Unmarshal([]byte(`"sometimes"`), &got); err == nil {
		t.Fatal("expected error for unknown chance")
	}
}
