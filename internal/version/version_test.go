/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"unknown commit", Info{Version: "1.2.3", GoVersion: "go1.24"}, "boombox 1.2.3 (unknown, go1.24)"},
		{"short commit", Info{Version: "1.2.3", Commit: "abc", GoVersion: "go1.24"}, "boombox 1.2.3 (abc, go1.24)"},
		{"long dirty commit", Info{Version: "1.2.3", Commit: "0123456789abcdef", GoVersion: "go1.24", Modified: true}, "boombox 1.2.3 (0123456789ab-dirty, go1.24)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetUsesPackageVersion(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Fatalf("version %q", info.Version)
	}
	if !strings.HasPrefix(info.GoVersion, "go") {
		t.Fatalf("go version %q", info.GoVersion)
	}
}
