/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fakeSource struct {
	artists []string
	err     error
	limit   int
}

func (f *fakeSource) RecentArtists(_ context.Context, limit int) ([]string, error) {
	f.limit = limit
	return f.artists, f.err
}

func unreachable(fallback ArtistSource) Config {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	cfg.Fallback = fallback
	cfg.FallbackLimit = 7
	return cfg
}

func TestUnavailableRedisUsesFallback(t *testing.T) {
	src := &fakeSource{artists: []string{"Alpha", "Beta"}}
	c := New(unreachable(src), zerolog.Nop())
	defer c.Close()

	if c.IsAvailable() {
		t.Fatal("cache should start disabled without redis")
	}
	if err := c.SaveArtistHistory(context.Background(), []string{"Gamma"}); err != nil {
		t.Fatalf("save should be a no-op, got %v", err)
	}

	artists, err := c.LoadArtistHistory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(artists, ",") != "Alpha,Beta" {
		t.Fatalf("artists %v", artists)
	}
	if src.limit != 7 {
		t.Fatalf("fallback limit %d", src.limit)
	}
}

func TestFallbackErrorIsWrapped(t *testing.T) {
	boom := errors.New("db down")
	c := New(unreachable(&fakeSource{err: boom}), zerolog.Nop())

	_, err := c.LoadArtistHistory(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fallback error, got %v", err)
	}
}

func TestNoFallbackReturnsEmpty(t *testing.T) {
	c := New(unreachable(nil), zerolog.Nop())
	artists, err := c.LoadArtistHistory(context.Background())
	if err != nil || artists != nil {
		t.Fatalf("expected empty history, got %v %v", artists, err)
	}
	if err := c.ClearArtistHistory(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryKeyIsPerNode(t *testing.T) {
	c := NewWithClient(nil, Config{NodeID: "east"}, zerolog.Nop())
	if c.historyKey() != "boombox:history:artists:east" {
		t.Fatalf("key %q", c.historyKey())
	}
	if c.IsAvailable() {
		t.Fatal("nil client must not be available")
	}
	if NewWithClient(nil, Config{}, zerolog.Nop()).config.NodeID != "default" {
		t.Fatal("node id should default")
	}
}

func TestLoggersCarryComponentOnce(t *testing.T) {
	var buf strings.Builder
	base := zerolog.New(&buf)

	c := New(unreachable(nil), base)
	defer c.Close()
	NewWithClient(nil, Config{}, base).logger.Info().Msg("wrapped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %q", buf.String())
	}
	for _, line := range lines {
		if n := strings.Count(line, `"component":"cache"`); n != 1 {
			t.Fatalf("component tagged %d times in %s", n, line)
		}
	}
}
