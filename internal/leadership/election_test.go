/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func unreachableClient() redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestNewFailsWithoutRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	if _, err := New(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestDefaultsApplied(t *testing.T) {
	e := NewWithClient(unreachableClient(), Config{LeaseDuration: 9 * time.Second}, zerolog.Nop())
	defer e.Close()

	if e.config.Key != defaultElectionKey {
		t.Fatalf("key %q", e.config.Key)
	}
	if e.config.RenewalInterval != 3*time.Second {
		t.Fatalf("renewal %v", e.config.RenewalInterval)
	}
	if e.config.InstanceID == "" {
		t.Fatal("instance id should be generated")
	}
}

func TestCampaignWithoutRedisIsNotLeader(t *testing.T) {
	e := NewWithClient(unreachableClient(), Config{InstanceID: "node-a"}, zerolog.Nop())
	defer e.Close()

	e.setLeader(true)
	if !e.IsLeader() {
		t.Fatal("expected leader")
	}
	e.campaign(context.Background())
	if e.IsLeader() {
		t.Fatal("a node without redis must step down")
	}

	// only the latest transition is kept
	select {
	case leader := <-e.Changes():
		if leader {
			t.Fatal("expected the step down to be reported last")
		}
	default:
		t.Fatal("expected a change")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := NewWithClient(unreachableClient(), Config{
		InstanceID:      "node-b",
		LeaseDuration:   300 * time.Millisecond,
		RenewalInterval: 50 * time.Millisecond,
	}, zerolog.Nop())
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(120 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if e.IsLeader() {
		t.Fatal("should not be leader")
	}
}
