/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects the node that drives the playback queue when
// several nodes share one Redis.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/telemetry"
)

const (
	defaultElectionKey     = "boombox:leader:director"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
)

// releaseScript deletes the lease only if this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the lease only if this instance still owns it.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Config configures leader election.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Key is the Redis key holding the lease.
	Key string
	// LeaseDuration is how long a lease survives without renewal.
	LeaseDuration time.Duration
	// RenewalInterval is how often the lease is renewed or contested.
	RenewalInterval time.Duration
	// InstanceID identifies this node.
	InstanceID string
}

// DefaultConfig returns default election configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:       "localhost:6379",
		Key:             defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
	}
}

// Election holds or contests a Redis lease.
type Election struct {
	client redis.UniversalClient
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	isLeader bool
	changes  chan bool
}

// New connects to Redis and returns an election that has not started yet.
func New(cfg Config, logger zerolog.Logger) (*Election, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient builds an election on an existing client.
func NewWithClient(client redis.UniversalClient, cfg Config, logger zerolog.Logger) *Election {
	if cfg.Key == "" {
		cfg.Key = defaultElectionKey
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = defaultLeaseDuration
	}
	if cfg.RenewalInterval <= 0 || cfg.RenewalInterval >= cfg.LeaseDuration {
		cfg.RenewalInterval = cfg.LeaseDuration / 3
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	return &Election{
		client:  client,
		logger:  logger.With().Str("component", "leader_election").Str("instance_id", cfg.InstanceID).Logger(),
		config:  cfg,
		changes: make(chan bool, 1),
	}
}

// Run campaigns until ctx is done, then releases the lease if held.
func (e *Election) Run(ctx context.Context) error {
	e.logger.Info().Dur("lease", e.config.LeaseDuration).Msg("starting leader election")
	ticker := time.NewTicker(e.config.RenewalInterval)
	defer ticker.Stop()

	e.campaign(ctx)
	for {
		select {
		case <-ctx.Done():
			e.resign()
			return nil
		case <-ticker.C:
			e.campaign(ctx)
		}
	}
}

// IsLeader reports whether this node holds the lease.
func (e *Election) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// Changes delivers leadership transitions. Slow readers miss intermediate
// values.
func (e *Election) Changes() <-chan bool {
	return e.changes
}

// Leader returns the instance holding the lease, or "" when nobody does.
func (e *Election) Leader(ctx context.Context) (string, error) {
	id, err := e.client.Get(ctx, e.config.Key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return id, nil
}

// Close releases the Redis connection.
func (e *Election) Close() error {
	return e.client.Close()
}

func (e *Election) campaign(ctx context.Context) {
	held, err := e.acquire(ctx)
	if err != nil {
		// a node that cannot reach redis must not keep driving the queue
		e.logger.Error().Err(err).Msg("leader election failed")
		held = false
	}
	e.setLeader(held)
}

func (e *Election) acquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.Key, e.config.InstanceID, e.config.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lease: %w", err)
	}
	if ok {
		return true, nil
	}
	renewed, err := renewScript.Run(ctx, e.client, []string{e.config.Key},
		e.config.InstanceID, e.config.LeaseDuration.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return renewed == 1, nil
}

func (e *Election) resign() {
	if !e.IsLeader() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, e.client, []string{e.config.Key}, e.config.InstanceID).Err(); err != nil {
		e.logger.Error().Err(err).Msg("failed to release lease")
	}
	e.setLeader(false)
}

func (e *Election) setLeader(leader bool) {
	e.mu.Lock()
	changed := e.isLeader != leader
	e.isLeader = leader
	e.mu.Unlock()
	if !changed {
		return
	}

	id := e.config.InstanceID
	if leader {
		e.logger.Info().Msg("acquired director lease")
		telemetry.LeaderStatus.WithLabelValues(id).Set(1)
		telemetry.LeaderChanges.WithLabelValues(id, "acquired").Inc()
	} else {
		e.logger.Warn().Msg("lost director lease")
		telemetry.LeaderStatus.WithLabelValues(id).Set(0)
		telemetry.LeaderChanges.WithLabelValues(id, "lost").Inc()
	}

	select {
	case e.changes <- leader:
	default:
		// drop the stale value so the latest one wins
		select {
		case <-e.changes:
		default:
		}
		select {
		case e.changes <- leader:
		default:
		}
	}
}
