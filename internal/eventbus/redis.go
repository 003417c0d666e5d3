/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/events"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      10,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// RedisBus publishes events on Redis channels and relays events from
// other nodes to local subscribers. After MaxFailures publish errors it
// stays local until a ping succeeds again.
type RedisBus struct {
	*events.Bus
	relay  relay
	client *redis.Client
	cfg    RedisConfig
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	pubsub      *redis.PubSub
	useFallback bool
	failCount   int
	lastCheck   time.Time
}

// NewRedisBus connects to Redis. An unreachable server leaves the bus in
// local-only mode.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	local := events.NewBus()
	nodeID = nodeIDOrRandom(nodeID)

	rb := &RedisBus{
		Bus:    local,
		relay:  relay{local: local, nodeID: nodeID, logger: logger},
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}),
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := rb.client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, events stay on this node")
		rb.useFallback = true
		rb.lastCheck = time.Now()
		return rb
	}

	rb.listen()
	logger.Info().Str("addr", cfg.Addr).Str("node_id", nodeID).Msg("redis event bus ready")
	return rb
}

// NodeID identifies this node on the wire.
func (rb *RedisBus) NodeID() string { return rb.relay.nodeID }

func (rb *RedisBus) listen() {
	pubsub := rb.client.PSubscribe(rb.ctx, SubjectPrefix+"*")
	rb.mu.Lock()
	rb.pubsub = pubsub
	rb.mu.Unlock()

	rb.wg.Add(1)
	go func() {
		defer rb.wg.Done()
		ch := pubsub.Channel()
		for {
			select {
			case <-rb.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				rb.relay.deliver([]byte(msg.Payload))
			}
		}
	}()
}

// Publish delivers locally, then to the other nodes.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.Bus.Publish(eventType, payload)

	if rb.fallbackActive() {
		return
	}

	data, err := marshalEnvelope(eventType, payload, rb.relay.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, subject(eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to redis")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// fallbackActive reports local-only mode, retrying Redis once per
// CheckInterval.
func (rb *RedisBus) fallbackActive() bool {
	rb.mu.Lock()
	if !rb.useFallback {
		rb.mu.Unlock()
		return false
	}
	if rb.ctx.Err() != nil || time.Since(rb.lastCheck) < rb.cfg.CheckInterval {
		rb.mu.Unlock()
		return true
	}
	rb.lastCheck = time.Now()
	rb.mu.Unlock()

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Ping(ctx).Err(); err != nil {
		rb.logger.Debug().Err(err).Msg("redis still unavailable")
		return true
	}

	rb.mu.Lock()
	rb.useFallback = false
	rb.failCount = 0
	listening := rb.pubsub != nil
	rb.mu.Unlock()
	if !listening {
		rb.listen()
	}
	rb.logger.Info().Msg("reconnected to redis")
	return false
}

func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.cfg.MaxFailures && !rb.useFallback {
		rb.useFallback = true
		rb.lastCheck = time.Now()
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("redis failure threshold reached, events stay on this node")
	}
}

// Close stops the relay and closes the connection.
func (rb *RedisBus) Close() error {
	rb.cancel()

	rb.mu.Lock()
	if rb.pubsub != nil {
		_ = rb.pubsub.Close()
		rb.pubsub = nil
	}
	rb.mu.Unlock()
	rb.wg.Wait()

	return rb.client.Close()
}
