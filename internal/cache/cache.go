/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache keeps the artist history in Redis so a restarted node
// resumes artist separation where it left off.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/telemetry"
)

// DefaultHistoryTTL bounds how long a stale history survives an idle node.
const DefaultHistoryTTL = 24 * time.Hour

// KeyArtistHistory prefixes the per-node history key.
const KeyArtistHistory = "boombox:history:artists:" // + node_id

// ArtistSource seeds the history when the cache has nothing.
type ArtistSource interface {
	RecentArtists(ctx context.Context, limit int) ([]string, error)
}

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NodeID        string

	HistoryTTL time.Duration

	// Fallback is consulted on a cache miss with FallbackLimit plays.
	Fallback      ArtistSource
	FallbackLimit int

	// DisableOnError stops using Redis after the first failure.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		NodeID:         "default",
		HistoryTTL:     DefaultHistoryTTL,
		FallbackLimit:  50,
		DisableOnError: true,
	}
}

// Cache stores the artist history with graceful fallback when Redis is
// unreachable.
type Cache struct {
	client redis.UniversalClient
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New connects to Redis. An unreachable server is not an error: the cache
// starts disabled and only the fallback source is used.
func New(cfg Config, logger zerolog.Logger) *Cache {
	log := componentLogger(logger)
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, artist history will not be cached")
		_ = client.Close()
		return &Cache{logger: log, config: cfg, disabled: true}
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("artist history cache ready")
	return NewWithClient(client, cfg, logger)
}

// NewWithClient wraps an existing client. A nil client gives a cache that
// only reads the fallback source.
func NewWithClient(client redis.UniversalClient, cfg Config, logger zerolog.Logger) *Cache {
	logger = componentLogger(logger)
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = DefaultHistoryTTL
	}
	if cfg.NodeID == "" {
		cfg.NodeID = "default"
	}
	return &Cache{client: client, logger: logger, config: cfg}
}

func componentLogger(logger zerolog.Logger) zerolog.Logger {
	return logger.With().Str("component", "cache").Logger()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if Redis is in use.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	telemetry.CacheOperations.WithLabelValues(operation, "error").Inc()
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache after redis error")
	}
}

func (c *Cache) historyKey() string {
	return KeyArtistHistory + c.config.NodeID
}

// SaveArtistHistory stores the history snapshot, oldest artist first.
func (c *Cache) SaveArtistHistory(ctx context.Context, artists []string) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(artists)
	if err != nil {
		return fmt.Errorf("marshal artist history: %w", err)
	}
	if err := c.client.Set(ctx, c.historyKey(), data, c.config.HistoryTTL).Err(); err != nil {
		c.handleError(err, "save")
		return fmt.Errorf("save artist history: %w", err)
	}
	telemetry.CacheOperations.WithLabelValues("save", "ok").Inc()
	return nil
}

// LoadArtistHistory returns the cached history. On a miss, or with Redis
// unavailable, the fallback source is asked for recent artists.
func (c *Cache) LoadArtistHistory(ctx context.Context) ([]string, error) {
	if c.IsAvailable() {
		data, err := c.client.Get(ctx, c.historyKey()).Bytes()
		switch {
		case err == nil:
			var artists []string
			if err := json.Unmarshal(data, &artists); err == nil {
				telemetry.CacheOperations.WithLabelValues("load", "hit").Inc()
				return artists, nil
			}
			c.logger.Debug().Str("key", c.historyKey()).Msg("discarding unreadable artist history")
		case errors.Is(err, redis.Nil):
			telemetry.CacheOperations.WithLabelValues("load", "miss").Inc()
		default:
			c.handleError(err, "load")
		}
	}

	if c.config.Fallback == nil {
		return nil, nil
	}
	limit := c.config.FallbackLimit
	if limit <= 0 {
		limit = 50
	}
	artists, err := c.config.Fallback.RecentArtists(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fallback artist history: %w", err)
	}
	c.logger.Debug().Int("artists", len(artists)).Msg("artist history seeded from play history")
	return artists, nil
}

// ClearArtistHistory removes the cached history.
func (c *Cache) ClearArtistHistory(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	if err := c.client.Del(ctx, c.historyKey()).Err(); err != nil {
		c.handleError(err, "clear")
		return fmt.Errorf("clear artist history: %w", err)
	}
	return nil
}
