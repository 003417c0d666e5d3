/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EventBusBackend selects how events leave the process.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	LogFile     string

	// Program and rotation
	ProgramFile           string
	ProfileID             string
	ArtistHistorySize     int
	SimilarityThreshold   float64
	NoCratesWarnInterval  time.Duration
	QueueLookahead        int
	TrackInterval         time.Duration
	ValidateFiles         bool
	ReadTags              bool
	RestoreArtistHistory  bool
	RecentArtistsFromPlay int

	// Event fan-out
	EventBus EventBusBackend
	NATSURL  string
	NodeID   string

	// Redis, shared by the cache, the redis event bus and leader election
	CacheEnabled   bool
	LeaderElection bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"BOOMBOX_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"BOOMBOX_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"BOOMBOX_HTTP_PORT"}, 8080),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"BOOMBOX_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:       getEnvAny([]string{"BOOMBOX_DB_DSN"}, "boombox.db"),
		LogFile:     getEnvAny([]string{"BOOMBOX_LOG_FILE"}, ""),

		ProgramFile:           getEnvAny([]string{"BOOMBOX_PROGRAM_FILE"}, ""),
		ProfileID:             getEnvAny([]string{"BOOMBOX_PROFILE"}, ""),
		ArtistHistorySize:     getEnvIntAny([]string{"BOOMBOX_ARTIST_HISTORY_SIZE"}, 50),
		SimilarityThreshold:   getEnvFloatAny([]string{"BOOMBOX_ARTIST_SIMILARITY_THRESHOLD"}, 0.48),
		NoCratesWarnInterval:  time.Duration(getEnvIntAny([]string{"BOOMBOX_NO_CRATES_WARN_INTERVAL"}, 5)) * time.Second,
		QueueLookahead:        getEnvIntAny([]string{"BOOMBOX_QUEUE_LOOKAHEAD"}, 2),
		TrackInterval:         time.Duration(getEnvIntAny([]string{"BOOMBOX_TRACK_INTERVAL"}, 180)) * time.Second,
		ValidateFiles:         getEnvBoolAny([]string{"BOOMBOX_VALIDATE_FILES"}, true),
		ReadTags:              getEnvBoolAny([]string{"BOOMBOX_READ_TAGS"}, true),
		RestoreArtistHistory:  getEnvBoolAny([]string{"BOOMBOX_RESTORE_ARTIST_HISTORY"}, true),
		RecentArtistsFromPlay: getEnvIntAny([]string{"BOOMBOX_RECENT_ARTISTS_FROM_PLAYS"}, 20),

		EventBus: EventBusBackend(getEnvAny([]string{"BOOMBOX_EVENTBUS"}, string(EventBusMemory))),
		NATSURL:  getEnvAny([]string{"BOOMBOX_NATS_URL", "NATS_URL"}, "nats://127.0.0.1:4222"),
		NodeID:   getEnvAny([]string{"BOOMBOX_NODE_ID"}, ""),

		CacheEnabled:   getEnvBoolAny([]string{"BOOMBOX_CACHE_ENABLED"}, false),
		LeaderElection: getEnvBoolAny([]string{"BOOMBOX_LEADER_ELECTION"}, false),
		RedisAddr:      getEnvAny([]string{"BOOMBOX_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:  getEnvAny([]string{"BOOMBOX_REDIS_PASSWORD"}, ""),
		RedisDB:        getEnvIntAny([]string{"BOOMBOX_REDIS_DB"}, 0),

		TracingEnabled:    getEnvBoolAny([]string{"BOOMBOX_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"BOOMBOX_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"BOOMBOX_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("BOOMBOX_DB_DSN must be provided")
	}
	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}
	if cfg.ArtistHistorySize < 1 {
		return nil, fmt.Errorf("BOOMBOX_ARTIST_HISTORY_SIZE must be at least 1")
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("BOOMBOX_ARTIST_SIMILARITY_THRESHOLD must be in (0, 1], got %v", cfg.SimilarityThreshold)
	}
	if cfg.NoCratesWarnInterval <= 0 {
		return nil, fmt.Errorf("BOOMBOX_NO_CRATES_WARN_INTERVAL must be positive")
	}
	if cfg.QueueLookahead < 1 {
		return nil, fmt.Errorf("BOOMBOX_QUEUE_LOOKAHEAD must be at least 1")
	}
	if cfg.TrackInterval <= 0 {
		return nil, fmt.Errorf("BOOMBOX_TRACK_INTERVAL must be positive")
	}
	if cfg.NodeID == "" {
		host, _ := os.Hostname()
		cfg.NodeID = host
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
