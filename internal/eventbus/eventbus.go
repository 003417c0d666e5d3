/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus fans engine events out to other nodes over Redis
// pub/sub or NATS. Every bus also delivers to local subscribers, and
// keeps doing so when the remote transport is down.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/config"
	"github.com/friendsincode/boombox/internal/events"
)

// SubjectPrefix namespaces event channels and subjects.
const SubjectPrefix = "boombox.events."

// Bus is an events.Broker that owns a connection.
type Bus interface {
	events.Broker
	Close() error
}

// New builds the bus selected by configuration.
func New(cfg *config.Config, logger zerolog.Logger) (Bus, error) {
	logger = logger.With().Str("component", "eventbus").Str("backend", string(cfg.EventBus)).Logger()

	switch cfg.EventBus {
	case config.EventBusMemory, "":
		return &memoryBus{Bus: events.NewBus()}, nil
	case config.EventBusRedis:
		rc := DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		return NewRedisBus(rc, cfg.NodeID, logger), nil
	case config.EventBusNATS:
		nc := DefaultNATSConfig()
		nc.URL = cfg.NATSURL
		return NewNATSBus(nc, cfg.NodeID, logger), nil
	}
	return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
}

type memoryBus struct {
	*events.Bus
}

func (*memoryBus) Close() error { return nil }

// envelope is the wire form of an event.
type envelope struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalEnvelope(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(envelope{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if env.EventType == "" {
		return nil, fmt.Errorf("unmarshal event: missing event type")
	}
	return &env, nil
}

func subject(eventType events.EventType) string {
	return SubjectPrefix + string(eventType)
}

func nodeIDOrRandom(nodeID string) string {
	if nodeID != "" {
		return nodeID
	}
	return "node-" + uuid.NewString()[:8]
}

// relay hands remote events to the local bus, dropping our own echoes.
type relay struct {
	local  *events.Bus
	nodeID string
	logger zerolog.Logger
}

func (r *relay) deliver(data []byte) bool {
	env, err := unmarshalEnvelope(data)
	if err != nil {
		r.logger.Warn().Err(err).Msg("dropping malformed remote event")
		return false
	}
	if env.NodeID == r.nodeID {
		return false
	}
	r.local.Publish(env.EventType, env.Payload)
	r.logger.Debug().
		Str("event_type", string(env.EventType)).
		Str("source_node", env.NodeID).
		Msg("delivered remote event")
	return true
}
