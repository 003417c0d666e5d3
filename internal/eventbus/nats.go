/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/boombox/internal/events"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus publishes events on NATS subjects and relays events from other
// nodes to local subscribers. The client reconnects on its own; while
// disconnected, publishes are buffered by the client.
type NATSBus struct {
	*events.Bus
	relay  relay
	conn   *nats.Conn
	sub    *nats.Subscription
	logger zerolog.Logger
}

// NewNATSBus connects to NATS. When the server cannot be reached the bus
// delivers locally only.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) *NATSBus {
	local := events.NewBus()
	nodeID = nodeIDOrRandom(nodeID)
	nb := &NATSBus{
		Bus:    local,
		relay:  relay{local: local, nodeID: nodeID, logger: logger},
		logger: logger,
	}

	opts := []nats.Option{
		nats.Name("boombox-" + nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		logger.Warn().Err(err).Str("url", cfg.URL).Msg("nats unavailable, events stay on this node")
		return nb
	}

	sub, err := conn.Subscribe(SubjectPrefix+">", func(msg *nats.Msg) {
		nb.relay.deliver(msg.Data)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("nats subscribe failed, events stay on this node")
		conn.Close()
		return nb
	}

	nb.conn = conn
	nb.sub = sub
	logger.Info().Str("url", conn.ConnectedUrl()).Str("node_id", nodeID).Msg("nats event bus ready")
	return nb
}

// Connected reports whether events leave this node.
func (nb *NATSBus) Connected() bool {
	return nb.conn != nil && nb.conn.IsConnected()
}

// Publish delivers locally, then to the other nodes.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.Bus.Publish(eventType, payload)
	if nb.conn == nil {
		return
	}

	data, err := marshalEnvelope(eventType, payload, nb.relay.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to encode event")
		return
	}
	if err := nb.conn.Publish(subject(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to nats")
	}
}

// Close drains the subscription and closes the connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	if nb.sub != nil {
		_ = nb.sub.Unsubscribe()
	}
	return nb.conn.Drain()
}
