/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventNowPlaying       EventType = "now_playing"
	EventTrackQueued      EventType = "track.queued"
	EventSequenceChange   EventType = "sequence.change"
	EventCollectionChange EventType = "collection.change"
	EventCrateChange      EventType = "crate.change"
	EventProfileChange    EventType = "profile.change"
	EventLatchCreated     EventType = "latch.created"
	EventLatchRemoved     EventType = "latch.removed"
	EventRequestAdded     EventType = "request.added"
	EventRescue           EventType = "sequencer.rescue"
	EventNoCrates         EventType = "sequencer.no_crates"
	EventError            EventType = "boombox.error"
	EventHealth           EventType = "health"
)

// AllEventTypes lists every event type.
var AllEventTypes = []EventType{
	EventNowPlaying,
	EventTrackQueued,
	EventSequenceChange,
	EventCollectionChange,
	EventCrateChange,
	EventProfileChange,
	EventLatchCreated,
	EventLatchRemoved,
	EventRequestAdded,
	EventRescue,
	EventNoCrates,
	EventError,
	EventHealth,
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher is anything events can be published to.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Broker publishes and subscribes. Bus and the distributed buses in
// internal/eventbus implement it.
type Broker interface {
	Publisher
	Subscribe(eventType EventType) Subscriber
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events
// rather than block the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}
