/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package notify holds the ordered, synchronous listener lists used by the
// sequencer and the engine.
package notify

import "sync"

// List is an ordered set of callbacks of type F. The zero value is ready
// to use.
type List[F any] struct {
	mu      sync.RWMutex
	nextID  int
	entries []entry[F]
}

type entry[F any] struct {
	id int
	fn F
}

// Add appends fn and returns a func that removes it again. Removing twice
// is a no-op.
func (l *List[F]) Add(fn F) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, entry[F]{id: id, fn: fn})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

// Each calls call once per listener in subscription order. The list is
// copied first, so listeners may subscribe or unsubscribe from inside
// call.
func (l *List[F]) Each(call func(F)) {
	l.mu.RLock()
	entries := make([]entry[F], len(l.entries))
	copy(entries, l.entries)
	l.mu.RUnlock()
	for _, e := range entries {
		call(e.fn)
	}
}

// Len returns the number of listeners.
func (l *List[F]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
