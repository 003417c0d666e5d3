/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package boombox

import "github.com/friendsincode/boombox/internal/library"

// SequenceChangeFunc receives the previous and the new sequencing mode.
type SequenceChangeFunc func(previous, current Sequence)

// IDChangeFunc receives the previous and new collection, crate or profile id.
type IDChangeFunc func(previous, current string)

// TrackQueuedFunc receives a track right after it was queued.
type TrackQueuedFunc func(track *library.Track)

// ErrorFunc receives non-fatal collaborator failures.
type ErrorFunc func(err error)

// OnSequenceChange subscribes to sequencing mode changes. The returned
// func unsubscribes.
func (b *BoomBox) OnSequenceChange(fn SequenceChangeFunc) func() { return b.sequenceChange.Add(fn) }

// OnCollectionChange subscribes to collection changes between queued tracks.
func (b *BoomBox) OnCollectionChange(fn IDChangeFunc) func() { return b.collectionChange.Add(fn) }

// OnCrateChange subscribes to crate changes. Latched tracks never raise one.
func (b *BoomBox) OnCrateChange(fn IDChangeFunc) func() { return b.crateChange.Add(fn) }

// OnProfileChange subscribes to profile changes between rotation tracks.
func (b *BoomBox) OnProfileChange(fn IDChangeFunc) func() { return b.profileChange.Add(fn) }

// OnTrackQueued subscribes to queued tracks.
func (b *BoomBox) OnTrackQueued(fn TrackQueuedFunc) func() { return b.trackQueued.Add(fn) }

// OnError subscribes to collaborator failures.
func (b *BoomBox) OnError(fn ErrorFunc) func() { return b.errors.Add(fn) }
