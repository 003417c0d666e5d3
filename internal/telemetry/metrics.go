/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TracksQueuedTotal counts tracks pushed to the playback queue.
	TracksQueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boombox",
		Name:      "tracks_queued_total",
		Help:      "Tracks pushed to the playback queue, by source (rotation, latch, request).",
	}, []string{"source"})

	// TracksPlayedTotal counts tracks that started playing.
	TracksPlayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "boombox",
		Name:      "tracks_played_total",
		Help:      "Tracks that started playing.",
	})

	// PrepareMisses counts Prepare calls that produced no track.
	PrepareMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "boombox",
		Name:      "prepare_misses_total",
		Help:      "Prepare calls that could not produce a track.",
	})

	// CandidatesRejected counts candidates turned down by the verifier.
	CandidatesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boombox",
		Name:      "candidates_rejected_total",
		Help:      "Candidates rejected during selection, by reason.",
	}, []string{"reason"})

	// RescuesTotal counts rescue signals raised by the sequencer.
	RescuesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "boombox",
		Name:      "rescues_total",
		Help:      "Selection passes where every candidate was rejected.",
	})

	// ArtistHistorySize tracks the artist history length.
	ArtistHistorySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "boombox",
		Name:      "artist_history_size",
		Help:      "Artists currently held in the dedup history.",
	})

	// RequestQueueDepth tracks pending requests.
	RequestQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "boombox",
		Name:      "request_queue_depth",
		Help:      "Requests waiting to be queued.",
	})

	// PlaybackQueueDepth tracks tracks queued ahead of the current one.
	PlaybackQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "boombox",
		Name:      "playback_queue_depth",
		Help:      "Tracks waiting in the playback queue.",
	})

	// ActiveLatches tracks open latch sessions.
	ActiveLatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "boombox",
		Name:      "active_latches",
		Help:      "Open latch sessions.",
	})

	// LeaderStatus is 1 while this node drives the playback queue.
	LeaderStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "boombox",
		Name:      "leader_status",
		Help:      "Whether this node holds the director lease (1) or not (0).",
	}, []string{"instance_id"})

	// LeaderChanges counts leadership transitions.
	LeaderChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boombox",
		Name:      "leader_changes_total",
		Help:      "Director lease acquisitions and losses.",
	}, []string{"instance_id", "change"})

	// APIRequestsTotal counts control API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boombox",
		Name:      "api_requests_total",
		Help:      "Control API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes control API latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "boombox",
		Name:      "api_request_duration_seconds",
		Help:      "Control API request duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight API requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "boombox",
		Name:      "api_active_connections",
		Help:      "In-flight control API requests.",
	})

	// DatabaseQueryDuration observes catalog store operations.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "boombox",
		Name:      "database_query_duration_seconds",
		Help:      "Catalog database operation duration.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts failed catalog store operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boombox",
		Name:      "database_errors_total",
		Help:      "Catalog database operations that returned an error.",
	}, []string{"operation", "table"})

	// CacheOperations counts artist history cache reads and writes.
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boombox",
		Name:      "cache_operations_total",
		Help:      "Artist history cache operations, by operation and result.",
	}, []string{"operation", "result"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
