// Package metrics exposes the Prometheus collectors used across the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Discogs API
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discogs_requests_total",
			Help: "Total number of requests sent to the Discogs API",
		},
		[]string{"operation", "outcome"}, // outcome: ok, unavailable, rejected or the HTTP status
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discogs_request_duration_seconds",
			Help:    "Duration of Discogs API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Reconciliation
	SyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_items_total",
			Help: "Remote items processed by reconciliation",
		},
		[]string{"list", "outcome"}, // outcome: synced, failed
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Full synchronization runs",
		},
		[]string{"trigger", "result"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of full synchronization runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	SyncInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_in_progress",
			Help: "1 while a full synchronization is running",
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSyncItems adds the per-list reconciliation outcome.
func RecordSyncItems(list string, synced, failed int) {
	SyncItems.WithLabelValues(list, "synced").Add(float64(synced))
	SyncItems.WithLabelValues(list, "failed").Add(float64(failed))
}

// RecordSyncRun records a finished full synchronization.
func RecordSyncRun(trigger string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SyncRuns.WithLabelValues(trigger, result).Inc()
	SyncDuration.Observe(duration.Seconds())
}
