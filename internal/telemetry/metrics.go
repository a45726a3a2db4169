/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_api_requests_total",
		Help: "Total HTTP API requests by method, endpoint, and status code.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "heimdall_api_request_duration_seconds",
		Help:    "HTTP API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heimdall_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	APIWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heimdall_api_websocket_connections",
		Help: "Open event stream WebSocket connections.",
	})
)

// Scheduling resolver metrics.
var (
	ResolutionPassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heimdall_resolution_passes_total",
		Help: "Total schedule resolution passes across all device polls.",
	})

	ResolutionSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heimdall_resolution_skipped_items_total",
		Help: "Catalog items skipped as unschedulable during resolution.",
	})

	DevicePollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_device_polls_total",
		Help: "Device poll requests by endpoint.",
	}, []string{"endpoint"})

	CatalogFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heimdall_catalog_fetch_errors_total",
		Help: "Catalog fetch failures surfaced to poll handlers.",
	})
)

// Analytics metrics.
var (
	ZoneEventsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heimdall_zone_events_ingested_total",
		Help: "People-counting zone events accepted for storage.",
	})
)

// Cluster coordination metrics.
var (
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "heimdall_leader_election_status",
		Help: "Whether this instance currently holds the coordination lease (1=leader).",
	}, []string{"instance"})

	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_leader_election_changes_total",
		Help: "Leadership transitions by instance and direction.",
	}, []string{"instance", "change"})
)

// Webhook delivery metrics.
var (
	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_webhook_deliveries_total",
		Help: "Webhook delivery attempts by outcome.",
	}, []string{"outcome"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
