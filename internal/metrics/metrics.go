// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package metrics registers the Prometheus instruments for the service:
// webhook intake, automation engine activity, outbound Graph API calls,
// database queries, and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook intake
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total webhook events received, by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: accepted, duplicate, ignored, invalid
	)

	WebhookSignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Total webhook payloads rejected for bad signatures",
		},
	)

	// Automation engine
	AutomationActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_actions_total",
			Help: "Total flow decisions taken, by action",
		},
		[]string{"action"},
	)

	RuleMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_rule_matches_total",
			Help: "Total rule matches, by trigger type",
		},
		[]string{"trigger"},
	)

	DMsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dms_sent_total",
			Help: "Total outbound messages, by kind",
		},
		[]string{"kind"}, // follow_request, email_request, primary, retry, reminder, comment_reply
	)

	LeadsCapturedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leads_captured_total",
			Help: "Total leads captured across all accounts",
		},
	)

	PlanLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_limit_denials_total",
			Help: "Total operations denied by plan limits",
		},
		[]string{"limit"}, // accounts, rules, dms
	)

	// Graph API client
	GraphAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph_api_request_duration_seconds",
			Help:    "Duration of Graph API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	GraphAPIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_api_errors_total",
			Help: "Total Graph API errors, by error code",
		},
		[]string{"operation", "code"},
	)

	// Circuit breaker around the Graph API client
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "outcome"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of Postgres queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total Postgres query errors",
		},
		[]string{"operation", "table"},
	)

	// Event pipeline
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total events published to the automation pipeline",
		},
		[]string{"topic"},
	)

	EventsPoisoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_poisoned_total",
			Help: "Total events moved to the poison topic after retries",
		},
	)

	// HTTP surface
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket
	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connected_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)
)

// RecordAPIRequest records one HTTP request observation.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDBQuery records one database query observation.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}
