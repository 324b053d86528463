/*
Package metrics provides Prometheus metrics collection for Fabric.

The metrics package defines all Prometheus collectors used across the
fabric: event bus throughput, watcher scan activity, action outcomes,
artifact store state, Courier message dispositions, and HTTP API
latency. It also tracks adapter health for the /health endpoint and
ships a small Timer helper for histogram observations.

# Architecture

	┌──────────────────── METRICS SYSTEM ───────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │         Package-Level Collectors           │           │
	│  │  - Registered once in init()               │           │
	│  │  - fabric_ name prefix                     │           │
	│  │  - Counters, gauges, histograms            │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │              Collector                      │           │
	│  │  - Samples gauges every 15s                │           │
	│  │  - Sources: artifacts, locks, debounce     │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │            HealthChecker                    │           │
	│  │  - Adapter health registry                 │           │
	│  │  - Feeds Courier /health response          │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │         /metrics (promhttp)                 │           │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

# Metric Catalog

Event pipeline:
  - fabric_events_published_total{type}: Bus publishes by event type
  - fabric_bus_handler_errors_total: Subscriber handler failures
  - fabric_watcher_scans_total{watcher}: Poll scans per watcher
  - fabric_watcher_events_total{watcher,change}: Emitted file events

Routing and actions:
  - fabric_rules_matched_total: Routing rule matches
  - fabric_actions_executed_total{action,status}: Action outcomes

Artifacts:
  - fabric_artifacts_total{status}: Manifest records by status
  - fabric_artifacts_stored_total: Store calls
  - fabric_artifacts_deduplicated_total: Store calls hitting dedup
  - fabric_manifest_corrupt_lines_total: Dropped manifest lines

Courier:
  - fabric_messages_total{provider,disposition}: claimed, completed,
    retried, deadletter
  - fabric_locks_active: Currently claimed locks
  - fabric_debounce_pending: Buffered messages across keys

HTTP API:
  - fabric_http_requests_total{path,code}
  - fabric_http_request_duration_seconds{path}

Scheduler:
  - fabric_sessions_scheduled_total
  - fabric_sessions_rejected_total

# Usage

Incrementing counters:

	metrics.EventsPublished.WithLabelValues("issue.stage_changed").Inc()
	metrics.MessagesTotal.WithLabelValues("dingtalk", "completed").Inc()

Timing an operation:

	timer := metrics.NewTimer()
	handle(req)
	timer.ObserveDurationVec(metrics.HTTPRequestDuration, path)

Adapter health:

	metrics.RegisterAdapter("dingtalk", true, "")
	metrics.UpdateAdapter("dingtalk", false, "webhook secret missing")
	health := metrics.GetHealth()

Serving metrics:

	mux.Handle("/metrics", metrics.Handler())

# Integration Points

  - pkg/bus: Publish counters and handler error counts
  - pkg/watcher: Scan and emit counters
  - pkg/router, pkg/action: Match and outcome counters
  - pkg/artifact: Store/dedup/corrupt-line counters
  - pkg/courier: Message dispositions, HTTP middleware, /health
  - pkg/scheduler: Session counters
*/
package metrics
