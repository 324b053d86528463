package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event bus metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_events_published_total",
			Help: "Total number of events published by type",
		},
		[]string{"type"},
	)

	BusHandlerErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_bus_handler_errors_total",
			Help: "Total number of subscriber handler failures",
		},
	)

	// Watcher metrics
	WatcherScans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_watcher_scans_total",
			Help: "Total number of poll scans by watcher",
		},
		[]string{"watcher"},
	)

	WatcherEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_watcher_events_total",
			Help: "Total number of file events emitted by watcher and change type",
		},
		[]string{"watcher", "change"},
	)

	// Router and action metrics
	ActionsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_actions_executed_total",
			Help: "Total number of action executions by action and status",
		},
		[]string{"action", "status"},
	)

	RulesMatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_rules_matched_total",
			Help: "Total number of routing rule matches",
		},
	)

	// Artifact metrics
	ArtifactsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fabric_artifacts_total",
			Help: "Total number of manifest records by status",
		},
		[]string{"status"},
	)

	ManifestCorruptLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_manifest_corrupt_lines_total",
			Help: "Total number of manifest lines dropped as unparseable",
		},
	)

	ArtifactsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_artifacts_stored_total",
			Help: "Total number of artifact store calls",
		},
	)

	ArtifactsDeduplicated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_artifacts_deduplicated_total",
			Help: "Total number of store calls that reused an existing blob",
		},
	)

	// Courier metrics
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_messages_total",
			Help: "Total number of message transitions by provider and disposition",
		},
		[]string{"provider", "disposition"},
	)

	LocksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fabric_locks_active",
			Help: "Number of currently claimed message locks",
		},
	)

	DebouncePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fabric_debounce_pending",
			Help: "Number of messages buffered across all debounce keys",
		},
	)

	// HTTP API metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabric_http_requests_total",
			Help: "Total number of API requests by path and status code",
		},
		[]string{"path", "code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fabric_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// Scheduler metrics
	SessionsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_sessions_scheduled_total",
			Help: "Total number of agent sessions scheduled",
		},
	)

	SessionsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fabric_sessions_rejected_total",
			Help: "Total number of sessions rejected by the concurrency gate",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(BusHandlerErrors)
	prometheus.MustRegister(WatcherScans)
	prometheus.MustRegister(WatcherEvents)
	prometheus.MustRegister(ActionsExecuted)
	prometheus.MustRegister(RulesMatched)
	prometheus.MustRegister(ArtifactsTotal)
	prometheus.MustRegister(ManifestCorruptLines)
	prometheus.MustRegister(ArtifactsStored)
	prometheus.MustRegister(ArtifactsDeduplicated)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(LocksActive)
	prometheus.MustRegister(DebouncePending)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(SessionsScheduled)
	prometheus.MustRegister(SessionsRejected)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observations
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time on a histogram
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time on a histogram vec
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
