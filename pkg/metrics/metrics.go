package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Replication catalog metrics
	StatesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "underpass_states_recorded_total",
			Help: "Total number of replication checkpoints written to the catalog",
		},
	)

	StatesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "underpass_states_skipped_total",
			Help: "Total number of state files skipped because they were already cataloged",
		},
	)

	// Planet client metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underpass_planet_requests_total",
			Help: "Total number of HTTP requests to the planet server by result",
		},
		[]string{"result"},
	)

	BytesDownloaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "underpass_planet_bytes_downloaded_total",
			Help: "Total number of response body bytes read from the planet server",
		},
	)

	Reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "underpass_planet_reconnects_total",
			Help: "Total number of TLS reconnects after the server closed the stream",
		},
	)

	// Change application metrics
	ChangesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underpass_changes_applied_total",
			Help: "Total number of entities applied to the raw store by type and action",
		},
		[]string{"type", "action"},
	)

	StoreConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "underpass_store_conflicts_total",
			Help: "Total number of upserts rejected by the version guard",
		},
	)

	ChangeFileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "underpass_changefile_duration_seconds",
			Help:    "Time taken to parse, resolve and apply one change file in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Validation metrics
	ValidationFindings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underpass_validation_findings_total",
			Help: "Total number of conflation findings by status",
		},
		[]string{"status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(StatesRecorded)
	prometheus.MustRegister(StatesSkipped)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(BytesDownloaded)
	prometheus.MustRegister(Reconnects)
	prometheus.MustRegister(ChangesApplied)
	prometheus.MustRegister(StoreConflicts)
	prometheus.MustRegister(ChangeFileDuration)
	prometheus.MustRegister(ValidationFindings)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
