package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dockctl"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status endpoint HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status endpoint HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "commands_total",
			Help:      "Commands dispatched by broker sessions.",
		},
		[]string{"type", "success"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "command_duration_seconds",
			Help:      "Command dispatch duration in seconds.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15, 60, 300},
		},
		[]string{"type"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "sessions_active",
			Help:      "Currently connected broker sessions.",
		},
	)
	sessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "sessions_total",
			Help:      "Broker sessions accepted since start.",
		},
	)
	malformedEnvelopes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "malformed_envelopes_total",
			Help:      "Lines that failed envelope decoding.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			commands,
			commandDuration,
			sessionsActive,
			sessionsTotal,
			malformedEnvelopes,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCommand records one dispatched command. Unknown types are folded
// into "UNKNOWN" to bound label cardinality.
func RecordCommand(commandType string, known bool, success bool, duration time.Duration) {
	RegisterMetrics()
	if !known {
		commandType = "UNKNOWN"
	}
	commands.WithLabelValues(commandType, strconv.FormatBool(success)).Inc()
	commandDuration.WithLabelValues(commandType).Observe(duration.Seconds())
}

func RecordSessionOpened() {
	RegisterMetrics()
	sessionsTotal.Inc()
	sessionsActive.Inc()
}

func RecordSessionClosed() {
	RegisterMetrics()
	sessionsActive.Dec()
}

func RecordMalformedEnvelope() {
	RegisterMetrics()
	malformedEnvelopes.Inc()
}
