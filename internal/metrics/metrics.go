package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Upstream metrics
	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_upstream_requests_total",
			Help: "Upstream HTTP calls by provider, endpoint and outcome",
		},
		[]string{"provider", "endpoint", "outcome"},
	)

	snapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_snapshots_total",
			Help: "Market snapshots served by provenance",
		},
		[]string{"provenance"},
	)

	lastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_last_price",
			Help: "Last price seen for a symbol",
		},
		[]string{"symbol"},
	)

	// Monitor metrics
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_monitor_cycles_total",
			Help: "Monitoring cycles by result",
		},
		[]string{"result"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_monitor_cycle_seconds",
			Help:    "Wall time of one monitoring cycle",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	positionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_positions_closed_total",
			Help: "Positions moved to a terminal status",
		},
		[]string{"status"},
	)

	alertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_triggered_total",
			Help: "Price alerts fired",
		},
		[]string{"condition"},
	)

	// Signal metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_signals_total",
			Help: "Signals produced by direction",
		},
		[]string{"direction"},
	)

	signalConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_signal_confidence",
			Help: "Confidence of the latest signal per symbol",
		},
		[]string{"symbol"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_errors_total",
			Help: "Absorbed errors by component",
		},
		[]string{"component"},
	)
)

func init() {
	prometheus.MustRegister(upstreamRequests)
	prometheus.MustRegister(snapshotsTotal)
	prometheus.MustRegister(lastPrice)
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(positionsClosed)
	prometheus.MustRegister(alertsTriggered)
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(signalConfidence)
	prometheus.MustRegister(errorsTotal)
}

// Handler serves the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordUpstream counts one upstream call.
func RecordUpstream(provider, endpoint, outcome string) {
	upstreamRequests.WithLabelValues(provider, endpoint, outcome).Inc()
}

// RecordSnapshot counts a served snapshot and tracks its price.
func RecordSnapshot(provenance, symbol string, price float64) {
	snapshotsTotal.WithLabelValues(provenance).Inc()
	lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordCycle records the outcome and duration of a monitoring cycle.
func RecordCycle(result string, d time.Duration) {
	cyclesTotal.WithLabelValues(result).Inc()
	cycleDuration.Observe(d.Seconds())
}

// RecordPositionClosed counts a terminal position transition.
func RecordPositionClosed(status string) {
	positionsClosed.WithLabelValues(status).Inc()
}

// RecordAlertTriggered counts a fired alert.
func RecordAlertTriggered(condition string) {
	alertsTriggered.WithLabelValues(condition).Inc()
}

// RecordSignal counts a produced signal.
func RecordSignal(symbol, direction string, confidence float64) {
	signalsTotal.WithLabelValues(direction).Inc()
	signalConfidence.WithLabelValues(symbol).Set(confidence)
}

// RecordError counts an error that was logged and absorbed.
func RecordError(component string) {
	errorsTotal.WithLabelValues(component).Inc()
}
