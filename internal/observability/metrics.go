// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	EventsReceived   prometheus.Counter
	EventsDeduped    prometheus.Counter
	PrefetchEnqueued prometheus.Counter
	QueueDepth       prometheus.Gauge

	// Pipeline metrics
	GateRejections   *prometheus.CounterVec
	TokensDiscovered prometheus.Counter
	DetectionLatency prometheus.Histogram
	Phase2Score      prometheus.Histogram

	// Trading metrics
	TradesOpened    prometheus.Counter
	TradesClosed    *prometheus.CounterVec
	ActivePositions prometheus.Gauge
	FailedSells     prometheus.Gauge

	// Upstream metrics
	RPCCallLatency *prometheus.HistogramVec
	Throttles      *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_sniper"
	}

	return &Metrics{
		EventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_received_total",
			Help:      "Total number of candidate signatures received from the log subscription",
		}),
		EventsDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_deduped_total",
			Help:      "Total number of candidate signatures dropped as duplicates",
		}),
		PrefetchEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "prefetch_enqueued_total",
			Help:      "Total number of prefetched signatures enqueued",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "queue_depth",
			Help:      "Current depth of the intake queues",
		}),

		GateRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "gate_rejections_total",
			Help:      "Total number of candidates rejected, by gate stage",
		}, []string{"stage"}),
		TokensDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "tokens_discovered_total",
			Help:      "Total number of tokens that passed the liquidity gate",
		}),
		DetectionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "detection_latency_seconds",
			Help:      "Latency from observed signature to buy decision",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		Phase2Score: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "phase2_score",
			Help:      "Distribution of phase-2 safety scores",
			Buckets:   []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4},
		}),

		TradesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_opened_total",
			Help:      "Total number of positions opened",
		}),
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_closed_total",
			Help:      "Total number of positions closed, by trigger",
		}, []string{"trigger"}),
		ActivePositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "active_positions",
			Help:      "Number of currently tracked open positions",
		}),
		FailedSells: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "failed_sells",
			Help:      "Number of sells pending in the retry ledger",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "rpc_call_duration_seconds",
			Help:      "RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		Throttles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "throttles_total",
			Help:      "Total number of 429 throttle events, by upstream",
		}, []string{"upstream"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventReceived increments the feed received counter.
func RecordEventReceived() {
	DefaultMetrics.EventsReceived.Inc()
}

// RecordEventDeduped increments the feed dedupe counter.
func RecordEventDeduped() {
	DefaultMetrics.EventsDeduped.Inc()
}

// RecordGateRejection increments the rejection counter for a gate stage.
func RecordGateRejection(stage string) {
	DefaultMetrics.GateRejections.WithLabelValues(stage).Inc()
}

// RecordTradeOpened increments the opened counter.
func RecordTradeOpened() {
	DefaultMetrics.TradesOpened.Inc()
}

// RecordTradeClosed increments the closed counter for a trigger.
func RecordTradeClosed(trigger string) {
	DefaultMetrics.TradesClosed.WithLabelValues(trigger).Inc()
}

// SetActivePositions updates the open-position gauge.
func SetActivePositions(n int) {
	DefaultMetrics.ActivePositions.Set(float64(n))
}

// RecordThrottle increments the throttle counter for an upstream.
func RecordThrottle(upstream string) {
	DefaultMetrics.Throttles.WithLabelValues(upstream).Inc()
}
