// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Flush statuses.
const (
	FlushOK    = "ok"
	FlushError = "error"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Collector metrics
	BundlesReceived prometheus.Counter
	FailedTxSkipped prometheus.Counter
	SwapsDecoded    prometheus.Counter
	DecodeFailures  *prometheus.CounterVec
	Coalesced       prometheus.Counter
	Flushes         *prometheus.CounterVec
	HighestSlotSeen prometheus.Gauge

	// Latency metrics
	SinkLatency    *prometheus.HistogramVec
	RPCCallLatency *prometheus.HistogramVec

	// Transport metrics
	WSReconnects *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulFlush prometheus.Gauge

	highestSlot atomic.Int64
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "clmm_collector"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Collector metrics
		BundlesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "bundles_received_total",
			Help:      "Total number of log bundles received from the transport",
		}),
		FailedTxSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "failed_tx_skipped_total",
			Help:      "Total number of bundles ignored because the transaction failed",
		}),
		SwapsDecoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "swaps_decoded_total",
			Help:      "Total number of bundles that yielded a swap event",
		}),
		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "decode_failures_total",
			Help:      "Total number of program data lines that failed to decode by reason",
		}, []string{"reason"}),
		Coalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "coalesced_total",
			Help:      "Total number of pending swaps replaced before a flush",
		}),
		Flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "flushes_total",
			Help:      "Total number of snapshot flushes by status",
		}, []string{"status"}),
		HighestSlotSeen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		// Latency metrics
		SinkLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "persist_latency_seconds",
			Help:      "Sink persist latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Transport metrics
		WSReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of websocket reconnect attempts by status",
		}, []string{"status"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulFlush: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_flush_timestamp",
			Help:      "Unix timestamp of last successful flush",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordBundle counts a received bundle and tracks its slot.
func (m *Metrics) RecordBundle(slot int64) {
	m.BundlesReceived.Inc()
	for {
		cur := m.highestSlot.Load()
		if slot <= cur {
			return
		}
		if m.highestSlot.CompareAndSwap(cur, slot) {
			m.HighestSlotSeen.Set(float64(slot))
			return
		}
	}
}

// RecordDecodeFailure counts an undecodable program data line.
func (m *Metrics) RecordDecodeFailure(reason string) {
	m.DecodeFailures.WithLabelValues(reason).Inc()
}

// RecordFlush records a flush outcome.
func (m *Metrics) RecordFlush(err error, at time.Time) {
	if err != nil {
		m.Flushes.WithLabelValues(FlushError).Inc()
		return
	}
	m.Flushes.WithLabelValues(FlushOK).Inc()
	m.LastSuccessfulFlush.Set(float64(at.Unix()))
}

// RecordSinkLatency records how long one sink took to persist a snapshot.
func (m *Metrics) RecordSinkLatency(sink string, d time.Duration) {
	m.SinkLatency.WithLabelValues(sink).Observe(d.Seconds())
}

// RecordReconnect records a websocket reconnect attempt.
func (m *Metrics) RecordReconnect(err error) {
	if err != nil {
		m.WSReconnects.WithLabelValues("error").Inc()
		return
	}
	m.WSReconnects.WithLabelValues("ok").Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
