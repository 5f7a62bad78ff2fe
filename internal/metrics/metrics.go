// Package metrics provides Prometheus metrics for parajoin
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for parajoin
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Engine edit metrics
	EditsTotal          *prometheus.CounterVec
	EditDuration        *prometheus.HistogramVec
	ParagraphsChanged   *prometheus.CounterVec
	TogglesRejected     prometheus.Counter
	HeadsNormalized     prometheus.Counter
	ParagraphsAligned   prometheus.Counter
	JournalReplaysTotal prometheus.Counter

	// Repository metrics
	StoreOperationDuration *prometheus.HistogramVec
	DocumentParagraphs     prometheus.Gauge

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// gRPC request metrics
	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parajoin_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parajoin_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "parajoin_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Engine edit metrics
	m.EditsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parajoin_edits_total",
			Help: "Total number of engine edits",
		},
		[]string{"operation", "status"},
	)

	m.EditDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parajoin_edit_duration_seconds",
			Help:    "Duration of engine edits in seconds, load and save included",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.ParagraphsChanged = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parajoin_paragraphs_changed_total",
			Help: "Total number of paragraphs whose joined text changed",
		},
		[]string{"operation"},
	)

	m.TogglesRejected = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "parajoin_toggles_rejected_total",
			Help: "Total number of join toggles rejected for lack of a base",
		},
	)

	m.HeadsNormalized = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "parajoin_heads_normalized_total",
			Help: "Total number of orphaned continuations turned into bases",
		},
	)

	m.ParagraphsAligned = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "parajoin_paragraphs_aligned_total",
			Help: "Total number of paragraphs whose translation was aligned",
		},
	)

	m.JournalReplaysTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "parajoin_journal_replays_total",
			Help: "Total number of journaled edits replayed on load",
		},
	)

	// Repository metrics
	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parajoin_store_operation_duration_seconds",
			Help:    "Duration of document load and save operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.DocumentParagraphs = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "parajoin_document_paragraphs",
			Help: "Paragraph count of the most recently edited document",
		},
	)

	// Server metrics
	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "parajoin_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// StartUptime periodically updates the uptime gauge until stop is closed
func (m *Metrics) StartUptime(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
			case <-stop:
				return
			}
		}
	}()
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordEdit records an engine edit and the paragraphs it changed
func (m *Metrics) RecordEdit(operation string, status string, duration time.Duration, changed int) {
	m.EditsTotal.WithLabelValues(operation, status).Inc()
	m.EditDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.ParagraphsChanged.WithLabelValues(operation).Add(float64(changed))
}

// RecordStoreOperation records a repository load or save
func (m *Metrics) RecordStoreOperation(operation string, duration time.Duration) {
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
