package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Acquire/internal/coordinator"
	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/events"
)

// Metrics — Prometheus метрики станции.
//
// Реализует coordinator.Metrics и broker.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	submissions *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	queueDepth  prometheus.Gauge
	documents   *prometheus.CounterVec
	sinkFailure *prometheus.CounterVec
}

var _ coordinator.Metrics = (*Metrics)(nil)

// NewMetrics создаёт и регистрирует метрики в отдельном реестре.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acquire_submissions_total",
			Help: "Submissions by result (accepted, rejected, cancelled)",
		}, []string{"result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acquire_runs_total",
			Help: "Executed plans by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acquire_run_duration_seconds",
			Help:    "Plan execution duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acquire_queue_depth",
			Help: "Submissions waiting in the queue",
		}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acquire_documents_total",
			Help: "Lifecycle documents emitted by the engine",
		}, []string{"name"}),
		sinkFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acquire_sink_failures_total",
			Help: "Document sink failures",
		}, []string{"sink"}),
	}

	m.registry.MustRegister(
		m.submissions, m.runs, m.runDuration, m.queueDepth, m.documents, m.sinkFailure,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry возвращает реестр метрик.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP handler для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SubmissionRecorded учитывает результат постановки в очередь.
func (m *Metrics) SubmissionRecorded(result coordinator.SubmissionResult) {
	m.submissions.WithLabelValues(string(result)).Inc()
}

// RunFinished учитывает завершённый план.
func (m *Metrics) RunFinished(outcome events.Outcome, duration time.Duration) {
	m.runs.WithLabelValues(string(outcome)).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// QueueDepth обновляет длину очереди.
func (m *Metrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// DocumentEmitted учитывает документ движка.
func (m *Metrics) DocumentEmitted(name domain.DocumentName) {
	m.documents.WithLabelValues(string(name)).Inc()
}

// SinkFailed учитывает отказ sink.
func (m *Metrics) SinkFailed(sink string) {
	m.sinkFailure.WithLabelValues(sink).Inc()
}
