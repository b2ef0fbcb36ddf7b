package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stefbowerman/undftd-cli/internal/pipeline"
)

// Metric names, without the namespace.
const (
	MetricRecordsTotal       = "records_total"
	MetricRemoteCallsTotal   = "remote_calls_total"
	MetricRemoteCallSeconds  = "remote_call_duration_seconds"
	MetricLimiterWaitSeconds = "limiter_wait_seconds"
	MetricStageSeconds       = "stage_duration_seconds"
)

// DefaultNamespace prefixes every series.
const DefaultNamespace = "undftd"

// Metrics owns a private Prometheus registry and the in-memory collector.
// It observes pipeline progress, remote calls and limiter waits.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry  *prometheus.Registry
	collector *Collector

	records     *prometheus.CounterVec
	calls       *prometheus.CounterVec
	callSeconds *prometheus.HistogramVec
	waitSeconds prometheus.Histogram
	stage       *prometheus.GaugeVec

	mu      sync.Mutex
	started map[pipeline.StageName]time.Time
}

// New creates the metrics set. An empty namespace uses DefaultNamespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		// A new registry keeps Go runtime collectors out of the textfile.
		registry:  prometheus.NewRegistry(),
		collector: NewCollector(),
		started:   make(map[pipeline.StageName]time.Time),
	}

	m.records = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRecordsTotal,
		Help:      "Records processed, by stage and outcome.",
	}, []string{"stage", "outcome"})

	m.calls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRemoteCallsTotal,
		Help:      "Remote API calls, by operation and result.",
	}, []string{"operation", "result"})

	m.callSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricRemoteCallSeconds,
		Help:      "Remote API call duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	m.waitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricLimiterWaitSeconds,
		Help:      "Time spent waiting for rate limiter tokens, in seconds.",
		Buckets:   []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	m.stage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      MetricStageSeconds,
		Help:      "Wall time of the last run of each stage, in seconds.",
	}, []string{"stage"})

	m.registry.MustRegister(m.records, m.calls, m.callSeconds, m.waitSeconds, m.stage)
	return m
}

// Registry returns the registry holding every series.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Collector returns the in-memory collector fed alongside the registry.
func (m *Metrics) Collector() *Collector {
	return m.collector
}

// Observe counts one processed record.
func (m *Metrics) Observe(p pipeline.Progress) {
	m.records.WithLabelValues(string(p.Stage), string(p.Outcome)).Inc()
}

// PhaseStarted initializes both outcome series for the stage so that a
// stage with no failures still exports a zero failure count.
func (m *Metrics) PhaseStarted(stage pipeline.StageName, _ int) {
	m.records.WithLabelValues(string(stage), string(pipeline.OutcomeSuccess))
	m.records.WithLabelValues(string(stage), string(pipeline.OutcomeFailure))

	m.mu.Lock()
	m.started[stage] = time.Now()
	m.mu.Unlock()
}

// PhaseFinished sets the stage duration.
func (m *Metrics) PhaseFinished(stage pipeline.StageName, _ int) {
	m.mu.Lock()
	start, ok := m.started[stage]
	delete(m.started, stage)
	m.mu.Unlock()
	if ok {
		m.stage.WithLabelValues(string(stage)).Set(time.Since(start).Seconds())
	}
}

// RecordCall counts one remote call. Its signature matches the client's
// OnCall hook.
func (m *Metrics) RecordCall(operation string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.calls.WithLabelValues(operation, result).Inc()
	m.callSeconds.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.collector.RecordCall(operation, elapsed, err)
}

// RecordWait observes one limiter acquisition. Its signature matches the
// limiter's OnWait hook.
func (m *Metrics) RecordWait(d time.Duration) {
	m.waitSeconds.Observe(d.Seconds())
	m.collector.RecordWait(d)
}

// WriteTextfile writes every series in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

var _ pipeline.PhaseObserver = (*Metrics)(nil)
