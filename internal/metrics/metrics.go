// Package metrics exposes Prometheus counters for extraction and anonymization.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperjump/kakusu/internal/models"
)

const namespace = "kakusu"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry           *prometheus.Registry
	chunksProcessed    prometheus.Counter
	chunkFailures      prometheus.Counter
	checkpointWrites   prometheus.Counter
	checkpointFailures prometheus.Counter
	entitiesFound      *prometheus.CounterVec
	recognizeSeconds   prometheus.Histogram
	artifacts          prometheus.Counter
	reversals          prometheus.Counter
}

// New registers every collector on a fresh registry, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		chunksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "chunks_processed_total",
			Help: "Chunks passed through the recognizer, failed ones included.",
		}),
		chunkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "chunk_failures_total",
			Help: "Chunks skipped because recognition failed.",
		}),
		checkpointWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkpoint_writes_total",
			Help: "Successful checkpoint writes.",
		}),
		checkpointFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkpoint_failures_total",
			Help: "Checkpoint reads or writes that failed.",
		}),
		entitiesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "entities_found_total",
			Help: "Distinct entities added, by category.",
		}, []string{"category"}),
		recognizeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "recognize_duration_seconds",
			Help:    "Time spent recognizing one chunk.",
			Buckets: prometheus.DefBuckets,
		}),
		artifacts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "artifacts_written_total",
			Help: "Anonymization artifacts produced.",
		}),
		reversals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reversals_total",
			Help: "Reverse operations performed.",
		}),
	}
	reg.MustRegister(
		m.chunksProcessed, m.chunkFailures, m.checkpointWrites, m.checkpointFailures,
		m.entitiesFound, m.recognizeSeconds, m.artifacts, m.reversals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ChunkProcessed(d time.Duration) {
	if m == nil {
		return
	}
	m.chunksProcessed.Inc()
	m.recognizeSeconds.Observe(d.Seconds())
}

func (m *Metrics) ChunkFailed() {
	if m == nil {
		return
	}
	m.chunkFailures.Inc()
}

// Checkpoint records a checkpoint read or write outcome.
func (m *Metrics) Checkpoint(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.checkpointFailures.Inc()
		return
	}
	m.checkpointWrites.Inc()
}

func (m *Metrics) EntityAdded(cat models.Category) {
	if m == nil {
		return
	}
	m.entitiesFound.WithLabelValues(string(cat)).Inc()
}

func (m *Metrics) ArtifactWritten() {
	if m == nil {
		return
	}
	m.artifacts.Inc()
}

func (m *Metrics) Reversed() {
	if m == nil {
		return
	}
	m.reversals.Inc()
}
