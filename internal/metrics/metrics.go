// Package metrics holds the Prometheus collectors of batch commands. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Candidate outcomes.
const (
	OutcomeIngested = "ingested"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Metrics holds all Prometheus metrics for the ingest pipeline.
type Metrics struct {
	registry *prometheus.Registry

	Candidates    *prometheus.CounterVec
	GateFallbacks *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	STTMinutes    prometheus.Counter
	LastRun       prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intelvault",
			Name:      "candidates_total",
			Help:      "Candidates seen by ingest, by outcome.",
		}, []string{"outcome"}),
		GateFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intelvault",
			Name:      "gate_fallback_total",
			Help:      "Gate evaluations that fell back to heuristics, by gate and reason.",
		}, []string{"gate", "reason"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intelvault",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per candidate stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
		STTMinutes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intelvault",
			Name:      "stt_minutes_spent_total",
			Help:      "Paid transcription minutes spent.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "intelvault",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed batch command.",
		}),
	}
	m.registry.MustRegister(m.Candidates, m.GateFallbacks, m.StageDuration, m.STTMinutes, m.LastRun)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Candidate counts one candidate outcome.
func (m *Metrics) Candidate(outcome string) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues(outcome).Inc()
}

// Fallback counts a gate fallback; an empty reason is not counted.
func (m *Metrics) Fallback(gate, reason string) {
	if m == nil || reason == "" {
		return
	}
	m.GateFallbacks.WithLabelValues(gate, reason).Inc()
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// SpendSTT adds paid transcription minutes.
func (m *Metrics) SpendSTT(minutes int) {
	if m == nil || minutes <= 0 {
		return
	}
	m.STTMinutes.Add(float64(minutes))
}

// WriteTextfile stamps the run time and writes the registry in the
// node-exporter textfile format. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string, now time.Time) error {
	if m == nil || path == "" {
		return nil
	}
	m.LastRun.Set(float64(now.Unix()))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
