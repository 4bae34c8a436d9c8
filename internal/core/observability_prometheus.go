package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"liderforte/pkg/domain"
)

// PrometheusRecorder exports operation counts and latencies, plus the
// readiness distribution of the last batch evaluation.
type PrometheusRecorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	readiness  *prometheus.GaugeVec
	failed     *prometheus.GaugeVec
}

// NewPrometheusRecorder registers its collectors on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liderforte",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "liderforte",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Duration of service operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"operation"}),
		readiness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "liderforte",
			Subsystem: "readiness",
			Name:      "cells",
			Help:      "Cells per readiness status in the last batch evaluation.",
		}, []string{"organization", "status"}),
		failed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "liderforte",
			Subsystem: "readiness",
			Name:      "failed_cells",
			Help:      "Cells that failed the last batch evaluation.",
		}, []string{"organization"}),
	}
	r.registry.MustRegister(r.operations, r.durations, r.readiness, r.failed)
	return r
}

// Registry exposes the collectors for scraping or textfile export.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, outcome Outcome, duration time.Duration) {
	r.operations.WithLabelValues(operation, string(outcome)).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordReadiness publishes the status distribution of a batch report.
func (r *PrometheusRecorder) RecordReadiness(report BatchReport) {
	counts := map[domain.ReadinessStatus]float64{
		domain.ReadinessNotReady:  0,
		domain.ReadinessPreparing: 0,
		domain.ReadinessReady:     0,
		domain.ReadinessOptimal:   0,
		domain.ReadinessOverdue:   0,
	}
	for _, o := range report.Outcomes {
		if o.Snapshot != nil {
			counts[o.Snapshot.Status]++
		}
	}
	for status, n := range counts {
		r.readiness.WithLabelValues(report.OrganizationID, string(status)).Set(n)
	}
	r.failed.WithLabelValues(report.OrganizationID).Set(float64(report.Failed))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
