// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "sycharness"

// DefaultDurationBuckets covers tool invocations from milliseconds up to the
// slowest simulator timeout.
var DefaultDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32}

// Metrics collects run-set counters on a private registry.
//
// Description:
//
//	Metrics satisfies both the runner's per-case sink and the pipeline's
//	stage observer. The registry is private so several harness runs in one
//	process (tests) do not collide, and so the whole set can be written out
//	with WriteTextfile.
//
// Thread Safety: Safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	casesTotal         *prometheus.CounterVec
	caseDuration       *prometheus.HistogramVec
	stageDuration      *prometheus.HistogramVec
	quarantineCaptures prometheus.Counter
	runsTotal          *prometheus.CounterVec
	lastRunCases       prometheus.Gauge
	lastRunTimestamp   prometheus.Gauge
}

// NewMetrics creates and registers the harness metrics.
//
// Inputs:
//   - namespace: Metric name prefix ("" = DefaultNamespace).
func NewMetrics(namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.casesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_total",
			Help:      "Cases finished, by status (passed, fault, failed, skipped)",
		},
		[]string{"status"},
	)
	m.caseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "case_duration_seconds",
			Help:      "Wall time of a case pipeline in seconds",
			Buckets:   DefaultDurationBuckets,
		},
		[]string{"status"},
	)
	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a pipeline stage in seconds",
			Buckets:   DefaultDurationBuckets,
		},
		[]string{"stage", "result"},
	)
	m.quarantineCaptures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quarantine_captures_total",
		Help:      "Failing slots captured into the quarantine",
	})
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Run-sets finished, by result (passed, failed)",
		},
		[]string{"result"},
	)
	m.lastRunCases = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_cases",
		Help:      "Number of cases in the most recent run-set",
	})
	m.lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the most recent run-set finished",
	})

	var errs []error
	for _, c := range []prometheus.Collector{
		m.casesTotal, m.caseDuration, m.stageDuration, m.quarantineCaptures,
		m.runsTotal, m.lastRunCases, m.lastRunTimestamp,
	} {
		if err := m.registry.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return m, nil
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CaseFinished records one case.
func (m *Metrics) CaseFinished(status string, d time.Duration) {
	m.casesTotal.WithLabelValues(status).Inc()
	if d > 0 {
		m.caseDuration.WithLabelValues(status).Observe(d.Seconds())
	}
}

// QuarantineCaptured records a quarantine capture.
func (m *Metrics) QuarantineCaptured() {
	m.quarantineCaptures.Inc()
}

// ObserveStage records one stage timing.
func (m *Metrics) ObserveStage(stage string, d time.Duration, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.stageDuration.WithLabelValues(stage, result).Observe(d.Seconds())
}

// RunFinished records a drained run-set.
func (m *Metrics) RunFinished(cases int, failed bool, at time.Time) {
	result := "passed"
	if failed {
		result = "failed"
	}
	m.runsTotal.WithLabelValues(result).Inc()
	m.lastRunCases.Set(float64(cases))
	m.lastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
