// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package telemetry exposes restuned's runtime counters and gauges via
// prometheus/client_golang, with an optional dogstatsd mirror for
// environments that scrape via the Datadog agent instead of Prometheus.
// Non-goals in spec.md never name telemetry explicitly, so this stays
// small: arbitration churn, queue depth, classifier throughput, GC
// activity — nothing that requires its own storage or query surface.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the full set of restuned's exported series.
type Metrics struct {
	registry *prometheus.Registry

	ArbitrationHeadChanges prometheus.Counter
	QueueDepth             *prometheus.GaugeVec
	RequestsSubmitted      *prometheus.CounterVec
	RequestsRejected       prometheus.Counter
	ClassifierInferences   *prometheus.CounterVec
	ClassifierDropped      prometheus.Counter
	GCSweeps               prometheus.Counter
	GCReaped               prometheus.Counter
}

// NewMetrics registers every series against a private registry, so
// tests can construct as many Metrics instances as they like without
// colliding on prometheus's global default registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ArbitrationHeadChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "restuned",
			Subsystem: "cct",
			Name:      "arbitration_head_changes_total",
			Help:      "Number of times a resource's currently-applied value changed.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "restuned",
			Subsystem: "lifecycle",
			Name:      "queue_depth",
			Help:      "Current depth of the request intake queue, by priority bucket.",
		}, []string{"priority"}),
		RequestsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restuned",
			Subsystem: "lifecycle",
			Name:      "requests_submitted_total",
			Help:      "Requests accepted into the intake queue, by request type.",
		}, []string{"type"}),
		RequestsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "restuned",
			Subsystem: "lifecycle",
			Name:      "requests_rejected_total",
			Help:      "Requests rejected by the Verifier before ever reaching the queue.",
		}),
		ClassifierInferences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restuned",
			Subsystem: "classifier",
			Name:      "inferences_total",
			Help:      "Process-open events classified, by resulting workload class.",
		}, []string{"class"}),
		ClassifierDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "restuned",
			Subsystem: "classifier",
			Name:      "events_dropped_total",
			Help:      "Proc-events dropped from the classifier's bounded event queue on overflow.",
		}),
		GCSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "restuned",
			Subsystem: "gc",
			Name:      "sweeps_total",
			Help:      "Garbage-collector sweep passes completed.",
		}),
		GCReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "restuned",
			Subsystem: "gc",
			Name:      "reaped_handles_total",
			Help:      "Handles reaped because their owning client process no longer exists.",
		}),
	}

	reg.MustRegister(
		m.ArbitrationHeadChanges,
		m.QueueDepth,
		m.RequestsSubmitted,
		m.RequestsRejected,
		m.ClassifierInferences,
		m.ClassifierDropped,
		m.GCSweeps,
		m.GCReaped,
	)
	return m
}

// Registry returns the private prometheus.Registry backing m, for an
// HTTP /metrics handler to serve.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Gatherer satisfies the narrow interface an HTTP exposition handler
// needs without pulling promhttp into this package's import surface.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
