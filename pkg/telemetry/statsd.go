// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package telemetry

import (
	"github.com/DataDog/datadog-go/v5/statsd"
)

// StatsdSink mirrors a subset of Metrics onto a dogstatsd client, for
// devices that route telemetry through the Datadog agent instead of
// scraping Prometheus directly. Optional: a nil *StatsdSink receiver is
// valid and every method becomes a no-op, so callers don't need to
// branch on whether statsd was configured.
type StatsdSink struct {
	client *statsd.Client
}

// NewStatsdSink dials addr (e.g. "unix:///var/run/datadog/dsd.socket" or
// "127.0.0.1:8125").
func NewStatsdSink(addr string) (*StatsdSink, error) {
	client, err := statsd.New(addr, statsd.WithNamespace("restuned."))
	if err != nil {
		return nil, err
	}
	return &StatsdSink{client: client}, nil
}

func (s *StatsdSink) IncrRequestsSubmitted(reqType string) {
	if s == nil {
		return
	}
	_ = s.client.Incr("lifecycle.requests_submitted", []string{"type:" + reqType}, 1)
}

func (s *StatsdSink) IncrRequestsRejected() {
	if s == nil {
		return
	}
	_ = s.client.Incr("lifecycle.requests_rejected", nil, 1)
}

func (s *StatsdSink) GaugeQueueDepth(priority string, depth float64) {
	if s == nil {
		return
	}
	_ = s.client.Gauge("lifecycle.queue_depth", depth, []string{"priority:" + priority}, 1)
}

func (s *StatsdSink) IncrClassifierInference(class string) {
	if s == nil {
		return
	}
	_ = s.client.Incr("classifier.inferences", []string{"class:" + class}, 1)
}

func (s *StatsdSink) IncrGCSweep(reaped int64) {
	if s == nil {
		return
	}
	_ = s.client.Incr("gc.sweeps", nil, 1)
	if reaped > 0 {
		_ = s.client.Count("gc.reaped_handles", reaped, nil, 1)
	}
}

// Close flushes and releases the underlying client.
func (s *StatsdSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
