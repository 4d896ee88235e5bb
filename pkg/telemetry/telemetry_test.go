// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package telemetry

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistersAllSeries(t *testing.T) {
	m := NewMetrics()

	m.ArbitrationHeadChanges.Inc()
	m.QueueDepth.WithLabelValues("systemHigh").Set(3)
	m.RequestsSubmitted.WithLabelValues("tune").Inc()
	m.GCSweeps.Inc()

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	names := map[string]*dto.MetricFamily{}
	for _, f := range families {
		names[f.GetName()] = f
	}

	require.Contains(t, names, "restuned_cct_arbitration_head_changes_total")
	assert.Equal(t, float64(1), names["restuned_cct_arbitration_head_changes_total"].Metric[0].Counter.GetValue())

	require.Contains(t, names, "restuned_lifecycle_queue_depth")
	require.Contains(t, names, "restuned_gc_sweeps_total")
}

func TestNilStatsdSinkIsNoOp(t *testing.T) {
	var s *StatsdSink
	assert.NotPanics(t, func() {
		s.IncrRequestsSubmitted("tune")
		s.IncrRequestsRejected()
		s.GaugeQueueDepth("systemHigh", 4)
		s.IncrClassifierInference("app")
		s.IncrGCSweep(2)
		_ = s.Close()
	})
}
