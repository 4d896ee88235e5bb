// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DataDog/restuned/pkg/classifier"
	"github.com/DataDog/restuned/pkg/config"
	"github.com/DataDog/restuned/pkg/registry"
	"github.com/DataDog/restuned/pkg/types"
)

type fakeEventSource struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeEventSource) Receive() ([]types.ProcEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, context.Canceled
	}
	time.Sleep(2 * time.Millisecond)
	return nil, nil
}

func (f *fakeEventSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Persistence.FilePath = filepath.Join(t.TempDir(), "defaults.csv")
	cfg.GC.IntervalSeconds = 3600
	return cfg
}

func TestEngineStartStopWithoutClassifier(t *testing.T) {
	cfg := testConfig(t)
	resources := registry.NewResourceRegistry()
	targets := registry.NewTargetRegistry()
	signals := registry.NewSignalRegistry()

	e := New(cfg, resources, targets, signals)
	require.NoError(t, e.Start(context.Background()))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, e.Stop())
}

func TestEngineStartStopWithClassifier(t *testing.T) {
	cfg := testConfig(t)
	resources := registry.NewResourceRegistry()
	targets := registry.NewTargetRegistry()
	signals := registry.NewSignalRegistry()

	e := New(cfg, resources, targets, signals)
	src := &fakeEventSource{}
	e.EnableClassifier(src, classifier.DefaultClassifier{}, nil, nil)

	require.NoError(t, e.Start(context.Background()))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, e.Stop())
}
