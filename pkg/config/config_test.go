// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Queue.CapacityPerPriority)
	assert.Equal(t, 83, cfg.GC.IntervalSeconds)
	assert.Equal(t, 20, cfg.GC.BatchSize)
	assert.True(t, cfg.Classifier.Enabled)
	assert.Equal(t, "/proc", cfg.Classifier.ProcRoot)
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restuned.yaml")
	contents := `
queue:
  capacity_per_priority: 128
gc:
  interval_seconds: 10
classifier:
  enabled: false
  model_path: /etc/restuned/model.bin
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Queue.CapacityPerPriority)
	assert.Equal(t, 10, cfg.GC.IntervalSeconds)
	assert.False(t, cfg.Classifier.Enabled)
	assert.Equal(t, "/etc/restuned/model.bin", cfg.Classifier.ModelPath)
	// untouched defaults survive a partial override
	assert.Equal(t, 20, cfg.GC.BatchSize)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restuned.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue: [this is not, a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
