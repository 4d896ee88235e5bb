// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DataDog/restuned/pkg/classifier"
)

func TestWatcherReloadsAppConfigOnWrite(t *testing.T) {
	dir := t.TempDir()
	appConfigPath := filepath.Join(dir, "apps.yaml")
	require.NoError(t, os.WriteFile(appConfigPath, []byte("apps: {}\n"), 0o644))

	store := classifier.NewAppConfigStore()
	w, err := NewWatcher(ReloadTargets{
		AppConfig:     store,
		AppConfigPath: appConfigPath,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(appConfigPath, []byte("apps:\n  vim:\n    threads: []\n"), 0o644))

	require.Eventually(t, func() bool {
		_, ok := store.Get("vim")
		return ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherReloadsFilterListOnWrite(t *testing.T) {
	dir := t.TempDir()
	allowPath := filepath.Join(dir, "allow.txt")
	require.NoError(t, os.WriteFile(allowPath, []byte("firefox\n"), 0o644))

	fl, err := classifier.LoadFilterList(allowPath, "")
	require.NoError(t, err)

	w, err := NewWatcher(ReloadTargets{
		Filters:       fl,
		AllowListPath: allowPath,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.False(t, fl.Allowed("chrome"))
	require.NoError(t, os.WriteFile(allowPath, []byte("firefox\nchrome\n"), 0o644))

	require.Eventually(t, func() bool {
		return fl.Allowed("chrome")
	}, 2*time.Second, 20*time.Millisecond)
}
