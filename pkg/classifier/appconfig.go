// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package classifier

import "sync"

// AppThread names one thread-comm -> cgroup mapping inside an app's
// config entry (spec.md §6 "Per-app config").
type AppThread struct {
	Comm     string `yaml:"comm"`
	CGroupID int32  `yaml:"cgroupId"`
}

// AppConfig is one per-app config entry: the set of named threads to
// additionally move into their own cgroups, and the signal codes to
// submit alongside the classifier's base signal.
type AppConfig struct {
	Threads     []AppThread `yaml:"threads"`
	SignalCodes []uint32    `yaml:"signalCodes"`
}

// PostProcessHook lets an extension rewrite the (sigId, sigType) pair
// the classifier is about to expand for a given comm, per spec.md §4.3
// pipeline step 6.
type PostProcessHook func(pid int32, sigID, sigType uint32) (newSigID, newSigType uint32)

// AppConfigStore holds the appName -> AppConfig mapping plus registered
// post-process hooks, reloadable in place for the fsnotify hot-reload
// path.
type AppConfigStore struct {
	mu    sync.RWMutex
	apps  map[string]AppConfig
	hooks map[string]PostProcessHook
}

func NewAppConfigStore() *AppConfigStore {
	return &AppConfigStore{
		apps:  make(map[string]AppConfig),
		hooks: make(map[string]PostProcessHook),
	}
}

// Replace atomically swaps in a freshly-loaded config map, used by both
// initial load and fsnotify-triggered reload.
func (s *AppConfigStore) Replace(apps map[string]AppConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = apps
}

func (s *AppConfigStore) Get(appName string) (AppConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.apps[appName]
	return cfg, ok
}

// RegisterHook installs a post-process hook for comm.
func (s *AppConfigStore) RegisterHook(comm string, hook PostProcessHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[comm] = hook
}

func (s *AppConfigStore) hookFor(comm string) (PostProcessHook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hooks[comm]
	return h, ok
}
