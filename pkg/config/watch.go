// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/DataDog/restuned/pkg/classifier"
	"github.com/DataDog/restuned/pkg/log"
)

// ReloadTargets bundles the classifier state a Watcher keeps current.
// Any field left nil is simply not reloaded.
type ReloadTargets struct {
	AppConfig     *classifier.AppConfigStore
	AppConfigPath string

	Filters       *classifier.FilterList
	AllowListPath string
	BlockListPath string
}

// Watcher hot-reloads the classifier's per-app config and filter-list
// files on write, using fsnotify the same way the rest of the
// ecosystem does: watch the containing directory (editors replace
// files via rename-into-place, which a direct file watch would miss)
// and filter events down to the paths we care about.
type Watcher struct {
	fsw     *fsnotify.Watcher
	targets ReloadTargets
}

// NewWatcher creates a Watcher and registers watches on every
// directory containing a non-empty path in targets.
func NewWatcher(targets ReloadTargets) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, targets: targets}

	dirs := map[string]struct{}{}
	for _, p := range []string{targets.AppConfigPath, targets.AllowListPath, targets.BlockListPath} {
		if p == "" {
			continue
		}
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run blocks, applying reloads as matching files change, until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warnf("config watcher: %v", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	switch ev.Name {
	case w.targets.AppConfigPath:
		if w.targets.AppConfig == nil {
			return
		}
		apps, err := LoadAppConfig(w.targets.AppConfigPath)
		if err != nil {
			log.Errorf("config watcher: reload of per-app config failed: %v", err)
			return
		}
		w.targets.AppConfig.Replace(apps)
		log.Infof("config watcher: reloaded per-app config from %s", w.targets.AppConfigPath)
	case w.targets.AllowListPath, w.targets.BlockListPath:
		if w.targets.Filters == nil {
			return
		}
		if err := w.targets.Filters.Reload(w.targets.AllowListPath, w.targets.BlockListPath); err != nil {
			log.Errorf("config watcher: reload of filter lists failed: %v", err)
			return
		}
		log.Infof("config watcher: reloaded filter lists")
	}
}
