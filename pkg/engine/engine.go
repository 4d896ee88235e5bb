// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package engine wires restuned's subsystems into one supervised
// process: the Request Lifecycle Engine's single core worker, its
// garbage collector, and the Contextual Process Classifier's
// reader/worker pair, all started and torn down together the way the
// teacher's component lifecycle hooks start and stop a bundle.
package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/DataDog/restuned/pkg/cct"
	"github.com/DataDog/restuned/pkg/classifier"
	"github.com/DataDog/restuned/pkg/config"
	"github.com/DataDog/restuned/pkg/kernelapplier"
	"github.com/DataDog/restuned/pkg/lifecycle"
	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/persistence"
	"github.com/DataDog/restuned/pkg/registry"
	"github.com/DataDog/restuned/pkg/telemetry"
)

// Engine owns every long-running goroutine restuned runs, plus the
// registries and tables they share.
type Engine struct {
	cfg *config.Config

	Resources *registry.ResourceRegistry
	Targets   *registry.TargetRegistry
	Signals   *registry.SignalRegistry
	Table     *cct.Table
	Lifecycle *lifecycle.RequestLifecycle
	Applier   *kernelapplier.Linux
	Persist   *persistence.Cache
	Metrics   *telemetry.Metrics

	classifier *classifier.ContextualClassifier
	watcher    *config.Watcher

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New builds an Engine from cfg. Resource and signal catalogs are
// expected to already be registered onto resources/signals by the
// caller before New is invoked — Engine only wires the runtime, it
// does not own catalog authoring.
func New(cfg *config.Config, resources *registry.ResourceRegistry, targets *registry.TargetRegistry, signals *registry.SignalRegistry) *Engine {
	table := cct.New(resources, targets)
	verifier := lifecycle.NewVerifier(resources, targets)
	rl := lifecycle.NewRequestLifecycle(table, verifier, cfg.Queue.CapacityPerPriority)

	applier := kernelapplier.NewLinux()
	targets.SetCGroupRoot(cfg.CGroupRoot)

	return &Engine{
		cfg:       cfg,
		Resources: resources,
		Targets:   targets,
		Signals:   signals,
		Table:     table,
		Lifecycle: rl,
		Applier:   applier,
		Persist:   persistence.NewCache(),
		Metrics:   telemetry.NewMetrics(),
	}
}

// EnableClassifier wires the Contextual Process Classifier into the
// engine using src as its proc-event source. Called only when
// cfg.Classifier.Enabled is true, since netlinksrc.Open requires
// CAP_NET_ADMIN and a device may legitimately run without it.
func (e *Engine) EnableClassifier(src classifier.EventSource, textClass classifier.TextClassifier, filters *classifier.FilterList, apps *classifier.AppConfigStore) {
	e.classifier = classifier.New(src, classifier.Config{
		ProcRoot:       e.cfg.Classifier.ProcRoot,
		TextClassifier: textClass,
		Filters:        filters,
		AppConfig:      apps,
		Signals:        e.Signals,
		Submitter:      e.Lifecycle,
		CGroups:        e.Targets,
		QueueDepth:     e.cfg.Classifier.QueueDepth,
	})
}

// EnableConfigWatch wires fsnotify hot-reload of the per-app config and
// filter-list files.
func (e *Engine) EnableConfigWatch(targets config.ReloadTargets) error {
	w, err := config.NewWatcher(targets)
	if err != nil {
		return err
	}
	e.watcher = w
	return nil
}

// Start replays persisted defaults, starts the GC's own cron schedule,
// then runs the worker and (if enabled) the classifier and the config
// watcher under a shared errgroup: the first failure cancels every other
// errgroup goroutine, and
// Stop/Wait observe the same coordinated shutdown (spec.md §5
// "terminate()").
func (e *Engine) Start(ctx context.Context) error {
	if err := persistence.LoadAndReplay(e.cfg.Persistence.FilePath, e.Applier); err != nil {
		log.Errorf("engine: persistence replay failed: %v", err)
	}
	if err := e.Lifecycle.StartGC(e.cfg.GC.IntervalSeconds); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	e.group = g

	worker := lifecycle.NewWorker(e.Lifecycle)
	g.Go(func() error {
		log.Infof("engine: lifecycle worker starting")
		defer log.Infof("engine: lifecycle worker stopped")
		return worker.Run(gctx)
	})

	if e.classifier != nil {
		g.Go(func() error { return e.classifier.RunReader(gctx) })
		g.Go(func() error { return e.classifier.RunWorker(gctx) })
	}

	if e.watcher != nil {
		g.Go(func() error { return e.watcher.Run(gctx) })
	}

	return nil
}

// Stop cancels every supervised goroutine, waits for them to exit, tears
// down the CCT's remaining handles and persists defaults — spec.md §6's
// normal-shutdown sequence.
func (e *Engine) Stop() error {
	e.Lifecycle.StopGC()
	if e.classifier != nil {
		if err := e.classifier.Stop(); err != nil {
			log.Warnf("engine: classifier stop: %v", err)
		}
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.Lifecycle.CloseQueue()

	var waitErr error
	if e.group != nil {
		if err := e.group.Wait(); err != nil && err != context.Canceled {
			waitErr = err
		}
	}
	e.Lifecycle.TerminateAll()
	if err := e.Persist.Shutdown(e.cfg.Persistence.FilePath, e.Applier); err != nil {
		log.Errorf("engine: persistence shutdown failed: %v", err)
	}
	return waitErr
}
