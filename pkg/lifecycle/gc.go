// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"fmt"
	"os"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/types"
)

const (
	// DefaultGCIntervalSeconds is the default period between sweeps,
	// per spec.md §4.2 "Garbage collection".
	DefaultGCIntervalSeconds = 83
	// DefaultGCBatchSize bounds how many client pids are examined per
	// sweep, so a sweep never blocks the worker goroutine for long.
	DefaultGCBatchSize = 20
)

// ClientLister is the narrow lifecycle dependency the GarbageCollector
// needs: a snapshot of every handle's owning client pid, and a callback
// to reap a handle once its owner is confirmed dead.
type ClientLister interface {
	LiveClientPids() map[types.Handle]int32
	Reap(handle types.Handle)
}

// GarbageCollector periodically checks every active request's owning
// client pid against /proc and reaps requests whose client has died
// without an explicit untune, per spec.md §4.2: "a request whose owning
// client process no longer exists is untuned automatically."
type GarbageCollector struct {
	mu        sync.Mutex
	clients   ClientLister
	batchSize int
	cron      *cron.Cron
	procDir   string // overridable in tests
	statCalls int    // counts processAlive invocations, for tests
}

// NewGarbageCollector builds a GarbageCollector that sweeps clients on
// intervalSeconds, examining at most batchSize client pids per sweep
// and reaping the requests whose owner is dead.
func NewGarbageCollector(clients ClientLister, intervalSeconds, batchSize int) *GarbageCollector {
	if intervalSeconds <= 0 {
		intervalSeconds = DefaultGCIntervalSeconds
	}
	if batchSize <= 0 {
		batchSize = DefaultGCBatchSize
	}
	return &GarbageCollector{
		clients:   clients,
		batchSize: batchSize,
		cron:      cron.New(),
		procDir:   "/proc",
	}
}

// Start schedules periodic sweeps. Per spec.md's default 83s interval
// rather than a round number, to avoid GC sweeps across many restuned
// instances synchronizing against the wall clock.
func (g *GarbageCollector) Start(intervalSeconds int) error {
	if intervalSeconds <= 0 {
		intervalSeconds = DefaultGCIntervalSeconds
	}
	spec := fmt.Sprintf("@every %ds", intervalSeconds)
	_, err := g.cron.AddFunc(spec, g.sweep)
	if err != nil {
		return err
	}
	g.cron.Start()
	return nil
}

// Stop halts future sweeps and waits for any in-flight sweep to finish.
func (g *GarbageCollector) Stop() {
	ctx := g.cron.Stop()
	<-ctx.Done()
}

func (g *GarbageCollector) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	live := g.clients.LiveClientPids()
	examined := 0
	reaped := 0
	for handle, pid := range live {
		if examined >= g.batchSize {
			log.Debugf("gc: batch size %d reached, deferring remaining checks to next sweep", g.batchSize)
			return
		}
		examined++
		if g.processAlive(pid) {
			continue
		}
		log.Infof("gc: reaping handle %d, owning pid %d no longer exists", handle, pid)
		g.clients.Reap(handle)
		reaped++
	}
}

func (g *GarbageCollector) processAlive(pid int32) bool {
	g.statCalls++
	_, err := os.Stat(fmt.Sprintf("%s/%d", g.procDir, pid))
	return err == nil
}
