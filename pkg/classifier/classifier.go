// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package classifier implements the Contextual Process Classifier
// (spec.md §4.3): a netlink process-event listener that classifies
// newly-exec'd processes into workload classes and synthesizes cgroup
// moves and signal-defined resource bundles against the CCT.
package classifier

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/uuid"

	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/types"
)

// classificationCacheSize bounds the comm->WorkloadClass cache: large
// enough to hold every distinct binary name a device typically sees in
// the foreground rotation, small enough that a pathological stream of
// one-shot process names can't grow it unbounded.
const classificationCacheSize = 512

// Base signal ids the classifier maps each workload class onto before
// expansion (spec.md §4.3 pipeline step 3). SignalTypeOpen is the only
// type the classifier itself ever submits.
const (
	SignalAppOpen     types.SignalId = 1
	SignalBrowserOpen types.SignalId = 2
	SignalGameOpen    types.SignalId = 3
	SignalMediaOpen   types.SignalId = 4

	SignalTypeOpen types.SignalType = 0
)

func baseSignalFor(class types.WorkloadClass) (types.SignalId, bool) {
	switch class {
	case types.ClassApp:
		return SignalAppOpen, true
	case types.ClassBrowser:
		return SignalBrowserOpen, true
	case types.ClassGame:
		return SignalGameOpen, true
	case types.ClassMedia:
		return SignalMediaOpen, true
	default:
		return 0, false
	}
}

// EventSource is the narrow netlinksrc.Source surface the classifier
// needs, kept as an interface so tests can inject a synthetic source.
type EventSource interface {
	Receive() ([]types.ProcEvent, error)
	Close() error
}

// SignalExpander is the SignalRegistry surface the classifier needs.
type SignalExpander interface {
	Expand(id types.SignalId, typ types.SignalType) ([]types.Resource, int64, bool)
}

// RequestSubmitter is the RequestLifecycle surface the classifier needs:
// submission that bypasses re-verification (spec.md §5), plus untuning
// an already-issued handle directly.
type RequestSubmitter interface {
	SubmitPreVerified(req *types.Request) (types.Handle, error)
	Untune(handle types.Handle)
}

// CGroupCatalog is the TargetRegistry surface the classifier needs to
// resolve the well-known "focused" cgroup and per-app thread cgroups.
type CGroupCatalog interface {
	CGroupByName(name string) (types.CGroupConfig, bool)
}

// trackedProcess is the per-pid bookkeeping kept between appOpen and
// appClose/focus-change (spec.md §4.3 pipeline step 8).
type trackedProcess struct {
	comm    string
	handles []types.Handle
}

// ContextualClassifier is the classifier's concurrency unit: one netlink
// reader goroutine and one classifier worker goroutine, communicating
// over a bounded eventQueue, per spec.md §4.3 "Concurrency".
type ContextualClassifier struct {
	source    EventSource
	features  *procFeatureSource
	textClass TextClassifier
	filters   *FilterList
	appConfig *AppConfigStore
	signals   SignalExpander
	submitter RequestSubmitter
	cgroups   CGroupCatalog

	queue *eventQueue

	// classCache memoizes the expensive inference step by comm, since
	// restarting the same binary repeatedly (a browser, a game launcher)
	// would otherwise re-run text classification on a token stream that
	// classifies identically every time.
	classCache *lru.Cache[string, types.WorkloadClass]

	mu            sync.Mutex
	tracked       map[int32]*trackedProcess
	focusedPid    int32
	focusedHandle []types.Handle
}

// Config bundles the dependencies New wires together.
type Config struct {
	ProcRoot        string
	TextClassifier  TextClassifier
	Filters         *FilterList
	AppConfig       *AppConfigStore
	Signals         SignalExpander
	Submitter       RequestSubmitter
	CGroups         CGroupCatalog
	QueueDepth      int
}

// New builds a ContextualClassifier ready for RunReader and RunWorker
// once a Source is opened.
func New(source EventSource, cfg Config) *ContextualClassifier {
	tc := cfg.TextClassifier
	if tc == nil {
		tc = DefaultClassifier{}
	}
	filters := cfg.Filters
	if filters == nil {
		filters = &FilterList{}
	}
	appConfig := cfg.AppConfig
	if appConfig == nil {
		appConfig = NewAppConfigStore()
	}
	cache, err := lru.New[string, types.WorkloadClass](classificationCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// classificationCacheSize never is.
		panic(err)
	}
	return &ContextualClassifier{
		source:     source,
		features:   newProcFeatureSource(cfg.ProcRoot),
		textClass:  tc,
		filters:    filters,
		appConfig:  appConfig,
		signals:    cfg.Signals,
		submitter:  cfg.Submitter,
		cgroups:    cfg.CGroups,
		queue:      newEventQueue(cfg.QueueDepth),
		classCache: cache,
		tracked:    make(map[int32]*trackedProcess),
	}
}

// RunReader drains the netlink source until ctx is cancelled, pushing
// every decoded event onto the internal queue. Intended as one
// errgroup goroutine.
func (c *ContextualClassifier) RunReader(ctx context.Context) error {
	log.Infof("classifier netlink reader starting")
	defer log.Infof("classifier netlink reader stopped")
	defer c.queue.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		events, err := c.source.Receive()
		if err != nil {
			log.Errorf("classifier: netlink recv failed, exiting listener: %v", err)
			return err
		}
		for _, ev := range events {
			c.queue.Push(ev)
		}
	}
}

// RunWorker drains the internal queue until ctx is cancelled or the
// queue is closed, dispatching each event through the pipeline.
// Intended as the second errgroup goroutine.
func (c *ContextualClassifier) RunWorker(ctx context.Context) error {
	log.Infof("classifier worker starting")
	defer log.Infof("classifier worker stopped")

	for {
		ev, ok := c.queue.Pop(ctx)
		if !ok {
			return ctx.Err()
		}
		switch ev.Kind {
		case types.ProcEventAppOpen:
			c.handleAppOpen(ev.Pid, ev.Tgid)
		case types.ProcEventAppClose:
			c.handleAppClose(ev.Pid)
		}
	}
}

// Stop closes the netlink source, breaking RunReader's blocking recv.
func (c *ContextualClassifier) Stop() error {
	return c.source.Close()
}

func (c *ContextualClassifier) handleAppOpen(pid, tgid int32) {
	if !c.features.Exists(pid) {
		return
	}
	if !c.features.HasControllingTerminal(pid) {
		return
	}

	comm := c.features.Comm(pid)
	if comm == "" {
		return
	}
	if !c.filters.Allowed(comm) {
		return
	}

	class, ok := c.classCache.Get(comm)
	if !ok {
		raw := c.features.Collect(pid)
		tokens := cleanTokens(raw)
		var err error
		class, err = c.textClass.Classify(tokens)
		if err != nil {
			log.Warnf("classifier: inference error for pid %d, defaulting to app: %v", pid, err)
			class = types.ClassApp
		}
		c.classCache.Add(comm, class)
	}
	if class == types.ClassIgnore {
		return
	}

	sigID, ok := baseSignalFor(class)
	if !ok {
		return
	}
	sigType := SignalTypeOpen

	if hook, ok := c.appConfig.hookFor(comm); ok {
		newID, newType := hook(pid, uint32(sigID), uint32(sigType))
		sigID, sigType = types.SignalId(newID), types.SignalType(newType)
	}

	c.untunePreviousFocused()

	correlationID := uuid.NewString()
	handles := c.submitCgroupMoves(pid, comm)
	handles = append(handles, c.expandAndSubmit(sigID, sigType, correlationID)...)

	c.mu.Lock()
	c.tracked[pid] = &trackedProcess{comm: comm, handles: handles}
	c.focusedPid = pid
	c.focusedHandle = handles
	c.mu.Unlock()
}

// submitCgroupMoves moves pid into the focused cgroup and any per-app
// configured thread into its own cgroup (spec.md §4.3 pipeline step 5).
// Per-app threads are named by comm, not pid, so each configured thread
// name is resolved to a live pid before it can be moved; a thread that
// resolves to the incoming pid itself is skipped, since that pid is
// already covered by the focused-cgroup move above.
func (c *ContextualClassifier) submitCgroupMoves(pid int32, comm string) []types.Handle {
	var handles []types.Handle

	if cg, ok := c.cgroups.CGroupByName("focused"); ok {
		h, err := c.submitter.SubmitPreVerified(&types.Request{
			Type:     types.ResourceTune,
			Priority: types.SystemHigh,
			Resources: []types.Resource{
				{Code: types.ResCgroupMove, Values: []int32{cg.ID, pid}},
			},
		})
		if err == nil {
			handles = append(handles, h)
		}
	}

	if appCfg, ok := c.appConfig.Get(comm); ok {
		for _, th := range appCfg.Threads {
			targetPid, ok := c.features.FindPidByComm(th.Comm)
			if !ok || targetPid == pid {
				continue
			}
			h, err := c.submitter.SubmitPreVerified(&types.Request{
				Type:     types.ResourceTune,
				Priority: types.SystemHigh,
				Resources: []types.Resource{
					{Code: types.ResCgroupMove, Values: []int32{th.CGroupID, targetPid}},
				},
			})
			if err == nil {
				handles = append(handles, h)
			}
		}
	}
	return handles
}

// expandAndSubmit expands the chosen signal into resources and submits
// the whole bundle as a single SYSTEM_HIGH tune (spec.md §4.3 pipeline
// step 7).
func (c *ContextualClassifier) expandAndSubmit(sigID types.SignalId, sigType types.SignalType, correlationID string) []types.Handle {
	resources, timeoutMs, ok := c.signals.Expand(sigID, sigType)
	if !ok || len(resources) == 0 {
		return nil
	}
	req := &types.Request{
		Type:       types.ResourceTune,
		Priority:   types.SystemHigh,
		Resources:  resources,
		SignalId:   uint32(sigID),
		SignalType: uint32(sigType),
	}
	if timeoutMs > 0 {
		req.DurationMs = timeoutMs
	} else {
		req.DurationMs = types.IndefiniteDuration
	}
	h, err := c.submitter.SubmitPreVerified(req)
	if err != nil {
		log.Errorf("classifier: signal expansion submit failed (correlation=%s): %v", correlationID, err)
		return nil
	}
	log.WithFields(map[string]interface{}{
		"correlation_id": correlationID,
		"signal_id":      sigID,
	}).Infof("classifier submitted signal tune, handle=%d", h)
	return []types.Handle{h}
}

// untunePreviousFocused untunes every handle recorded for the previous
// foreground process (spec.md §4.3 pipeline step 4).
func (c *ContextualClassifier) untunePreviousFocused() {
	c.mu.Lock()
	prev := c.focusedHandle
	c.focusedHandle = nil
	c.mu.Unlock()

	for _, h := range prev {
		c.submitter.Untune(h)
	}
}

func (c *ContextualClassifier) handleAppClose(pid int32) {
	c.mu.Lock()
	tp, ok := c.tracked[pid]
	delete(c.tracked, pid)
	if c.focusedPid == pid {
		c.focusedPid = 0
		c.focusedHandle = nil
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	for _, h := range tp.handles {
		c.submitter.Untune(h)
	}
}
