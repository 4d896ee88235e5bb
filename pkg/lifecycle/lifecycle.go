// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"context"
	"sync"
	"time"

	restunederrors "github.com/DataDog/restuned/pkg/errors"
	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/types"
)

// CCT is the narrow Conflict-Coordination Table surface the lifecycle
// engine drives. Kept as an interface so RequestLifecycle can be unit
// tested against a fake table.
type CCT interface {
	InsertResource(handle types.Handle, priority types.Priority, res types.Resource) error
	RemoveResource(handle types.Handle)
}

// activeRequest is the bookkeeping kept per admitted, not-yet-completed
// request.
type activeRequest struct {
	req      *types.Request
	clientPid int32
}

// RequestLifecycle is the Request Lifecycle Engine (spec.md §4.2): it
// owns handle issuance, admission validation, the intake queue, expiry
// timers and client death detection, and is the only component that
// mutates the CCT.
type RequestLifecycle struct {
	mu       sync.Mutex
	handles  *HandleGenerator
	queue    *RequestQueue
	timers   *TimerWheel
	verifier *Verifier
	table    CCT
	gc       *GarbageCollector

	active map[types.Handle]*activeRequest
}

// NewRequestLifecycle wires a RequestLifecycle around table, using
// verifier for admission checks and queueCapacityPerPriority to bound
// the intake queue.
func NewRequestLifecycle(table CCT, verifier *Verifier, queueCapacityPerPriority int) *RequestLifecycle {
	l := &RequestLifecycle{
		handles:  NewHandleGenerator(),
		queue:    NewRequestQueue(queueCapacityPerPriority),
		verifier: verifier,
		table:    table,
		active:   make(map[types.Handle]*activeRequest),
	}
	l.timers = NewTimerWheel(l.expire)
	l.gc = NewGarbageCollector(l, DefaultGCIntervalSeconds, DefaultGCBatchSize)
	return l
}

// StartGC begins periodic dead-client sweeps.
func (l *RequestLifecycle) StartGC(intervalSeconds int) error {
	return l.gc.Start(intervalSeconds)
}

// StopGC halts periodic sweeps.
func (l *RequestLifecycle) StopGC() {
	l.gc.Stop()
}

// Submit validates req and, on success, issues it a handle and enqueues
// it for the worker to drive into the CCT. Returns the issued handle
// and any validation error (handle is InvalidHandle on rejection).
func (l *RequestLifecycle) Submit(req *types.Request) (types.Handle, error) {
	if req.Type == types.ResourceTune || req.Type == types.SignalTune {
		if err := l.verifier.Verify(req); err != nil {
			return types.InvalidHandle, err
		}
	}
	return l.SubmitPreVerified(req)
}

// SubmitPreVerified issues req a handle and enqueues it without running
// the Verifier. Used by callers that construct a request from trusted,
// already-validated inputs, such as the requests the classifier builds
// (spec.md §5: "the worker
// submits requests ... bypassing re-verification").
func (l *RequestLifecycle) SubmitPreVerified(req *types.Request) (types.Handle, error) {
	handle := l.handles.Issue()
	if handle == types.InvalidHandle {
		return types.InvalidHandle, restunederrors.New(restunederrors.KindAlloc, "lifecycle.Submit", "handle space exhausted")
	}
	req.Handle = handle

	l.mu.Lock()
	l.active[handle] = &activeRequest{req: req, clientPid: req.ClientPid}
	l.mu.Unlock()

	l.queue.Enqueue(req)
	return handle, nil
}

// Dequeue blocks for the worker goroutine until the next request is
// ready to drive into the CCT, or ctx is cancelled.
func (l *RequestLifecycle) Dequeue(ctx context.Context) (*types.Request, bool) {
	return l.queue.Dequeue(ctx)
}

// Apply drives an admitted, dequeued request into the CCT: a tune
// inserts every resource write and, if finite-duration, arms its timer;
// an untune removes every node the handle owns and cancels its timer.
func (l *RequestLifecycle) Apply(req *types.Request) {
	switch req.Type {
	case types.ResourceTune, types.SignalTune:
		for _, res := range req.Resources {
			if err := l.table.InsertResource(req.Handle, req.Priority, res); err != nil {
				log.Errorf("lifecycle: insert failed for handle %d resource %s: %v", req.Handle, res.Code, err)
			}
		}
		if req.HasFiniteDuration() {
			l.timers.Arm(req.Handle, time.Duration(req.DurationMs)*time.Millisecond)
		}
	case types.ResourceUntune, types.SignalUntune:
		l.complete(req.Handle)
	}
}

// complete tears the handle out of the CCT, cancels its timer and
// forgets it — the common tail of an explicit untune, a timer firing,
// or a GC reap.
func (l *RequestLifecycle) complete(handle types.Handle) {
	l.timers.Cancel(handle)
	l.table.RemoveResource(handle)
	l.mu.Lock()
	delete(l.active, handle)
	l.mu.Unlock()
}

// expire is the TimerWheel callback for a tune's duration elapsing
// naturally. Per spec.md §3, this is re-injected as a HighTransfer
// priority untune so it is serviced ahead of ordinary client traffic.
func (l *RequestLifecycle) expire(handle types.Handle) {
	l.mu.Lock()
	ar, ok := l.active[handle]
	l.mu.Unlock()
	if !ok {
		return
	}
	l.queue.Enqueue(&types.Request{
		Handle:   handle,
		Type:     types.ResourceUntune,
		Priority: types.HighTransfer,
	})
	_ = ar
}

// UpdateDuration re-arms handle's timer for newDurationMs, rejecting
// any attempt to shorten a tune below its original grant (spec.md
// §4.2).
func (l *RequestLifecycle) UpdateDuration(handle types.Handle, newDurationMs int64) error {
	if newDurationMs == types.IndefiniteDuration {
		l.timers.Cancel(handle)
		return nil
	}
	return l.timers.Extend(handle, time.Duration(newDurationMs)*time.Millisecond)
}

// LiveClientPids implements ClientLister for the GarbageCollector.
func (l *RequestLifecycle) LiveClientPids() map[types.Handle]int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[types.Handle]int32, len(l.active))
	for h, ar := range l.active {
		out[h] = ar.clientPid
	}
	return out
}

// Untune enqueues an untune targeting an already-issued handle at
// HighTransfer priority, preempting ordinary client traffic. Used by
// internal callers (classifier focus-change, appClose) that already
// hold the handle and must not have a fresh one issued for it.
func (l *RequestLifecycle) Untune(handle types.Handle) {
	l.queue.Enqueue(&types.Request{
		Handle:   handle,
		Type:     types.ResourceUntune,
		Priority: types.HighTransfer,
	})
}

// Reap implements ClientLister: synthesizes a ServerCleanup-priority
// untune for handle, since the owning client can no longer be asked.
func (l *RequestLifecycle) Reap(handle types.Handle) {
	l.queue.Enqueue(&types.Request{
		Handle:   handle,
		Type:     types.ResourceUntune,
		Priority: types.ServerCleanup,
	})
}

// TerminateAll removes every still-active handle from the CCT directly
// (cancelling its timer and forgetting it) without queueing an untune,
// for shutdown (spec.md §6).
func (l *RequestLifecycle) TerminateAll() {
	l.mu.Lock()
	handles := make([]types.Handle, 0, len(l.active))
	for h := range l.active {
		handles = append(handles, h)
	}
	l.mu.Unlock()

	for _, h := range handles {
		l.complete(h)
	}
}

// QueueDepth reports pending queue entries, for telemetry.
func (l *RequestLifecycle) QueueDepth() int {
	return l.queue.Depth()
}

// CloseQueue unblocks the worker goroutine's Dequeue call during
// shutdown.
func (l *RequestLifecycle) CloseQueue() {
	l.queue.Close()
}
