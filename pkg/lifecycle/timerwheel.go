// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"sync"
	"time"

	restunederrors "github.com/DataDog/restuned/pkg/errors"
	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/types"
)

// timerEntry tracks one armed timer: the wall-clock deadline it was
// armed for (for the "cannot shorten below original" rule, spec.md
// §4.2) and the underlying time.Timer so it can be stopped on cancel.
type timerEntry struct {
	handle   types.Handle
	deadline time.Time
	armedFor time.Duration
	timer    *time.Timer
}

// TimerWheel arms one expiry timer per finite-duration request handle
// and invokes a caller-supplied callback when it fires. Built on
// per-request time.Timer rather than a literal wheel of buckets: at
// restuned's expected concurrent-request volumes a single Timer per
// handle comfortably meets the spec's ±50ms precision target, and it
// sidesteps the bucket-resolution tradeoff a classic wheel forces.
type TimerWheel struct {
	mu      sync.Mutex
	entries map[types.Handle]*timerEntry
	onFire  func(types.Handle)
}

// NewTimerWheel builds a TimerWheel that invokes onFire (from its own
// goroutine, once per firing) when a handle's timer expires naturally.
func NewTimerWheel(onFire func(types.Handle)) *TimerWheel {
	return &TimerWheel{
		entries: make(map[types.Handle]*timerEntry),
		onFire:  onFire,
	}
}

// Arm starts a new expiry timer for handle. Replaces any existing timer
// for the same handle.
func (w *TimerWheel) Arm(handle types.Handle, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked(handle)

	e := &timerEntry{handle: handle, deadline: time.Now().Add(d), armedFor: d}
	e.timer = time.AfterFunc(d, func() { w.fire(handle) })
	w.entries[handle] = e
}

func (w *TimerWheel) fire(handle types.Handle) {
	w.mu.Lock()
	_, ok := w.entries[handle]
	delete(w.entries, handle)
	w.mu.Unlock()
	if !ok {
		return
	}
	log.Debugf("timer fired for handle %d", handle)
	w.onFire(handle)
}

// Cancel stops and forgets handle's timer, if any.
func (w *TimerWheel) Cancel(handle types.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked(handle)
}

func (w *TimerWheel) cancelLocked(handle types.Handle) {
	if e, ok := w.entries[handle]; ok {
		e.timer.Stop()
		delete(w.entries, handle)
	}
}

// Extend re-arms handle's timer for newDuration, measured from the
// original arm time rather than from now. Per spec.md §4.2, a
// duration update may only extend a tune's life, never shorten it
// below what was originally granted; callers should have already
// rejected a shorter newDuration against the original grant, but Extend
// enforces it again as a last line of defense.
func (w *TimerWheel) Extend(handle types.Handle, newDuration time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[handle]
	if !ok {
		return restunederrors.New(restunederrors.KindNotFound, "timerwheel.Extend", "no armed timer for handle")
	}
	if newDuration < e.armedFor {
		return restunederrors.New(restunederrors.KindBadArg, "timerwheel.Extend", "cannot shorten a tune's duration below its original grant")
	}

	e.timer.Stop()
	remaining := time.Until(e.deadline.Add(newDuration - e.armedFor))
	if remaining < 0 {
		remaining = 0
	}
	e.armedFor = newDuration
	e.deadline = time.Now().Add(remaining)
	e.timer = time.AfterFunc(remaining, func() { w.fire(handle) })
	return nil
}

// Len reports the number of currently armed timers, for telemetry.
func (w *TimerWheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
