// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"context"

	"github.com/DataDog/restuned/pkg/log"
)

// Worker is the single goroutine that owns the Conflict-Coordination
// Table: it drains the RequestLifecycle's queue and is the only caller
// of CCT.InsertResource/RemoveResource while it runs (the shutdown
// teardown in RequestLifecycle.TerminateAll runs only after Engine.Stop
// has waited for it to exit), satisfying the spec.md §5 single-writer
// invariant.
type Worker struct {
	lifecycle *RequestLifecycle
}

func NewWorker(lifecycle *RequestLifecycle) *Worker {
	return &Worker{lifecycle: lifecycle}
}

// Run drains the queue until ctx is cancelled or the queue is closed.
// Intended to be run as the sole goroutine in an errgroup.Group entry.
func (w *Worker) Run(ctx context.Context) error {
	log.Infof("lifecycle worker starting")
	defer log.Infof("lifecycle worker stopped")

	for {
		req, ok := w.lifecycle.Dequeue(ctx)
		if !ok {
			return ctx.Err()
		}
		w.lifecycle.Apply(req)
	}
}
