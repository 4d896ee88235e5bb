// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"context"
	"sync"

	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/types"
)

// servedOrder lists every priority level the queue serves, strongest
// first: ServerCleanup and HighTransfer are transport-only priorities
// used by internally synthesized requests (spec.md §3), served ahead
// of every client-facing bucket.
var servedOrder = []types.Priority{
	types.ServerCleanup,
	types.HighTransfer,
	types.SystemHigh,
	types.SystemLow,
	types.ThirdPartyHigh,
	types.ThirdPartyLow,
}

// RequestQueue is the bounded, priority-aware intake queue drained by a
// single worker (spec.md §4.2 "Queue semantics"). Priority-ordered;
// within a priority FIFO; bounded per priority. Overflow drops the
// oldest request at that priority before enqueueing the new one.
type RequestQueue struct {
	mu     sync.Mutex
	closed bool
	wake   chan struct{}

	capacityPerPriority int
	buckets             map[types.Priority][]*types.Request
}

// NewRequestQueue builds a queue bounded at capacityPerPriority entries
// per priority level.
func NewRequestQueue(capacityPerPriority int) *RequestQueue {
	return &RequestQueue{
		capacityPerPriority: capacityPerPriority,
		buckets:             make(map[types.Priority][]*types.Request),
		wake:                make(chan struct{}, 1),
	}
}

func (q *RequestQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Enqueue appends req to its priority's FIFO, dropping the oldest entry
// at that priority first if the bucket is already full. Enqueue never
// blocks on kernel I/O — only on the queue's own mutex (spec.md §5).
func (q *RequestQueue) Enqueue(req *types.Request) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	bucket := q.buckets[req.Priority]
	if len(bucket) >= q.capacityPerPriority {
		dropped := bucket[0]
		bucket = bucket[1:]
		log.Warnf("request queue overflow at priority %v: dropping oldest handle %d", req.Priority, dropped.Handle)
	}
	q.buckets[req.Priority] = append(bucket, req)
	q.mu.Unlock()
	q.signal()
}

// Dequeue blocks until a request is available or ctx is cancelled,
// returning the strongest-priority, oldest-arrived request.
func (q *RequestQueue) Dequeue(ctx context.Context) (*types.Request, bool) {
	for {
		q.mu.Lock()
		if req, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return req, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (q *RequestQueue) popLocked() (*types.Request, bool) {
	for _, p := range servedOrder {
		bucket := q.buckets[p]
		if len(bucket) > 0 {
			req := bucket[0]
			q.buckets[p] = bucket[1:]
			return req, true
		}
	}
	for p, bucket := range q.buckets {
		if len(bucket) > 0 {
			req := bucket[0]
			q.buckets[p] = bucket[1:]
			return req, true
		}
	}
	return nil, false
}

// Close unblocks every pending Dequeue call; subsequent Enqueue calls
// are dropped.
func (q *RequestQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Depth returns the total number of queued requests, for telemetry.
func (q *RequestQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, b := range q.buckets {
		total += len(b)
	}
	return total
}
