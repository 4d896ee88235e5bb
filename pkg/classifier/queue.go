// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package classifier

import (
	"context"
	"sync"

	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/types"
)

// DefaultQueueDepth is the bounded ClassifierQueue depth (spec.md §4.3
// "Concurrency").
const DefaultQueueDepth = 30

// eventQueue is the bounded FIFO between the netlink reader goroutine
// and the classifier worker goroutine. Overflow trims from the front —
// the oldest pending event is dropped to make room for the newest,
// since a stale exec/exit notification is worse than a dropped one.
type eventQueue struct {
	mu     sync.Mutex
	closed bool
	wake   chan struct{}
	depth  int
	events []types.ProcEvent
}

func newEventQueue(depth int) *eventQueue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &eventQueue{depth: depth, wake: make(chan struct{}, 1)}
}

func (q *eventQueue) Push(ev types.ProcEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.events) >= q.depth {
		q.events = q.events[1:]
		log.Warnf("classifier queue overflow: dropping oldest event")
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) Pop(ctx context.Context) (types.ProcEvent, bool) {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			ev := q.events[0]
			q.events = q.events[1:]
			q.mu.Unlock()
			return ev, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return types.ProcEvent{}, false
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return types.ProcEvent{}, false
		}
	}
}

func (q *eventQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
