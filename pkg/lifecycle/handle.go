// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package lifecycle implements the Request Lifecycle Engine (spec.md
// §4.2): handle generation, validation, the bounded RequestQueue, the
// TimerWheel, and the GarbageCollector.
package lifecycle

import (
	"sync"

	"github.com/DataDog/restuned/pkg/types"
)

// HandleGenerator issues strictly monotonic non-negative handles under
// a shared mutex. Per spec.md §4.2/§9, it never wraps: on exhaustion it
// returns InvalidHandle (-1) forever after.
type HandleGenerator struct {
	mu        sync.Mutex
	next      int64
	exhausted bool
}

func NewHandleGenerator() *HandleGenerator {
	return &HandleGenerator{}
}

// Issue returns the next handle, or types.InvalidHandle if the 64-bit
// space has been exhausted.
func (g *HandleGenerator) Issue() types.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.exhausted || g.next < 0 {
		g.exhausted = true
		return types.InvalidHandle
	}
	h := g.next
	g.next++
	return types.Handle(h)
}
