// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package cct implements the Conflict-Coordination Table: per-resource
// arbitration over concurrent tune requests (spec.md §4.1).
//
// The original implementation uses an intrusive doubly-linked list
// (DLManager) manipulated by allocation-free helpers. DESIGN NOTES in
// spec.md calls for re-expressing this as a tagged container indexed by
// a stable slot id instead of raw pointers; arena.go is that
// re-expression: every node lives in a flat slice and is referenced by
// index, with a free-list for O(1) reuse, so insertion/removal never
// allocates on the hot path and there is no pointer-cycle risk to
// reason about.
package cct

import "github.com/DataDog/restuned/pkg/types"

// nodeRef is a stable slot index into an arena. The zero value, 0, is
// never issued as a live reference (slot 0 is reserved as the
// sentinel), so nodeRef(0) doubles as "no node".
type nodeRef uint32

const nilRef nodeRef = 0

// node is one arbitration-list entry: the Request handle and Resource
// it carries, plus intrusive prev/next links within its bucket.
type node struct {
	inUse    bool
	handle   types.Handle
	priority types.Priority
	resource types.Resource
	prev     nodeRef
	next     nodeRef
}

// arena is a fixed-growth pool of nodes referenced by index. Index 0 is
// reserved and never allocated, so nodeRef zero value means "none".
type arena struct {
	nodes    []node
	freeList []nodeRef
}

func newArena() *arena {
	return &arena{nodes: make([]node, 1)} // slot 0 reserved
}

// alloc returns a fresh node reference, reusing a freed slot if one is
// available.
func (a *arena) alloc(handle types.Handle, priority types.Priority, res types.Resource) nodeRef {
	if n := len(a.freeList); n > 0 {
		ref := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.nodes[ref] = node{inUse: true, handle: handle, priority: priority, resource: res}
		return ref
	}
	a.nodes = append(a.nodes, node{inUse: true, handle: handle, priority: priority, resource: res})
	return nodeRef(len(a.nodes) - 1)
}

func (a *arena) free(ref nodeRef) {
	if ref == nilRef {
		return
	}
	a.nodes[ref] = node{}
	a.freeList = append(a.freeList, ref)
}

func (a *arena) get(ref nodeRef) *node {
	if ref == nilRef {
		return nil
	}
	return &a.nodes[ref]
}
