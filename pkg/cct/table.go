// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package cct

import (
	restunederrors "github.com/DataDog/restuned/pkg/errors"
	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/types"
)

// bucket is one (resource, secondary-index) arbitration slot: either an
// ordered list of active nodes (head = winner) or, for pass-through
// policies, a bare reference counter.
type bucket struct {
	head nodeRef
	tail nodeRef

	// passThroughRefs is only meaningful when the owning resource's
	// policy is PolicyPassThrough; PolicyPassThroughAppend keeps the
	// slot allocated but never maintains a counter (spec.md §9 open
	// question: "every tune applies, no teardown").
	passThroughRefs int32
}

// Table is the Conflict-Coordination Table. All mutating operations are
// expected to be called from a single goroutine (spec.md §5: the core
// worker is the only writer); Table performs no internal locking.
type Table struct {
	resources ResourceCatalog
	topology  Topology
	arena     *arena

	// buckets[primaryIndex] is a flat slice sized per the resource's
	// ApplyScope (NumPriorities, or NumPriorities * dimension count).
	buckets [][]bucket

	// currentlyAppliedPriority[primaryIndex] mirrors the spec.md
	// "Priority dominance" invariant: NoPriority when nothing is
	// applied.
	currentlyAppliedPriority []types.Priority

	// handleIndex maps an active request handle to every node it owns,
	// so untune/removeAll can find all of a request's linked nodes
	// without a full table scan.
	handleIndex map[types.Handle][]location

	// resourceCodeCache reverse-maps a catalog slot index back to its
	// resource code, populated the first time a resource is touched.
	resourceCodeCache map[int]types.ResCode
}

type location struct {
	primary   int
	secondary int
	ref       nodeRef
}

// New builds a Table sized from the resource and topology catalogs. Per
// spec.md §4.1/§3, Registries are populated once and immutable
// thereafter, so Table's shape never changes post-construction.
func New(resources ResourceCatalog, topology Topology) *Table {
	t := &Table{
		resources:   resources,
		topology:    topology,
		arena:             newArena(),
		handleIndex:       make(map[types.Handle][]location),
		resourceCodeCache: make(map[int]types.ResCode),
	}

	total := resources.TotalResources()
	t.buckets = make([][]bucket, total)
	t.currentlyAppliedPriority = make([]types.Priority, total)
	for i := range t.currentlyAppliedPriority {
		t.currentlyAppliedPriority[i] = types.NoPriority
	}

	for idx := 0; idx < total; idx++ {
		t.buckets[idx] = make([]bucket, 0)
	}
	return t
}

// ensureSized lazily allocates the per-resource bucket slice the first
// time a resource is touched, sized for its ApplyScope.
func (t *Table) ensureSized(primary int, cfg *types.ResourceConfig) {
	if len(t.buckets[primary]) > 0 {
		return
	}
	size := types.NumPriorities
	switch cfg.ApplyScope {
	case types.ApplyCore:
		size = types.NumPriorities * t.topology.CoreCount()
	case types.ApplyCluster:
		size = types.NumPriorities * t.topology.ClusterCount()
	case types.ApplyCgroup:
		size = types.NumPriorities * t.topology.CgroupCatalogCount()
	}
	if size <= 0 {
		size = types.NumPriorities
	}
	t.buckets[primary] = make([]bucket, size)
}

// secondaryIndex computes the bucket offset for (resource, priority)
// per spec.md §4.1's four dispatch rules, translating logical
// core/cluster/cgroup ids to physical/catalog positions first.
func (t *Table) secondaryIndex(cfg *types.ResourceConfig, info types.ResInfo, priority types.Priority) (int, bool) {
	if !priority.IsBucketed() {
		return 0, false
	}
	switch cfg.ApplyScope {
	case types.ApplyGlobal:
		return int(priority), true
	case types.ApplyCore:
		physCore, ok := t.topology.PhysicalCoreId(info.LogicalClusterId, info.LogicalCoreId)
		if !ok {
			return 0, false
		}
		return int(physCore)*types.NumPriorities + int(priority), true
	case types.ApplyCluster:
		physCluster, ok := t.topology.PhysicalClusterId(info.LogicalClusterId)
		if !ok {
			return 0, false
		}
		pos, ok := t.topology.ClusterCatalogPos(physCluster)
		if !ok {
			return 0, false
		}
		return pos*types.NumPriorities + int(priority), true
	case types.ApplyCgroup:
		pos, ok := t.topology.CgroupCatalogPos(info.CgroupId)
		if !ok {
			return 0, false
		}
		return pos*types.NumPriorities + int(priority), true
	default:
		return 0, false
	}
}

// InsertResource inserts one Resource write owned by handle at
// priority, dispatching on the resource's policy. Per spec.md §4.1
// failure semantics: a missing resource config or an out-of-range
// translated index drops this resource (returns an error) without
// affecting the rest of the caller's request.
func (t *Table) InsertResource(handle types.Handle, priority types.Priority, res types.Resource) error {
	cfg, ok := t.resources.ResourceConfig(res.Code)
	if !ok {
		return restunederrors.New(restunederrors.KindNotFound, "cct.InsertResource", "resource not registered: "+res.Code.String())
	}
	primary, ok := t.resources.ResourceIndex(res.Code)
	if !ok {
		return restunederrors.New(restunederrors.KindNotFound, "cct.InsertResource", "no catalog slot for "+res.Code.String())
	}
	t.resourceCodeCache[primary] = res.Code

	if cfg.Policy.IsPassThrough() {
		return t.insertPassThrough(handle, primary, cfg, res)
	}

	t.ensureSized(primary, cfg)
	secondary, ok := t.secondaryIndex(cfg, res.Info, priority)
	if !ok {
		return restunederrors.New(restunederrors.KindTopology, "cct.InsertResource", "out of range index for "+res.Code.String())
	}
	if secondary < 0 || secondary >= len(t.buckets[primary]) {
		return restunederrors.New(restunederrors.KindTopology, "cct.InsertResource", "secondary index out of range for "+res.Code.String())
	}

	b := &t.buckets[primary][secondary]
	ref := t.arena.alloc(handle, priority, res)
	t.handleIndex[handle] = append(t.handleIndex[handle], location{primary: primary, secondary: secondary, ref: ref})

	becameHead := t.linkByPolicy(cfg.Policy, b, ref)
	if becameHead {
		t.apply(primary, secondary, cfg, priority)
	}
	return nil
}

func (t *Table) insertPassThrough(handle types.Handle, primary int, cfg *types.ResourceConfig, res types.Resource) error {
	// Pass-through resources keep a single global counter regardless
	// of scope dimension, per spec.md §3: "no arbitration list is
	// kept; a reference counter is kept instead". The arena node is
	// still allocated (unlinked from any bucket list) purely as
	// handle-owned bookkeeping, so RemoveResource can find this
	// write's Info again to decrement the right counter and, on
	// drain, tear down the right scope instance.
	if len(t.buckets[primary]) == 0 {
		t.buckets[primary] = make([]bucket, 1)
	}
	b := &t.buckets[primary][0]
	if cfg.Policy == types.PolicyPassThrough {
		b.passThroughRefs++
	}
	ref := t.arena.alloc(handle, types.NoPriority, res)
	t.handleIndex[handle] = append(t.handleIndex[handle], location{primary: primary, secondary: 0, ref: ref})
	t.fastPathApply(cfg, res)
	return nil
}

func (t *Table) fastPathApply(cfg *types.ResourceConfig, res types.Resource) {
	if cfg.Modes&t.topology.CurrentMode() == 0 {
		log.Warnf("resource mode reject: resource=%s mode=%v", cfg.Code, t.topology.CurrentMode())
		return
	}
	if cfg.Applier != nil {
		if err := cfg.Applier.Apply(&res); err != nil {
			log.Errorf("applier error for %s: %v", cfg.Code, err)
		}
	}
}

// linkByPolicy splices ref into bucket b according to policy and
// reports whether ref is now the bucket head (meaning it must be
// applied).
func (t *Table) linkByPolicy(policy types.Policy, b *bucket, ref nodeRef) bool {
	switch policy {
	case types.PolicyInstant:
		t.pushFront(b, ref)
		return b.head == ref
	case types.PolicyHigherBetter:
		t.insertOrdered(b, ref, true)
		return b.head == ref
	case types.PolicyLowerBetter:
		t.insertOrdered(b, ref, false)
		return b.head == ref
	case types.PolicyLazy:
		wasEmpty := b.head == nilRef
		t.pushBack(b, ref)
		return wasEmpty
	default:
		t.pushBack(b, ref)
		return b.head == ref
	}
}

func (t *Table) pushFront(b *bucket, ref nodeRef) {
	n := t.arena.get(ref)
	n.next = b.head
	n.prev = nilRef
	if b.head != nilRef {
		t.arena.get(b.head).prev = ref
	}
	b.head = ref
	if b.tail == nilRef {
		b.tail = ref
	}
}

func (t *Table) pushBack(b *bucket, ref nodeRef) {
	n := t.arena.get(ref)
	n.prev = b.tail
	n.next = nilRef
	if b.tail != nilRef {
		t.arena.get(b.tail).next = ref
	}
	b.tail = ref
	if b.head == nilRef {
		b.head = ref
	}
}

// insertOrdered walks from head while the new node is not strictly
// better than the current node under higherBetter (descending) or lowerBetter
// (ascending), then inserts before the first node it beats. Per
// spec.md §4.1 tie-break: a new insertion goes before the first element
// it is strictly better than; equal keys keep existing nodes first
// (stable FIFO among equals).
func (t *Table) insertOrdered(b *bucket, ref nodeRef, higherBetter bool) {
	newNode := t.arena.get(ref)
	newVal := newNode.resource.ArbitrationValue()

	cur := b.head
	for cur != nilRef {
		curNode := t.arena.get(cur)
		curVal := curNode.resource.ArbitrationValue()
		better := false
		if higherBetter {
			better = newVal > curVal
		} else {
			better = newVal < curVal
		}
		if better {
			break
		}
		cur = curNode.next
	}

	if cur == nilRef {
		t.pushBack(b, ref)
		return
	}
	curNode := t.arena.get(cur)
	prevRef := curNode.prev
	newNode.next = cur
	newNode.prev = prevRef
	curNode.prev = ref
	if prevRef == nilRef {
		b.head = ref
	} else {
		t.arena.get(prevRef).next = ref
	}
}

// apply consults the resource's device-mode mask, then invokes its
// applier (or the resource's default applier set up at registration),
// per spec.md §4.1 "Application". Only fires when priority is at least
// as strong as (numerically <=) whatever is currently applied, or
// nothing is currently applied — this mirrors the original's
// applyAction guard and makes apply() safe to call redundantly.
func (t *Table) apply(primary, secondary int, cfg *types.ResourceConfig, priority types.Priority) {
	cur := t.currentlyAppliedPriority[primary]
	if cur != types.NoPriority && int(cur) < int(priority) {
		return
	}
	if cfg.Modes&t.topology.CurrentMode() == 0 {
		log.Warnf("resource mode reject: resource=%s mode=%v", cfg.Code, t.topology.CurrentMode())
		return
	}
	b := &t.buckets[primary][secondary]
	headNode := t.arena.get(b.head)
	if headNode == nil {
		return
	}
	if cfg.Applier != nil {
		if err := cfg.Applier.Apply(&headNode.resource); err != nil {
			log.Errorf("applier error for %s: %v", cfg.Code, err)
		}
	}
	t.currentlyAppliedPriority[primary] = priority
}

// RemoveResource detaches every node owned by handle across every
// bucket it touched, applying successors / scanning for the next live
// priority bucket / tearing down to default as described in spec.md
// §4.1 "Removal".
func (t *Table) RemoveResource(handle types.Handle) {
	locs, ok := t.handleIndex[handle]
	if !ok {
		return // idempotent: untune of an unknown handle is a no-op
	}
	delete(t.handleIndex, handle)

	for _, loc := range locs {
		t.removeOne(loc)
	}
}

func (t *Table) removeOne(loc location) {
	cfg, ok := t.resources.ResourceConfig(t.primaryResourceCode(loc.primary))
	if !ok {
		return
	}

	n := t.arena.get(loc.ref)
	if n == nil {
		return
	}

	if cfg.Policy.IsPassThrough() {
		info := n.resource.Info
		t.arena.free(loc.ref)
		t.removePassThrough(loc.primary, cfg, info)
		return
	}

	b := &t.buckets[loc.primary][loc.secondary]
	removedInfo := n.resource.Info
	wasHead := b.head == loc.ref
	t.unlink(b, loc.ref)
	t.arena.free(loc.ref)

	if wasHead {
		if b.head != nilRef {
			// A stronger priority bucket at the same scope instance
			// still holds the applied value; the new head stays queued.
			base := (loc.secondary / types.NumPriorities) * types.NumPriorities
			for sec := base; sec < loc.secondary; sec++ {
				if t.buckets[loc.primary][sec].head != nilRef {
					return
				}
			}
			// Otherwise the removed node was the applied winner; clear
			// the mark so apply's dominance guard doesn't mistake the
			// stale record for a still-live stronger writer and refuse
			// to promote the new head.
			t.currentlyAppliedPriority[loc.primary] = types.NoPriority
			t.apply(loc.primary, loc.secondary, cfg, t.arena.get(b.head).priority)
			return
		}
		t.onBucketEmpty(loc.primary, loc.secondary, cfg, removedInfo)
	}
}

// onBucketEmpty scans sibling priority buckets for the same scoped
// dimension (same physical core/cluster/cgroup, every priority),
// lowest-numeric-first, and applies the first live head found; if
// every bucket at this scope instance is empty, tears down to default.
// info is the ResInfo of the resource write that just vacated the
// bucket, carried through so tearDown knows which scope instance
// (which cluster/core/cgroup) to restore.
func (t *Table) onBucketEmpty(primary, emptiedSecondary int, cfg *types.ResourceConfig, info types.ResInfo) {
	base := (emptiedSecondary / types.NumPriorities) * types.NumPriorities
	for p := 0; p < types.NumPriorities; p++ {
		sec := base + p
		b := &t.buckets[primary][sec]
		if b.head != nilRef {
			t.currentlyAppliedPriority[primary] = types.NoPriority
			t.apply(primary, sec, cfg, types.Priority(p))
			return
		}
	}
	t.tearDown(primary, cfg, info)
}

func (t *Table) tearDown(primary int, cfg *types.ResourceConfig, info types.ResInfo) {
	if cfg.Tear != nil {
		dflt := types.Resource{Code: cfg.Code, Info: info, Values: []int32{cfg.DefaultValue}}
		if err := cfg.Tear.Tear(&dflt); err != nil {
			log.Errorf("tear error for %s: %v", cfg.Code, err)
		}
	}
	t.currentlyAppliedPriority[primary] = types.NoPriority
}

func (t *Table) removePassThrough(primary int, cfg *types.ResourceConfig, info types.ResInfo) {
	if len(t.buckets[primary]) == 0 {
		return
	}
	b := &t.buckets[primary][0]
	if cfg.Policy != types.PolicyPassThrough {
		return // passThroughAppend: "every tune applies, no teardown"
	}
	if b.passThroughRefs > 0 {
		b.passThroughRefs--
	}
	if b.passThroughRefs == 0 {
		t.tearDown(primary, cfg, info)
	}
}

func (t *Table) unlink(b *bucket, ref nodeRef) {
	n := t.arena.get(ref)
	if n.prev != nilRef {
		t.arena.get(n.prev).next = n.next
	} else {
		b.head = n.next
	}
	if n.next != nilRef {
		t.arena.get(n.next).prev = n.prev
	} else {
		b.tail = n.prev
	}
}

// primaryResourceCode reverse-maps a catalog slot back to its resource
// code via the cache populated on first touch in InsertResource.
func (t *Table) primaryResourceCode(primary int) types.ResCode {
	return t.resourceCodeCache[primary]
}

// CurrentlyAppliedPriority returns the Priority currently in effect for
// a resource's primary slot, or NoPriority if the default is in effect.
// Exposed for the "Priority dominance" testable property.
func (t *Table) CurrentlyAppliedPriority(code types.ResCode) (types.Priority, bool) {
	primary, ok := t.resources.ResourceIndex(code)
	if !ok {
		return types.NoPriority, false
	}
	return t.currentlyAppliedPriority[primary], true
}
