// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package types

import "fmt"

// ApplyScope is the dimensionality along which a resource is
// independently arbitrated.
type ApplyScope uint8

const (
	ApplyGlobal ApplyScope = iota
	ApplyCore
	ApplyCluster
	ApplyCgroup
)

func (s ApplyScope) String() string {
	switch s {
	case ApplyGlobal:
		return "global"
	case ApplyCore:
		return "core"
	case ApplyCluster:
		return "cluster"
	case ApplyCgroup:
		return "cgroup"
	default:
		return "unknown"
	}
}

// Policy is the arbitration discipline applied to a resource's
// contending requests.
type Policy uint8

const (
	PolicyInstant Policy = iota
	PolicyHigherBetter
	PolicyLowerBetter
	PolicyLazy
	PolicyPassThrough
	PolicyPassThroughAppend
)

func (p Policy) String() string {
	switch p {
	case PolicyInstant:
		return "instant"
	case PolicyHigherBetter:
		return "higherBetter"
	case PolicyLowerBetter:
		return "lowerBetter"
	case PolicyLazy:
		return "lazy"
	case PolicyPassThrough:
		return "passThrough"
	case PolicyPassThroughAppend:
		return "passThroughAppend"
	default:
		return "unknown"
	}
}

// IsPassThrough reports whether this policy keeps a reference counter
// instead of an arbitration list (spec.md §3 invariant).
func (p Policy) IsPassThrough() bool {
	return p == PolicyPassThrough || p == PolicyPassThroughAppend
}

// Permission gates who may submit a tune for a resource.
type Permission uint8

const (
	PermissionSystem Permission = iota
	PermissionThirdParty
)

// DeviceMode is a bitmask over the global display/power states that
// gate which resources may be applied.
type DeviceMode uint8

const (
	ModeResume DeviceMode = 1 << iota
	ModeSuspend
	ModeDoze
)

// ResCode packs (resType, resId) into a single 32-bit identity, per
// spec.md §3: resType is 8 bits, resId is 16 bits.
type ResCode uint32

// NewResCode packs a resource type and id into a ResCode. Only the low
// 8 bits of resType and the low 16 bits of resId are kept.
func NewResCode(resType uint8, resId uint16) ResCode {
	return ResCode(uint32(resType)<<16 | uint32(resId))
}

func (c ResCode) ResType() uint8  { return uint8(c >> 16) }
func (c ResCode) ResId() uint16   { return uint16(c) }
func (c ResCode) String() string  { return fmt.Sprintf("0x%08x", uint32(c)) }

// ResCgroupMove is the well-known resource code the classifier expands
// a cgroup-move directive into (spec.md §4.3 pipeline step 5). Resource
// type 0 is reserved for internal, non-tunable pseudo-resources.
var ResCgroupMove = NewResCode(0, 1)

// ResInfo carries the logical scoping a request attaches to a resource
// write: logical cluster and/or logical core, and/or a cgroup id. Which
// fields are meaningful depends on the resource's ApplyScope.
type ResInfo struct {
	LogicalClusterId int32
	LogicalCoreId    int32
	CgroupId         int32
}

// Resource is one (resource code, value sequence) pair inside a
// Request. Values is length 1..N; for multi-value resources arbitration
// keys off Values[1] if present, else Values[0] (spec.md §4.1).
type Resource struct {
	Code    ResCode
	Info    ResInfo
	Values  []int32
}

// ArbitrationValue returns the value used for higherBetter/lowerBetter
// comparisons.
func (r *Resource) ArbitrationValue() int32 {
	if len(r.Values) > 1 {
		return r.Values[1]
	}
	if len(r.Values) == 1 {
		return r.Values[0]
	}
	return 0
}

// ResourceApplier encapsulates the kernel-facing side effect of
// applying a resource's current value. Default appliers are provided
// per ApplyScope; resource config may override with a custom one (e.g.
// for resources needing an aggregation policy across multiple values).
type ResourceApplier interface {
	Apply(r *Resource) error
}

// ResourceTear is the inverse of ResourceApplier: restores the
// in-memory default value for a resource.
type ResourceTear interface {
	Tear(r *Resource) error
}

// ResourceApplierFunc adapts a plain function to ResourceApplier.
type ResourceApplierFunc func(r *Resource) error

func (f ResourceApplierFunc) Apply(r *Resource) error { return f(r) }

// ResourceTearFunc adapts a plain function to ResourceTear.
type ResourceTearFunc func(r *Resource) error

func (f ResourceTearFunc) Tear(r *Resource) error { return f(r) }

// ResourceConfig is a ResourceRegistry catalog entry: identity, path
// template, apply-scope, conflict policy, value bounds, permissions,
// applicable device modes, applier/tear callbacks, and default value.
type ResourceConfig struct {
	Code          ResCode
	Path          string // may contain %cluster%, %core%, %cgroup% substitution markers
	ApplyScope    ApplyScope
	Policy        Policy
	Permission    Permission
	Modes         DeviceMode
	HighThreshold int32
	LowThreshold  int32
	Unit          string
	Applier       ResourceApplier
	Tear          ResourceTear
	DefaultValue  int32
}
