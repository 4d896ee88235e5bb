// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package registry implements the three config catalogs restuned keeps
// immutable after init: ResourceRegistry, TargetRegistry and
// SignalRegistry (spec.md §4.4).
package registry

import (
	"sync"

	"github.com/DataDog/restuned/pkg/types"
)

// ResourceRegistry is the catalog of known resources. Populated once
// during init and immutable thereafter (spec.md §3 Lifecycle); the
// mutex is taken for writing by Register and for reading by every
// lookup.
type ResourceRegistry struct {
	mu      sync.RWMutex
	configs map[types.ResCode]*types.ResourceConfig
	order   []types.ResCode // registration order == catalog slot index
	index   map[types.ResCode]int
}

// NewResourceRegistry builds an empty registry ready for Register
// calls.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{
		configs: make(map[types.ResCode]*types.ResourceConfig),
		index:   make(map[types.ResCode]int),
	}
}

// Register adds or overwrites a resource config. Per spec.md §4.4,
// re-registering the same code overwrites the prior entry but keeps its
// existing catalog slot (so arbitration state already built against
// that slot stays structurally valid).
func (r *ResourceRegistry) Register(cfg *types.ResourceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[cfg.Code]; !exists {
		r.index[cfg.Code] = len(r.order)
		r.order = append(r.order, cfg.Code)
	}
	r.configs[cfg.Code] = cfg
}

// ResourceConfig implements cct.ResourceCatalog.
func (r *ResourceRegistry) ResourceConfig(code types.ResCode) (*types.ResourceConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[code]
	return cfg, ok
}

// ResourceIndex implements cct.ResourceCatalog.
func (r *ResourceRegistry) ResourceIndex(code types.ResCode) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.index[code]
	return idx, ok
}

// TotalResources implements cct.ResourceCatalog.
func (r *ResourceRegistry) TotalResources() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// RegisteredResources returns every registered config, in registration
// order.
func (r *ResourceRegistry) RegisteredResources() []*types.ResourceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.ResourceConfig, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.configs[code])
	}
	return out
}
