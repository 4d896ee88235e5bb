// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package registry

import (
	"sync"

	"github.com/DataDog/restuned/pkg/types"
)

type signalKey struct {
	id  types.SignalId
	typ types.SignalType
}

// SignalRegistry is the catalog of named resource bundles (spec.md §3,
// §4.3 step 3/7).
type SignalRegistry struct {
	mu      sync.RWMutex
	signals map[signalKey]*types.Signal
}

func NewSignalRegistry() *SignalRegistry {
	return &SignalRegistry{signals: make(map[signalKey]*types.Signal)}
}

func (s *SignalRegistry) Register(sig *types.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[signalKey{sig.Id, sig.Type}] = sig
}

// Get returns the signal matching (id, type), or nil if unregistered.
func (s *SignalRegistry) Get(id types.SignalId, typ types.SignalType) (*types.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[signalKey{id, typ}]
	return sig, ok
}

// Expand materializes a signal (and its derivatives, recursively) into
// a flat list of Resource templates ready to become the Resources field
// of a synthesized tune Request.
func (s *SignalRegistry) Expand(id types.SignalId, typ types.SignalType) ([]types.Resource, int64, bool) {
	sig, ok := s.Get(id, typ)
	if !ok {
		return nil, 0, false
	}
	var resources []types.Resource
	s.expandInto(sig, &resources, make(map[signalKey]bool))
	return resources, sig.TimeoutMs, true
}

func (s *SignalRegistry) expandInto(sig *types.Signal, out *[]types.Resource, visited map[signalKey]bool) {
	key := signalKey{sig.Id, sig.Type}
	if visited[key] {
		return // guards against a derivative cycle
	}
	visited[key] = true

	for _, tmpl := range sig.Resources {
		values := make([]int32, len(tmpl.Values))
		copy(values, tmpl.Values)
		*out = append(*out, types.Resource{Code: tmpl.Code, Info: tmpl.Info, Values: values})
	}
	for _, childId := range sig.Derivatives {
		if child, ok := s.Get(childId, sig.Type); ok {
			s.expandInto(child, out, visited)
		}
	}
}
