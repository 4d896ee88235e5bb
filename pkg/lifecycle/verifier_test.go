// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/restuned/pkg/types"
)

type fakeCatalog struct {
	configs map[types.ResCode]*types.ResourceConfig
}

func (f *fakeCatalog) ResourceConfig(code types.ResCode) (*types.ResourceConfig, bool) {
	c, ok := f.configs[code]
	return c, ok
}

type fakeTopology struct {
	cores    map[[2]int32]int32
	clusters map[int32]int32
	cgroups  map[int32]int
}

func (f *fakeTopology) PhysicalCoreId(cluster, core int32) (int32, bool) {
	v, ok := f.cores[[2]int32{cluster, core}]
	return v, ok
}
func (f *fakeTopology) PhysicalClusterId(cluster int32) (int32, bool) {
	v, ok := f.clusters[cluster]
	return v, ok
}
func (f *fakeTopology) CgroupCatalogPos(id int32) (int, bool) {
	v, ok := f.cgroups[id]
	return v, ok
}

var testResCode = types.NewResCode(1, 1)

func newTestVerifier() (*Verifier, *fakeCatalog) {
	cat := &fakeCatalog{configs: map[types.ResCode]*types.ResourceConfig{
		testResCode: {
			Code:          testResCode,
			ApplyScope:    types.ApplyGlobal,
			Permission:    types.PermissionSystem,
			LowThreshold:  0,
			HighThreshold: 100,
		},
	}}
	topo := &fakeTopology{
		cores:    map[[2]int32]int32{},
		clusters: map[int32]int32{},
		cgroups:  map[int32]int{},
	}
	return NewVerifier(cat, topo), cat
}

func TestVerifierRejectsUnknownResource(t *testing.T) {
	v, _ := newTestVerifier()
	req := &types.Request{
		Type:      types.ResourceTune,
		Priority:  types.SystemHigh,
		Resources: []types.Resource{{Code: types.NewResCode(9, 9), Values: []int32{1}}},
	}
	err := v.Verify(req)
	assert.Error(t, err)
}

func TestVerifierRejectsThirdPartyOnSystemResource(t *testing.T) {
	v, _ := newTestVerifier()
	req := &types.Request{
		Type:      types.ResourceTune,
		Priority:  types.ThirdPartyHigh,
		Resources: []types.Resource{{Code: testResCode, Values: []int32{10}}},
	}
	err := v.Verify(req)
	assert.Error(t, err)
}

func TestVerifierRejectsOutOfBoundsValue(t *testing.T) {
	v, _ := newTestVerifier()
	req := &types.Request{
		Type:      types.ResourceTune,
		Priority:  types.SystemHigh,
		Resources: []types.Resource{{Code: testResCode, Values: []int32{1000}}},
	}
	err := v.Verify(req)
	assert.Error(t, err)
}

func TestVerifierAcceptsValidRequest(t *testing.T) {
	v, _ := newTestVerifier()
	req := &types.Request{
		Type:      types.ResourceTune,
		Priority:  types.SystemHigh,
		Resources: []types.Resource{{Code: testResCode, Values: []int32{42}}},
	}
	require.NoError(t, v.Verify(req))
}

func TestVerifierAggregatesMultipleFailures(t *testing.T) {
	v, _ := newTestVerifier()
	req := &types.Request{
		Type:     types.ResourceTune,
		Priority: types.Priority(99), // invalid
		Resources: []types.Resource{
			{Code: types.NewResCode(9, 9), Values: []int32{1}},
			{Code: testResCode, Values: []int32{1000}},
		},
	}
	err := v.Verify(req)
	require.Error(t, err)
	me, ok := err.(interface{ WrappedErrors() []error })
	require.True(t, ok, "expected a multierror.Error")
	assert.GreaterOrEqual(t, len(me.WrappedErrors()), 3)
}
