// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/restuned/pkg/types"
)

func TestSignalExpandFlattensOwnResources(t *testing.T) {
	reg := NewSignalRegistry()
	reg.Register(&types.Signal{
		Id:   1,
		Type: 0,
		Resources: []types.ResourceTemplate{
			{Code: types.NewResCode(1, 1), Values: []int32{10}},
		},
		TimeoutMs: 5000,
	})

	resources, timeout, ok := reg.Expand(1, 0)
	require.True(t, ok)
	assert.Equal(t, int64(5000), timeout)
	require.Len(t, resources, 1)
	assert.Equal(t, int32(10), resources[0].Values[0])
}

func TestSignalExpandRecursesIntoDerivatives(t *testing.T) {
	reg := NewSignalRegistry()
	reg.Register(&types.Signal{
		Id:   2,
		Type: 0,
		Resources: []types.ResourceTemplate{
			{Code: types.NewResCode(1, 1), Values: []int32{1}},
		},
	})
	reg.Register(&types.Signal{
		Id:          1,
		Type:        0,
		Resources:   []types.ResourceTemplate{{Code: types.NewResCode(1, 2), Values: []int32{2}}},
		Derivatives: []types.SignalId{2},
	})

	resources, _, ok := reg.Expand(1, 0)
	require.True(t, ok)
	require.Len(t, resources, 2, "parent and derivative resources must both appear")
}

func TestSignalExpandGuardsAgainstDerivativeCycle(t *testing.T) {
	reg := NewSignalRegistry()
	reg.Register(&types.Signal{
		Id:          1,
		Type:        0,
		Resources:   []types.ResourceTemplate{{Code: types.NewResCode(1, 1), Values: []int32{1}}},
		Derivatives: []types.SignalId{2},
	})
	reg.Register(&types.Signal{
		Id:          2,
		Type:        0,
		Resources:   []types.ResourceTemplate{{Code: types.NewResCode(1, 2), Values: []int32{2}}},
		Derivatives: []types.SignalId{1},
	})

	resources, _, ok := reg.Expand(1, 0)
	require.True(t, ok)
	assert.Len(t, resources, 2, "cycle must not cause infinite recursion or duplicate expansion")
}

func TestSignalExpandUnknownSignalNotOK(t *testing.T) {
	reg := NewSignalRegistry()
	_, _, ok := reg.Expand(99, 0)
	assert.False(t, ok)
}

func TestSignalExpandCopiesValueSlices(t *testing.T) {
	reg := NewSignalRegistry()
	template := types.ResourceTemplate{Code: types.NewResCode(1, 1), Values: []int32{1, 2}}
	reg.Register(&types.Signal{Id: 1, Type: 0, Resources: []types.ResourceTemplate{template}})

	resources, _, ok := reg.Expand(1, 0)
	require.True(t, ok)
	resources[0].Values[0] = 99

	again, _, _ := reg.Expand(1, 0)
	assert.Equal(t, int32(1), again[0].Values[0], "expansion must not share backing arrays across calls")
}
