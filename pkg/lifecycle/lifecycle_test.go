// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/restuned/pkg/types"
)

type fakeTable struct {
	mu       sync.Mutex
	inserted []types.Handle
	removed  []types.Handle
}

func (f *fakeTable) InsertResource(handle types.Handle, priority types.Priority, res types.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, handle)
	return nil
}

func (f *fakeTable) RemoveResource(handle types.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, handle)
}

func newTestLifecycle() (*RequestLifecycle, *fakeTable) {
	table := &fakeTable{}
	v, _ := newTestVerifier()
	l := NewRequestLifecycle(table, v, 10)
	return l, table
}

func TestLifecycleSubmitRejectsInvalidRequest(t *testing.T) {
	l, _ := newTestLifecycle()
	_, err := l.Submit(&types.Request{
		Type:      types.ResourceTune,
		Priority:  types.ThirdPartyHigh,
		Resources: []types.Resource{{Code: testResCode, Values: []int32{1}}},
	})
	assert.Error(t, err)
}

func TestLifecycleSubmitIssuesIncreasingHandles(t *testing.T) {
	l, _ := newTestLifecycle()
	h1, err := l.Submit(&types.Request{
		Type:      types.ResourceTune,
		Priority:  types.SystemHigh,
		Resources: []types.Resource{{Code: testResCode, Values: []int32{1}}},
	})
	require.NoError(t, err)
	h2, err := l.Submit(&types.Request{
		Type:      types.ResourceTune,
		Priority:  types.SystemHigh,
		Resources: []types.Resource{{Code: testResCode, Values: []int32{1}}},
	})
	require.NoError(t, err)
	assert.Less(t, int64(h1), int64(h2))
}

func TestLifecycleApplyTuneInsertsIntoTable(t *testing.T) {
	l, table := newTestLifecycle()
	req := &types.Request{
		Handle:   5,
		Type:     types.ResourceTune,
		Priority: types.SystemHigh,
		Resources: []types.Resource{
			{Code: testResCode, Values: []int32{1}},
		},
	}
	l.Apply(req)
	assert.Contains(t, table.inserted, types.Handle(5))
}

func TestLifecycleApplyUntuneRemovesFromTable(t *testing.T) {
	l, table := newTestLifecycle()
	l.Apply(&types.Request{Handle: 5, Type: types.ResourceUntune})
	assert.Contains(t, table.removed, types.Handle(5))
}

func TestLifecycleExpireReinjectsAsHighTransferUntune(t *testing.T) {
	l, table := newTestLifecycle()
	req := &types.Request{
		Type:      types.ResourceTune,
		Priority:  types.SystemHigh,
		DurationMs: 10,
		Resources: []types.Resource{{Code: testResCode, Values: []int32{1}}},
	}
	handle, err := l.Submit(req)
	require.NoError(t, err)

	dequeued, ok := l.Dequeue(context.Background())
	require.True(t, ok)
	l.Apply(dequeued)

	// Timer should fire shortly after and push an untune back onto the queue.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	untune, ok := l.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, handle, untune.Handle)
	assert.Equal(t, types.ResourceUntune, untune.Type)
	assert.Equal(t, types.HighTransfer, untune.Priority)

	l.Apply(untune)
	assert.Contains(t, table.removed, handle)
}

func TestLifecycleLiveClientPidsAndReap(t *testing.T) {
	l, _ := newTestLifecycle()
	req := &types.Request{
		Type:      types.ResourceTune,
		Priority:  types.SystemHigh,
		ClientPid: 4242,
		Resources: []types.Resource{{Code: testResCode, Values: []int32{1}}},
	}
	handle, err := l.Submit(req)
	require.NoError(t, err)

	live := l.LiveClientPids()
	require.Contains(t, live, handle)
	assert.Equal(t, int32(4242), live[handle])

	l.Reap(handle)
	untune, ok := l.Dequeue(context.Background())
	require.True(t, ok)
	assert.Equal(t, types.ServerCleanup, untune.Priority)
}
