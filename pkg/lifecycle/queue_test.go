// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/restuned/pkg/types"
)

func TestRequestQueueOrdersByPriority(t *testing.T) {
	q := NewRequestQueue(10)
	q.Enqueue(&types.Request{Handle: 1, Priority: types.ThirdPartyLow})
	q.Enqueue(&types.Request{Handle: 2, Priority: types.SystemHigh})
	q.Enqueue(&types.Request{Handle: 3, Priority: types.HighTransfer})

	ctx := context.Background()
	req, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, types.Handle(3), req.Handle)

	req, ok = q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, types.Handle(2), req.Handle)

	req, ok = q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, types.Handle(1), req.Handle)
}

func TestRequestQueueFIFOWithinPriority(t *testing.T) {
	q := NewRequestQueue(10)
	q.Enqueue(&types.Request{Handle: 1, Priority: types.SystemLow})
	q.Enqueue(&types.Request{Handle: 2, Priority: types.SystemLow})
	q.Enqueue(&types.Request{Handle: 3, Priority: types.SystemLow})

	ctx := context.Background()
	for _, want := range []types.Handle{1, 2, 3} {
		req, ok := q.Dequeue(ctx)
		require.True(t, ok)
		assert.Equal(t, want, req.Handle)
	}
}

func TestRequestQueueOverflowDropsOldest(t *testing.T) {
	q := NewRequestQueue(2)
	q.Enqueue(&types.Request{Handle: 1, Priority: types.SystemLow})
	q.Enqueue(&types.Request{Handle: 2, Priority: types.SystemLow})
	q.Enqueue(&types.Request{Handle: 3, Priority: types.SystemLow})

	assert.Equal(t, 2, q.Depth())

	ctx := context.Background()
	req, _ := q.Dequeue(ctx)
	assert.Equal(t, types.Handle(2), req.Handle)
	req, _ = q.Dequeue(ctx)
	assert.Equal(t, types.Handle(3), req.Handle)
}

func TestRequestQueueDequeueBlocksUntilCancel(t *testing.T) {
	q := NewRequestQueue(10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := q.Dequeue(ctx)
	assert.False(t, ok)
}

func TestRequestQueueCloseUnblocksDequeue(t *testing.T) {
	q := NewRequestQueue(10)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after Close")
	}
}
