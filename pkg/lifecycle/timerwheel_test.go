// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package lifecycle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/restuned/pkg/types"
)

func TestTimerWheelFiresOnExpiry(t *testing.T) {
	var mu sync.Mutex
	var fired types.Handle = -99

	w := NewTimerWheel(func(h types.Handle) {
		mu.Lock()
		fired = h
		mu.Unlock()
	})
	w.Arm(types.Handle(7), 10*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired == types.Handle(7)
	}, time.Second, 5*time.Millisecond)
}

func TestTimerWheelCancelPreventsFire(t *testing.T) {
	fired := false
	w := NewTimerWheel(func(h types.Handle) { fired = true })
	w.Arm(types.Handle(1), 20*time.Millisecond)
	w.Cancel(types.Handle(1))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, fired)
	assert.Equal(t, 0, w.Len())
}

func TestTimerWheelExtendRejectsShortening(t *testing.T) {
	w := NewTimerWheel(func(types.Handle) {})
	w.Arm(types.Handle(1), 200*time.Millisecond)
	defer w.Cancel(types.Handle(1))

	err := w.Extend(types.Handle(1), 50*time.Millisecond)
	assert.Error(t, err)
}

func TestTimerWheelExtendAllowsLengthening(t *testing.T) {
	w := NewTimerWheel(func(types.Handle) {})
	w.Arm(types.Handle(1), 50*time.Millisecond)
	defer w.Cancel(types.Handle(1))

	err := w.Extend(types.Handle(1), 200*time.Millisecond)
	assert.NoError(t, err)
}
