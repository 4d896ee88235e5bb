// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package classifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/restuned/pkg/types"
)

type fakeSource struct {
	mu     sync.Mutex
	events [][]types.ProcEvent
	closed bool
}

func (f *fakeSource) Receive() ([]types.ProcEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}
	next := f.events[0]
	f.events = f.events[1:]
	return next, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeSubmitter struct {
	mu      sync.Mutex
	next    types.Handle
	tuned   []*types.Request
	untuned []types.Handle
}

func (f *fakeSubmitter) SubmitPreVerified(req *types.Request) (types.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	req.Handle = f.next
	f.tuned = append(f.tuned, req)
	return f.next, nil
}

func (f *fakeSubmitter) Untune(handle types.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.untuned = append(f.untuned, handle)
}

type fakeExpander struct{}

func (fakeExpander) Expand(id types.SignalId, typ types.SignalType) ([]types.Resource, int64, bool) {
	if id == 0 {
		return nil, 0, false
	}
	return []types.Resource{{Code: types.NewResCode(1, 1), Values: []int32{1}}}, types.IndefiniteDuration, true
}

type fakeCgroups struct{}

func (fakeCgroups) CGroupByName(name string) (types.CGroupConfig, bool) {
	if name == "focused" {
		return types.CGroupConfig{Name: "focused", ID: 1}, true
	}
	return types.CGroupConfig{}, false
}

func writeProcFixture(t *testing.T, root string, pid int, comm string, ttyNr int) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0o644))
	stat := fmt.Sprintf("%d (%s) S 1 1 1 %d 0 0 0", pid, comm, ttyNr)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(comm), 0o644))
}

func newTestClassifier(t *testing.T, procRoot string, submitter *fakeSubmitter) (*ContextualClassifier, *fakeSource) {
	src := &fakeSource{}
	c := New(src, Config{
		ProcRoot:  procRoot,
		Signals:   fakeExpander{},
		Submitter: submitter,
		CGroups:   fakeCgroups{},
	})
	return c, src
}

func TestClassifierHandleAppOpenSubmitsCgroupMoveAndSignal(t *testing.T) {
	root := t.TempDir()
	writeProcFixture(t, root, 4242, "firefox", 3)

	submitter := &fakeSubmitter{}
	c, _ := newTestClassifier(t, root, submitter)

	c.handleAppOpen(4242, 4242)

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	require.Len(t, submitter.tuned, 2, "expected a cgroup move and a signal-expanded tune")
	assert.Equal(t, types.ResCgroupMove, submitter.tuned[0].Resources[0].Code)
}

func TestClassifierHandleAppOpenSkipsDaemonWithoutTTY(t *testing.T) {
	root := t.TempDir()
	writeProcFixture(t, root, 555, "cron", 0)

	submitter := &fakeSubmitter{}
	c, _ := newTestClassifier(t, root, submitter)

	c.handleAppOpen(555, 555)

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	assert.Empty(t, submitter.tuned)
}

func TestClassifierHandleAppOpenUntunesPreviousFocused(t *testing.T) {
	root := t.TempDir()
	writeProcFixture(t, root, 1, "app1", 3)
	writeProcFixture(t, root, 2, "app2", 3)

	submitter := &fakeSubmitter{}
	c, _ := newTestClassifier(t, root, submitter)

	c.handleAppOpen(1, 1)
	c.handleAppOpen(2, 2)

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	assert.NotEmpty(t, submitter.untuned, "opening a second app must untune the first's handles")
}

func TestClassifierHandleAppCloseUntunesTrackedHandles(t *testing.T) {
	root := t.TempDir()
	writeProcFixture(t, root, 9, "app9", 3)

	submitter := &fakeSubmitter{}
	c, _ := newTestClassifier(t, root, submitter)
	c.handleAppOpen(9, 9)
	c.handleAppClose(9)

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	assert.NotEmpty(t, submitter.untuned)

	c.mu.Lock()
	_, stillTracked := c.tracked[9]
	c.mu.Unlock()
	assert.False(t, stillTracked)
}

func TestClassifierHandleAppOpenMovesResolvedThreadPid(t *testing.T) {
	root := t.TempDir()
	writeProcFixture(t, root, 100, "mainapp", 3)
	writeProcFixture(t, root, 200, "worker-thread", 3)

	apps := NewAppConfigStore()
	apps.Replace(map[string]AppConfig{
		"mainapp": {Threads: []AppThread{{Comm: "worker-thread", CGroupID: 9}}},
	})

	submitter := &fakeSubmitter{}
	src := &fakeSource{}
	c := New(src, Config{
		ProcRoot:  root,
		Signals:   fakeExpander{},
		Submitter: submitter,
		CGroups:   fakeCgroups{},
		AppConfig: apps,
	})

	c.handleAppOpen(100, 100)

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	require.Len(t, submitter.tuned, 3, "expected the focused move, the thread move, and the signal tune")
	threadMove := submitter.tuned[1]
	assert.Equal(t, types.ResCgroupMove, threadMove.Resources[0].Code)
	assert.Equal(t, []int32{9, 200}, threadMove.Resources[0].Values, "thread move must target the resolved pid, not the app's own pid")
}

func TestClassifierHandleAppOpenSkipsThreadResolvingToSelf(t *testing.T) {
	root := t.TempDir()
	writeProcFixture(t, root, 100, "mainapp", 3)

	apps := NewAppConfigStore()
	apps.Replace(map[string]AppConfig{
		"mainapp": {Threads: []AppThread{{Comm: "mainapp", CGroupID: 9}}},
	})

	submitter := &fakeSubmitter{}
	src := &fakeSource{}
	c := New(src, Config{
		ProcRoot:  root,
		Signals:   fakeExpander{},
		Submitter: submitter,
		CGroups:   fakeCgroups{},
		AppConfig: apps,
	})

	c.handleAppOpen(100, 100)

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	require.Len(t, submitter.tuned, 2, "thread resolving to the incoming pid itself must be skipped")
}

func TestClassifierHandleAppOpenSkipsThreadWithNoLiveMatch(t *testing.T) {
	root := t.TempDir()
	writeProcFixture(t, root, 100, "mainapp", 3)

	apps := NewAppConfigStore()
	apps.Replace(map[string]AppConfig{
		"mainapp": {Threads: []AppThread{{Comm: "never-started", CGroupID: 9}}},
	})

	submitter := &fakeSubmitter{}
	src := &fakeSource{}
	c := New(src, Config{
		ProcRoot:  root,
		Signals:   fakeExpander{},
		Submitter: submitter,
		CGroups:   fakeCgroups{},
		AppConfig: apps,
	})

	c.handleAppOpen(100, 100)

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	require.Len(t, submitter.tuned, 2, "a thread name with no live match must be skipped, not submitted")
}

type countingClassifier struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClassifier) Classify([]string) (types.WorkloadClass, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return types.ClassApp, nil
}

func TestClassifierCachesInferenceByComm(t *testing.T) {
	root := t.TempDir()
	writeProcFixture(t, root, 10, "repeatapp", 3)
	writeProcFixture(t, root, 11, "repeatapp", 3)

	submitter := &fakeSubmitter{}
	counter := &countingClassifier{}
	c := New(&fakeSource{}, Config{
		ProcRoot:       root,
		TextClassifier: counter,
		Signals:        fakeExpander{},
		Submitter:      submitter,
		CGroups:        fakeCgroups{},
	})

	c.handleAppOpen(10, 10)
	c.handleAppOpen(11, 11)

	counter.mu.Lock()
	defer counter.mu.Unlock()
	assert.Equal(t, 1, counter.calls, "second open of the same comm should hit the cache")
}

func TestClassifierRunReaderAndWorkerDrainQueue(t *testing.T) {
	root := t.TempDir()
	writeProcFixture(t, root, 77, "app77", 3)

	submitter := &fakeSubmitter{}
	src := &fakeSource{events: [][]types.ProcEvent{
		{{Pid: 77, Tgid: 77, Kind: types.ProcEventAppOpen}},
	}}
	c := New(src, Config{
		ProcRoot:  root,
		Signals:   fakeExpander{},
		Submitter: submitter,
		CGroups:   fakeCgroups{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.RunReader(ctx)
	go c.RunWorker(ctx)

	require.Eventually(t, func() bool {
		submitter.mu.Lock()
		defer submitter.mu.Unlock()
		return len(submitter.tuned) > 0
	}, time.Second, 5*time.Millisecond)
}
