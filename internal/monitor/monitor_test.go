package monitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwatch/pathwatch-server/internal/errors"
	"github.com/pathwatch/pathwatch-server/internal/walker"
	"github.com/pathwatch/pathwatch-server/internal/watcher"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m, err := New(testLogger(), walker.New(testLogger()), 4)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m
}

// failingEnumerator simulates an unreadable tree.
type failingEnumerator struct{ err error }

func (f *failingEnumerator) DescendantDirs(context.Context, string) ([]string, error) {
	return nil, f.err
}

func TestNew_RejectsInvalidConcurrency(t *testing.T) {
	for _, n := range []int{0, -1, -7} {
		m, err := New(testLogger(), walker.New(testLogger()), n)
		require.Error(t, err, "concurrency=%d", n)
		assert.Nil(t, m)
		assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
		assert.Contains(t, err.Error(), "at least 1")
	}
}

func TestNew_AcceptsValidConcurrency(t *testing.T) {
	m, err := New(testLogger(), walker.New(testLogger()), 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	m.Stop()
}

func TestMonitor_RegisterLookupUnregister(t *testing.T) {
	m := newTestMonitor(t)
	path := filepath.Join(t.TempDir(), "file.txt")

	err := m.RegisterCallback(context.Background(), watcher.EventModified, false, path, func(string) {})
	require.NoError(t, err)

	assert.Len(t, m.CallbacksFor(watcher.EventModified, path), 1)

	m.UnRegisterCallback(watcher.EventModified, false, path)
	assert.Empty(t, m.CallbacksFor(watcher.EventModified, path))
}

func TestMonitor_EventKindsIndependent(t *testing.T) {
	m := newTestMonitor(t)
	path := "/watch/file.txt"

	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, false, path, func(string) {}))

	assert.Len(t, m.CallbacksFor(watcher.EventCreated, path), 1)
	assert.Empty(t, m.CallbacksFor(watcher.EventModified, path))
	assert.Empty(t, m.CallbacksFor(watcher.EventRemoved, path))
}

func TestMonitor_RecursiveRegistrationSeedsDescendants(t *testing.T) {
	m := newTestMonitor(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))

	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, true, root, func(string) {}))

	assert.Len(t, m.CallbacksFor(watcher.EventCreated, root), 1)
	assert.Len(t, m.CallbacksFor(watcher.EventCreated, filepath.Join(root, "a")), 1)
	assert.Len(t, m.CallbacksFor(watcher.EventCreated, filepath.Join(root, "a", "b")), 1)
}

func TestMonitor_SnapshotAtRegistration(t *testing.T) {
	m := newTestMonitor(t)

	root := t.TempDir()
	l2 := filepath.Join(root, "L1", "L2")
	require.NoError(t, os.MkdirAll(l2, 0o755))

	// No re-registration after this point.
	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, true, root, func(string) {}))

	assert.Len(t, m.CallbacksFor(watcher.EventCreated, l2), 1)
}

func TestMonitor_RecursiveCoversLaterPathsViaAncestors(t *testing.T) {
	m := newTestMonitor(t)
	root := t.TempDir()

	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, true, root, func(string) {}))

	// A path that did not exist at registration time still matches through
	// the recursive root entry.
	assert.Len(t, m.CallbacksFor(watcher.EventCreated, filepath.Join(root, "later", "deep.txt")), 1)
}

func TestMonitor_NoEntrySeededAtFilePaths(t *testing.T) {
	m := newTestMonitor(t)

	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, true, root, func(string) {}))

	// The file matches once, through the recursive root entry. A seeded
	// entry at the file itself would make it match twice.
	assert.Len(t, m.CallbacksFor(watcher.EventCreated, file), 1)
}

func TestMonitor_RecursiveOnFileDoesNotPropagate(t *testing.T) {
	m := newTestMonitor(t)

	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	sibling := filepath.Join(root, "g.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(sibling, []byte("y"), 0o644))

	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, true, file, func(string) {}))

	assert.Len(t, m.CallbacksFor(watcher.EventCreated, file), 1)
	assert.Empty(t, m.CallbacksFor(watcher.EventCreated, root))
	assert.Empty(t, m.CallbacksFor(watcher.EventCreated, sibling))
}

func TestMonitor_RecursiveRemovalMirrorsRegistration(t *testing.T) {
	m := newTestMonitor(t)

	root := t.TempDir()
	sub := filepath.Join(root, "a")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "b"), 0o755))

	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, true, root, func(string) {}))
	m.UnRegisterCallback(watcher.EventCreated, true, root)

	assert.Empty(t, m.CallbacksFor(watcher.EventCreated, root))
	assert.Empty(t, m.CallbacksFor(watcher.EventCreated, sub))
	assert.Empty(t, m.CallbacksFor(watcher.EventCreated, filepath.Join(sub, "b")))
}

func TestMonitor_NonRecursiveRemovalKeepsDescendants(t *testing.T) {
	m := newTestMonitor(t)

	root := t.TempDir()
	sub := filepath.Join(root, "a")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, true, root, func(string) {}))
	m.UnRegisterCallback(watcher.EventCreated, false, root)

	// The seeded entry at the descendant survives; only the root entry is
	// gone, so unseeded paths under root no longer match.
	assert.Empty(t, m.CallbacksFor(watcher.EventCreated, root))
	assert.Len(t, m.CallbacksFor(watcher.EventCreated, sub), 1)
	assert.Empty(t, m.CallbacksFor(watcher.EventCreated, filepath.Join(root, "unseeded.txt")))
}

func TestMonitor_UnrelatedPathsUnaffected(t *testing.T) {
	m := newTestMonitor(t)

	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, false, "/watch/one", func(string) {}))
	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, false, "/elsewhere/two", func(string) {}))

	m.UnRegisterCallback(watcher.EventCreated, true, "/watch/one")

	assert.Empty(t, m.CallbacksFor(watcher.EventCreated, "/watch/one"))
	assert.Len(t, m.CallbacksFor(watcher.EventCreated, "/elsewhere/two"), 1)
}

func TestMonitor_EventDispatchesUnionWithEventPath(t *testing.T) {
	m := newTestMonitor(t)

	root := t.TempDir()
	file := filepath.Join(root, "sub", "file.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))

	got := make(chan string, 2)
	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, true, root, func(p string) {
		got <- "recursive:" + p
	}))
	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, false, file, func(p string) {
		got <- "exact:" + p
	}))

	m.EventAtPath(watcher.EventCreated, file)

	received := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case v := <-got:
			received[v] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for callbacks")
		}
	}
	assert.True(t, received["recursive:"+file])
	assert.True(t, received["exact:"+file])
}

func TestMonitor_EventWithoutRegistrationsIsNoOp(t *testing.T) {
	m := newTestMonitor(t)

	m.EventAtPath(watcher.EventRemoved, "/nothing/registered/here")

	assert.Zero(t, m.CallbackFailures())
}

func TestMonitor_PanickingCallbackDoesNotBlockOthers(t *testing.T) {
	m := newTestMonitor(t)
	path := "/watch/file.txt"

	ran := make(chan struct{}, 1)
	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventModified, false, path, func(string) {
		panic("user code misbehaving")
	}))
	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventModified, false, path, func(string) {
		ran <- struct{}{}
	}))

	m.EventAtPath(watcher.EventModified, path)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("second callback never ran")
	}

	require.Eventually(t, func() bool {
		return m.CallbackFailures() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMonitor_EnumeratorErrorPropagates(t *testing.T) {
	enum := &failingEnumerator{err: os.ErrPermission}
	m, err := New(testLogger(), enum, 1)
	require.NoError(t, err)
	defer m.Stop()

	err = m.RegisterCallback(context.Background(), watcher.EventCreated, true, t.TempDir(), func(string) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrPermission))
}

func TestMonitor_UntrackedKindRegistersLazily(t *testing.T) {
	m := newTestMonitor(t)
	kind := watcher.EventKind(7)

	require.NoError(t, m.RegisterCallback(context.Background(), kind, false, "/watch/file", func(string) {}))

	assert.Len(t, m.CallbacksFor(kind, "/watch/file"), 1)
	assert.Empty(t, m.CallbacksFor(watcher.EventCreated, "/watch/file"))
}

func TestMonitor_RunConsumesWatchSource(t *testing.T) {
	m := newTestMonitor(t)
	path := "/watch/file.txt"

	got := make(chan string, 1)
	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, false, path, func(p string) {
		got <- p
	}))

	events := make(chan watcher.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- m.Run(ctx, events) }()

	events <- watcher.Event{Kind: watcher.EventCreated, Path: path}

	select {
	case p := <-got:
		assert.Equal(t, path, p)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dispatched callback")
	}

	// Closing the source ends the loop cleanly.
	close(events)
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after source closed")
	}
}

func TestMonitor_RunStopsOnContextCancel(t *testing.T) {
	m := newTestMonitor(t)

	events := make(chan watcher.Event)
	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan error, 1)
	go func() { runDone <- m.Run(ctx, events) }()

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMonitor_MutationVisibleAfterAck(t *testing.T) {
	m := newTestMonitor(t)
	path := "/watch/file.txt"

	require.NoError(t, m.RegisterCallback(context.Background(), watcher.EventCreated, false, path, func(string) {}))

	cbs := m.CallbacksFor(watcher.EventCreated, path)
	assert.Len(t, cbs, 1)
}
