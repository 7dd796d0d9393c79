//go:build !linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fallbackBackend implements Backend using fsnotify with debouncing.
type fallbackBackend struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	pending map[string]*pendingEvent // path -> pending event info
	mu      sync.Mutex               // protects pending map

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// pendingEvent tracks a path whose create/write burst has not settled yet.
// The kind sticks to the first observation: a create followed by writes is
// still a create.
type pendingEvent struct {
	kind  EventKind
	timer *time.Timer
}

// newFallbackBackend creates a fallback backend using fsnotify.
func newFallbackBackend(logger *slog.Logger, opts Options) (*fallbackBackend, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &fallbackBackend{
		logger:  logger,
		opts:    opts,
		watcher: watcher,
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a path to be monitored.
func (b *fallbackBackend) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return b.watchDir(path)
	}
	return b.watchFile(path)
}

// watchDir recursively watches a directory.
func (b *fallbackBackend) watchDir(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			b.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}

		if b.opts.shouldIgnore(p) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		if err := b.watcher.Add(p); err != nil {
			b.logger.Error("failed to add watch", "path", p, "error", err)
			return nil
		}

		b.logger.Debug("added watch", "path", p)
		return nil
	})
}

// watchFile watches a single file by watching its parent directory.
func (b *fallbackBackend) watchFile(path string) error {
	dir := filepath.Dir(path)
	return b.watcher.Add(dir)
}

// Start begins watching for events.
func (b *fallbackBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.processEvents(ctx)

	<-ctx.Done()
	return nil
}

// processEvents processes fsnotify events.
func (b *fallbackBackend) processEvents(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleFsnotifyEvent(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.emitError(err)
		}
	}
}

// handleFsnotifyEvent handles an fsnotify event with debouncing.
func (b *fallbackBackend) handleFsnotifyEvent(event fsnotify.Event) {
	path := event.Name

	if b.opts.shouldIgnore(path) {
		return
	}

	// Directory creation: start watching it and report it right away, so
	// activity inside the new directory is not missed.
	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if err := b.watchDir(path); err != nil {
				b.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			b.emitEvent(Event{Kind: EventCreated, Path: path})
			return
		}
	}

	// Deletion and rename-away are immediate.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		b.cancelPending(path)
		b.emitEvent(Event{Kind: EventRemoved, Path: path})
		return
	}

	// Create/write bursts on files are debounced.
	if event.Op&fsnotify.Create != 0 {
		b.startSettling(path, EventCreated)
		return
	}
	if event.Op&fsnotify.Write != 0 {
		b.startSettling(path, EventModified)
	}
}

// startSettling begins or extends the debounce window for a path.
func (b *fallbackBackend) startSettling(path string, kind EventKind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pending, exists := b.pending[path]; exists {
		// Keep the original kind: writes right after a create are still
		// part of the create.
		pending.timer.Stop()
		pending.timer = time.AfterFunc(b.opts.Debounce, func() {
			b.settle(path)
		})
		return
	}

	pending := &pendingEvent{kind: kind}
	pending.timer = time.AfterFunc(b.opts.Debounce, func() {
		b.settle(path)
	})
	b.pending[path] = pending
}

// settle emits the pending event for a path once its debounce window ends.
func (b *fallbackBackend) settle(path string) {
	b.mu.Lock()
	pending, exists := b.pending[path]
	if !exists {
		b.mu.Unlock()
		return
	}
	delete(b.pending, path)
	b.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		// Path vanished during the debounce window.
		b.emitEvent(Event{Kind: EventRemoved, Path: path})
		return
	}

	b.emitEvent(Event{Kind: pending.kind, Path: path})
}

// cancelPending cancels a pending event.
func (b *fallbackBackend) cancelPending(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pending, exists := b.pending[path]; exists {
		pending.timer.Stop()
		delete(b.pending, path)
	}
}

// emitEvent sends an event to the events channel.
func (b *fallbackBackend) emitEvent(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// emitError forwards a backend error without blocking shutdown: if the
// errors buffer is full and nobody is draining it, a stalled send here
// would wedge processEvents.
func (b *fallbackBackend) emitError(err error) {
	select {
	case b.errors <- err:
	case <-b.done:
	}
}

// Events returns the events channel.
func (b *fallbackBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel.
func (b *fallbackBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the watcher.
func (b *fallbackBackend) Stop() error {
	close(b.done)

	// Cancel all pending timers.
	b.mu.Lock()
	for _, pending := range b.pending {
		pending.timer.Stop()
	}
	clear(b.pending)
	b.mu.Unlock()

	b.watcher.Close()

	b.wg.Wait()

	close(b.events)
	close(b.errors)

	return nil
}

// newLinuxBackend is a stub that should never be called on non-Linux platforms.
// It exists only to satisfy the compiler when watcher.go references it.
func newLinuxBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("Linux backend not available on this platform")
}
