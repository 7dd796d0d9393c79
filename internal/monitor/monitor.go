// Package monitor implements the monitoring coordinator: it owns one
// callback registry per event kind, serializes registry mutations, resolves
// incoming filesystem events to the callbacks that must fire, and hands them
// to a bounded dispatcher so user code never blocks event intake.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pathwatch/pathwatch-server/internal/dispatcher"
	"github.com/pathwatch/pathwatch-server/internal/errors"
	"github.com/pathwatch/pathwatch-server/internal/registry"
	"github.com/pathwatch/pathwatch-server/internal/watcher"
)

// Enumerator produces the directories that currently exist below a root.
// It is consulted once per recursive registration to seed entries for
// descendants present at registration time.
type Enumerator interface {
	DescendantDirs(ctx context.Context, root string) ([]string, error)
}

// Monitor is the stateful coordinator between callers registering interest
// in filesystem events and the watch source producing them.
//
// All registries hang off a single RWMutex: mutations take the write lock
// and are linearizable; event resolution takes the read lock and snapshots
// the matching callbacks before dispatching, so no lookup ever observes a
// half-applied mutation and no callback ever runs under the lock.
type Monitor struct {
	logger     *slog.Logger
	enum       Enumerator
	dispatcher *dispatcher.Dispatcher

	mu         sync.RWMutex
	registries map[watcher.EventKind]*registry.Registry
}

// New creates a monitor with the given callback concurrency budget.
// Budgets below 1 are rejected with an invalid configuration error.
func New(logger *slog.Logger, enum Enumerator, concurrency int) (*Monitor, error) {
	d, err := dispatcher.New(logger, concurrency)
	if err != nil {
		return nil, err
	}

	registries := make(map[watcher.EventKind]*registry.Registry, len(watcher.Kinds()))
	for _, kind := range watcher.Kinds() {
		registries[kind] = registry.New()
	}

	return &Monitor{
		logger:     logger,
		enum:       enum,
		dispatcher: d,
		registries: registries,
	}, nil
}

// RegisterCallback associates cb with path for the given event kind. When
// recursive is true and path is an existing directory, entries are also
// seeded for every directory currently below it (a snapshot at registration
// time); directories created later are matched dynamically through the
// ancestor chain at lookup time. Recursive registration at a file path has
// no effect beyond the entry's flag.
func (m *Monitor) RegisterCallback(ctx context.Context, kind watcher.EventKind, recursive bool, path string, cb registry.Callback) error {
	path = filepath.Clean(path)

	// Enumerate outside the lock; only the registry mutation is serialized.
	var seed []string
	if recursive {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			dirs, err := m.enum.DescendantDirs(ctx, path)
			if err != nil {
				return errors.Wrap(err, "enumerate descendants for recursive registration")
			}
			seed = dirs
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	reg := m.registryFor(kind)
	reg.Add(path, cb, recursive)
	for _, dir := range seed {
		reg.Add(dir, cb, true)
	}

	m.logger.Debug("registered callback",
		"kind", kind.String(),
		"path", path,
		"recursive", recursive,
		"seeded", len(seed),
	)
	return nil
}

// UnRegisterCallback removes all callbacks for path under the given event
// kind. When recursive is true, entries registered at descendant paths are
// removed as well. Unknown paths are a silent no-op.
func (m *Monitor) UnRegisterCallback(kind watcher.EventKind, recursive bool, path string) {
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.registryFor(kind).Remove(path, recursive)

	m.logger.Debug("unregistered callbacks",
		"kind", kind.String(),
		"path", path,
		"recursive", recursive,
	)
}

// EventAtPath resolves the callbacks registered for an event of the given
// kind at path and dispatches each of them with path as argument. An event
// with no matching registrations is a silent no-op.
func (m *Monitor) EventAtPath(kind watcher.EventKind, path string) {
	path = filepath.Clean(path)

	m.mu.RLock()
	var cbs []registry.Callback
	if reg, ok := m.registries[kind]; ok {
		cbs = reg.CallbacksFor(path)
	}
	m.mu.RUnlock()

	if len(cbs) == 0 {
		return
	}

	m.logger.Debug("dispatching event",
		"kind", kind.String(),
		"path", path,
		"callbacks", len(cbs),
	)
	for _, cb := range cbs {
		m.dispatcher.Submit(cb, path)
	}
}

// CallbacksFor returns the callbacks that would fire for an event of the
// given kind at path, without dispatching anything.
func (m *Monitor) CallbacksFor(kind watcher.EventKind, path string) []registry.Callback {
	path = filepath.Clean(path)

	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.registries[kind]
	if !ok {
		return nil
	}
	return reg.CallbacksFor(path)
}

// Run consumes the watch source stream and resolves each notification until
// the context is canceled or the channel closes.
func (m *Monitor) Run(ctx context.Context, events <-chan watcher.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			m.EventAtPath(event.Kind, event.Path)
		}
	}
}

// CallbackFailures returns the number of dispatched callbacks that panicked.
func (m *Monitor) CallbackFailures() uint64 {
	return m.dispatcher.Failures()
}

// Stop drains in-flight callbacks and shuts the dispatcher down.
func (m *Monitor) Stop() {
	m.dispatcher.Stop()
}

// registryFor returns the registry for kind, creating one on first use for
// kinds beyond the default set. Callers must hold the write lock.
func (m *Monitor) registryFor(kind watcher.EventKind) *registry.Registry {
	reg, ok := m.registries[kind]
	if !ok {
		reg = registry.New()
		m.registries[kind] = reg
	}
	return reg
}
