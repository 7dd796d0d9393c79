// Package dispatcher executes matched callbacks asynchronously under a
// bounded concurrency budget, isolating the monitor from slow or panicking
// user code.
package dispatcher

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pathwatch/pathwatch-server/internal/errors"
	"github.com/pathwatch/pathwatch-server/internal/registry"
)

// Dispatcher runs callbacks on up to a fixed number of concurrent slots.
// Submissions beyond the budget queue inside the dispatcher; the submitting
// caller never waits for a slot.
//
// Callbacks are expected to be well behaved: one that never returns occupies
// its slot indefinitely. No timeout is imposed.
type Dispatcher struct {
	logger   *slog.Logger
	sem      chan struct{}
	wg       sync.WaitGroup
	failures atomic.Uint64

	mu      sync.Mutex // guards stopped and pairs it with wg.Add
	stopped bool
}

// New creates a dispatcher with the given concurrency budget.
func New(logger *slog.Logger, workers int) (*Dispatcher, error) {
	if workers < 1 {
		return nil, errors.InvalidConfigurationf("callback concurrency must be at least 1, got %d", workers)
	}

	return &Dispatcher{
		logger: logger,
		sem:    make(chan struct{}, workers),
	}, nil
}

// Submit enqueues cb to be invoked with path and returns immediately. At
// most the configured number of callbacks run concurrently; the rest wait
// for a free slot inside the dispatcher. Submissions after Stop are dropped.
func (d *Dispatcher) Submit(cb registry.Callback, path string) {
	// The stopped check and wg.Add must be one atomic step, or a racing
	// Stop could return with this submission still starting.
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.logger.Warn("dispatcher stopped, dropping callback", "path", path)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		d.invoke(cb, path)
	}()
}

// invoke runs a single callback, containing any panic it raises. A panic is
// reported as a callback failure and never reaches the monitor or other
// in-flight callbacks.
func (d *Dispatcher) invoke(cb registry.Callback, path string) {
	defer func() {
		if r := recover(); r != nil {
			d.failures.Add(1)
			err := errors.CallbackFailuref("callback panicked: %v", r)
			d.logger.Error("callback execution failed",
				"path", path,
				"error", err,
			)
		}
	}()

	cb(path)
}

// Failures returns the number of callbacks that panicked during execution.
func (d *Dispatcher) Failures() uint64 {
	return d.failures.Load()
}

// Stop stops accepting new work and waits for queued and in-flight
// callbacks to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	alreadyStopped := d.stopped
	d.stopped = true
	d.mu.Unlock()

	if alreadyStopped {
		return
	}
	d.wg.Wait()
}
