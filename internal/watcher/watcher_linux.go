//go:build linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxBackend implements Backend using Linux inotify.
type linuxBackend struct {
	logger  *slog.Logger
	watches map[string]int
	wdPaths map[int]string
	events  chan Event
	errors  chan error
	done    chan struct{}
	opts    Options
	wg      sync.WaitGroup
	fd      int
	mu      sync.RWMutex
}

// newLinuxBackend creates a new Linux-specific file watcher backend.
func newLinuxBackend(logger *slog.Logger, opts Options) (*linuxBackend, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inotify: %w", err)
	}

	return &linuxBackend{
		logger:  logger,
		opts:    opts,
		fd:      fd,
		watches: make(map[string]int),
		wdPaths: make(map[int]string),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a path to be monitored.
func (b *linuxBackend) Watch(path string) error {
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
func (b *linuxBackend) watchDir(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			b.logger.Warn("failed to access path", "path", p, "error", err)
			return nil // Continue walking
		}

		if b.opts.shouldIgnore(p) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Only watch directories.
		if !info.IsDir() {
			return nil
		}

		if err := b.addWatch(p); err != nil {
			b.logger.Error("failed to add watch", "path", p, "error", err)
			return nil // Continue walking
		}

		return nil
	})
}

// watchFile watches a single file by watching its parent directory.
func (b *linuxBackend) watchFile(path string) error {
	dir := filepath.Dir(path)
	return b.addWatch(dir)
}

// addWatch adds an inotify watch for a path.
func (b *linuxBackend) addWatch(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.watches[path]; exists {
		return nil
	}

	// IN_CREATE: file or directory created (new directories need watches too).
	// IN_CLOSE_WRITE: file closed after writing, the settled form of a modify.
	// IN_MOVED_TO / IN_MOVED_FROM: renames into and out of the directory.
	// IN_DELETE: entry deleted from within the watched directory.
	// IN_DELETE_SELF: the watched directory itself was deleted.
	mask := unix.IN_CREATE | unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO | unix.IN_MOVED_FROM | unix.IN_DELETE | unix.IN_DELETE_SELF

	wd, err := unix.InotifyAddWatch(b.fd, path, uint32(mask))
	if err != nil {
		return fmt.Errorf("inotify_add_watch failed: %w", err)
	}

	b.watches[path] = wd
	b.wdPaths[wd] = path
	b.logger.Debug("added watch", "path", path, "wd", wd)

	return nil
}

// removeWatch removes an inotify watch for a path.
func (b *linuxBackend) removeWatch(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wd, exists := b.watches[path]
	if !exists {
		return
	}

	// Ignore errors, the directory may already be gone.
	//nolint:gosec // G115: wd is always a small non-negative int from inotify
	_, _ = unix.InotifyRmWatch(b.fd, uint32(wd))

	delete(b.watches, path)
	delete(b.wdPaths, wd)
	b.logger.Debug("removed watch", "path", path, "wd", wd)
}

// Start begins watching for events.
func (b *linuxBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.readEvents(ctx)

	<-ctx.Done()
	return nil
}

// readEvents reads events from inotify.
func (b *linuxBackend) readEvents(ctx context.Context) {
	defer b.wg.Done()

	buf := make([]byte, unix.SizeofInotifyEvent*100)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
			// Wait for readability with a timeout so the loop can observe
			// shutdown; the fd is non-blocking.
			fds := []unix.PollFd{{Fd: int32(b.fd), Events: unix.POLLIN}}
			ready, err := unix.Poll(fds, 250)
			if err != nil {
				if err == unix.EINTR {
					continue
				}
				select {
				case b.errors <- fmt.Errorf("failed to poll inotify fd: %w", err):
				case <-b.done:
				}
				return
			}
			if ready == 0 {
				continue
			}

			n, err := unix.Read(b.fd, buf)
			if err != nil {
				if err == unix.EINTR || err == unix.EAGAIN {
					continue
				}
				select {
				case b.errors <- fmt.Errorf("failed to read inotify events: %w", err):
				case <-b.done:
				}
				return
			}

			if n < unix.SizeofInotifyEvent {
				continue
			}

			b.parseEvents(buf[:n])
		}
	}
}

// parseEvents parses raw inotify events.
func (b *linuxBackend) parseEvents(buf []byte) {
	offset := 0
	for offset < len(buf) {
		//nolint:gosec // G103: unsafe is required to decode the inotify wire format
		event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		offset += unix.SizeofInotifyEvent + int(event.Len)

		b.mu.RLock()
		dir, ok := b.wdPaths[int(event.Wd)]
		b.mu.RUnlock()

		if !ok {
			continue
		}

		name := ""
		if event.Len > 0 {
			nameBytes := buf[offset-int(event.Len) : offset]
			name = string(nameBytes[:clen(nameBytes)])
		}

		path := filepath.Join(dir, name)

		b.processEvent(path, event.Mask)
	}
}

// processEvent maps a single inotify event onto the backend's event kinds.
func (b *linuxBackend) processEvent(path string, mask uint32) {
	if b.opts.shouldIgnore(path) {
		return
	}

	if mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0 {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			// New directory: watch it before reporting, so nothing created
			// inside it slips through.
			if err := b.watchDir(path); err != nil {
				b.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
		}
		b.emitEvent(Event{Kind: EventCreated, Path: path})
		return
	}

	if mask&(unix.IN_DELETE|unix.IN_MOVED_FROM) != 0 {
		b.emitEvent(Event{Kind: EventRemoved, Path: path})
		return
	}

	if mask&unix.IN_DELETE_SELF != 0 {
		b.emitEvent(Event{Kind: EventRemoved, Path: path})
		// Clean up the watch since the directory no longer exists.
		b.removeWatch(path)
		return
	}

	if mask&unix.IN_CLOSE_WRITE != 0 {
		b.emitEvent(Event{Kind: EventModified, Path: path})
	}
}

// emitEvent sends an event to the events channel.
func (b *linuxBackend) emitEvent(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// Events returns the events channel.
func (b *linuxBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel.
func (b *linuxBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the watcher.
func (b *linuxBackend) Stop() error {
	close(b.done)

	// The reader notices done within one poll interval; only close the fd
	// once it is no longer polling it.
	b.wg.Wait()

	var closeErr error
	if b.fd >= 0 {
		closeErr = unix.Close(b.fd)
	}

	close(b.events)
	close(b.errors)

	return closeErr
}

// clen returns the length of a null-terminated byte slice.
func clen(n []byte) int {
	for i := 0; i < len(n); i++ {
		if n[i] == 0 {
			return i
		}
	}
	return len(n)
}

// newFallbackBackend is a stub that should never be called on Linux.
// It exists only to satisfy the compiler when watcher.go references it.
func newFallbackBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("fallback backend not available on Linux")
}
