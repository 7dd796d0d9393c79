// Package registry implements the path-indexed callback registry that backs
// the monitoring coordinator. A Registry holds the registrations for exactly
// one event kind; the coordinator owns one Registry per kind.
//
// The Registry is a pure data structure: no I/O, no locking. The coordinator
// serializes all access, so mutation is in-place.
package registry

import (
	"path/filepath"
	"sort"
	"strings"
)

// Callback is an opaque unit of user code invoked with the path of a
// matching filesystem event.
type Callback func(path string)

// entry is the per-path record: the callbacks registered at that path, in
// insertion order, and whether the registration covers descendants.
type entry struct {
	callbacks []Callback
	recursive bool
}

// Registry maps normalized absolute paths to their registered callbacks.
type Registry struct {
	entries map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Add associates cb with path. Adding to a path that already has an entry
// appends cb to that entry (duplicates are kept); it never creates a second
// entry for the same path. The recursive flag records how the entry was
// created and makes the entry match descendant paths during lookup.
func (r *Registry) Add(path string, cb Callback, recursive bool) {
	path = filepath.Clean(path)

	e, ok := r.entries[path]
	if !ok {
		e = &entry{recursive: recursive}
		r.entries[path] = e
	}
	if recursive {
		e.recursive = true
	}
	e.callbacks = append(e.callbacks, cb)
}

// Remove drops the entry at path with all its callbacks. When recursive is
// true, entries registered at descendant paths are dropped as well; when
// false, descendant entries are left untouched. Removing an unknown path is
// a no-op.
func (r *Registry) Remove(path string, recursive bool) {
	path = filepath.Clean(path)

	delete(r.entries, path)

	if !recursive {
		return
	}
	for p := range r.entries {
		if isDescendant(path, p) {
			delete(r.entries, p)
		}
	}
}

// CallbacksFor returns the callbacks that would fire for an event reported
// exactly at path: the exact-match entry first (insertion order), then the
// callbacks of every ancestor directory holding a recursive entry, nearest
// ancestor first. The result is a fresh slice safe to hand off for dispatch;
// it is empty when nothing matches.
func (r *Registry) CallbacksFor(path string) []Callback {
	path = filepath.Clean(path)

	var out []Callback
	if e, ok := r.entries[path]; ok {
		out = append(out, e.callbacks...)
	}

	// Strict ancestors only, nearest first. filepath.Dir is a fixed point
	// at the root, which terminates the walk.
	for dir := path; ; {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		if e, ok := r.entries[dir]; ok && e.recursive {
			out = append(out, e.callbacks...)
		}
	}
	return out
}

// Recursive reports whether path has an entry and whether that entry was
// created recursively.
func (r *Registry) Recursive(path string) (recursive, ok bool) {
	e, found := r.entries[filepath.Clean(path)]
	if !found {
		return false, false
	}
	return e.recursive, true
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Paths returns the registered paths in sorted order.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.entries))
	for p := range r.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// isDescendant reports whether path lies strictly below dir, respecting
// path segment boundaries ("/a/bc" is not a descendant of "/a/b").
func isDescendant(dir, path string) bool {
	if dir == path {
		return false
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
