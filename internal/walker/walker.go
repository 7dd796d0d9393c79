// Package walker provides directory-tree enumeration used to seed recursive
// registrations in the monitor.
package walker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
)

// Walker traverses the filesystem and discovers directories.
type Walker struct {
	logger *slog.Logger
}

// New creates a new walker.
func New(logger *slog.Logger) *Walker {
	return &Walker{
		logger: logger,
	}
}

// DescendantDirs returns the directories that currently exist below root,
// root itself excluded. Unreadable subtrees are skipped rather than failing
// the whole walk. Returns an error only if root itself cannot be read or the
// context is canceled.
func (w *Walker) DescendantDirs(ctx context.Context, root string) ([]string, error) {
	root = filepath.Clean(root)

	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		// Check context cancellation.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("walk error, skipping", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() || path == root {
			return nil
		}

		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}
