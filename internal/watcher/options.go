package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// Options configures the file watcher behavior.
type Options struct {
	IgnorePatterns []string
	Debounce       time.Duration
	IgnoreHidden   bool

	matchers []glob.Glob
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.Debounce == 0 {
		o.Debounce = 100 * time.Millisecond
	}

	// Set default ignore patterns if none specified (nil, not just empty).
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.temp",
			"*.swp",
			"Thumbs.db",
		}
		// Also default to ignoring hidden files when no custom config provided.
		// If patterns were explicitly set (even to empty slice), respect user's IgnoreHidden choice.
		o.IgnoreHidden = true
	}
}

// compile builds the glob matchers for the ignore patterns.
func (o *Options) compile() error {
	o.matchers = make([]glob.Glob, 0, len(o.IgnorePatterns))
	for _, pattern := range o.IgnorePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		o.matchers = append(o.matchers, g)
	}
	return nil
}

// shouldIgnore checks if a path matches ignore patterns.
func (o *Options) shouldIgnore(path string) bool {
	// Check if hidden and we're ignoring hidden files.
	if o.IgnoreHidden {
		parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
		for _, part := range parts {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, g := range o.matchers {
		if g.Match(base) {
			return true
		}
	}

	return false
}
