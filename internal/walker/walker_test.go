package walker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalker_DescendantDirs(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	w := New(logger)

	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "c"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a", "file.txt"), []byte("x"), 0o644))

	dirs, err := w.DescendantDirs(context.Background(), tmpDir)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(tmpDir, "a"),
		filepath.Join(tmpDir, "a", "b"),
		filepath.Join(tmpDir, "c"),
	}, dirs)
}

func TestWalker_RootExcluded(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	w := New(logger)

	tmpDir := t.TempDir()

	dirs, err := w.DescendantDirs(context.Background(), tmpDir)
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestWalker_MissingRoot(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	w := New(logger)

	_, err := w.DescendantDirs(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestWalker_CanceledContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	w := New(logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.DescendantDirs(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}
