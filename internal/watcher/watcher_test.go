package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_EmitsSettledPDFs(t *testing.T) {
	dir := t.TempDir()

	w, err := New(50 * time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	paths, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)
		target := filepath.Join(dir, "Report.PDF")
		os.WriteFile(target, []byte("%PDF-1.4 part one"), 0o644)
		os.WriteFile(target, []byte("%PDF-1.4 part two"), 0o644)
	}()

	select {
	case path := <-paths:
		assert.Equal(t, "Report.PDF", filepath.Base(path))
	case <-ctx.Done():
		t.Fatal("timeout waiting for pdf")
	}

	// the repeated writes were collapsed
	select {
	case path := <-paths:
		t.Fatalf("unexpected second event for %s", path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := New(0)
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, defaultSettle, w.settle)

	_, err = w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF("/tmp/a.pdf"))
	assert.True(t, isPDF("B.PDF"))
	assert.False(t, isPDF("notes.txt"))
	assert.False(t, isPDF("pdf"))
}
