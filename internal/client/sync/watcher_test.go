package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSignal(t *testing.T, w *Watcher, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-w.Changed():
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatcherCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, "a.txt"),
			[]byte(strings.Repeat("x", i+1)), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.True(t, waitSignal(t, w, 2*time.Second), "burst must produce a signal")

	// the burst is over; no further signal should arrive
	assert.False(t, waitSignal(t, w, 300*time.Millisecond), "burst must coalesce into one signal")
}

func TestWatcherFilteredPathsProduceNoSignal(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 50*time.Millisecond)
	w.FilterPaths(func(path string) bool { return true })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	assert.False(t, waitSignal(t, w, 500*time.Millisecond))
}
