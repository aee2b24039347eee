package source

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchLocalFiresAfterChange(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int32
	w, err := WatchLocal([]string{dir}, func() {
		fired.Add(1)
	})
	require.NoError(t, err)
	defer w.Close()

	// Shorten the debounce so the test does not sit for five seconds.
	w.mu.Lock()
	w.debounce = 50 * time.Millisecond
	w.mu.Unlock()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.jpg"), []byte("bytes"), 0644))

	assert.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 5*time.Second, 25*time.Millisecond)
}

func TestWatchLocalSkipsMissingDirectories(t *testing.T) {
	w, err := WatchLocal([]string{filepath.Join(t.TempDir(), "gone")}, func() {})
	require.NoError(t, err, "an unwatchable directory is a warning, not a failure")
	assert.NoError(t, w.Close())
}
