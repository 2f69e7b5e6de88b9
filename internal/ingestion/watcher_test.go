package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/contexter-go/internal/config"
)

func TestRelevantChange(t *testing.T) {
	t.Parallel()

	root := writeRepo(t, map[string]string{
		"main.go":    "package main\n",
		".gitignore": "*.log\n",
	})
	filter := NewFilter(root, config.Default())

	tests := []struct {
		name   string
		event  fsnotify.Event
		rel    string
		wanted bool
	}{
		{"Write", fsnotify.Event{Name: filepath.Join(root, "main.go"), Op: fsnotify.Write}, "main.go", true},
		{"Remove", fsnotify.Event{Name: filepath.Join(root, "gone.go"), Op: fsnotify.Remove}, "gone.go", true},
		{"ChmodOnly", fsnotify.Event{Name: filepath.Join(root, "main.go"), Op: fsnotify.Chmod}, "", false},
		{"Ignored", fsnotify.Event{Name: filepath.Join(root, "debug.log"), Op: fsnotify.Create}, "", false},
		{"OwnOutput", fsnotify.Event{Name: filepath.Join(root, "contexter", "pack", "CONTEXTPACK.md"), Op: fsnotify.Write}, "", false},
		{"Guidance", fsnotify.Event{Name: filepath.Join(root, "PLAN.md"), Op: fsnotify.Write}, "", false},
		{"GitDir", fsnotify.Event{Name: filepath.Join(root, ".git", "index"), Op: fsnotify.Write}, "", false},
	}
	for _, tt := range tests {
		rel, ok := relevantChange(root, filter, tt.event)
		assert.Equal(t, tt.wanted, ok, tt.name)
		assert.Equal(t, tt.rel, rel, tt.name)
	}
}

func TestWatchRepo_RerunsOnChange(t *testing.T) {
	t.Parallel()

	root := writeRepo(t, map[string]string{
		"a.py": "x = 1\n",
	})
	cfg := config.Default()
	cfg.Watch.Debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan *Result, 8)
	done := make(chan error, 1)
	go func() {
		done <- WatchRepo(ctx, Options{Root: root, Config: cfg}, func(res *Result, err error) {
			if err == nil {
				runs <- res
			}
		})
	}()

	waitRun := func() *Result {
		t.Helper()
		select {
		case res := <-runs:
			return res
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for a run")
			return nil
		}
	}

	first := waitRun()
	assert.Equal(t, 1, first.Pack.Metrics.FilesScanned)

	// Give the watcher time to register before changing files.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "b.py"), []byte("import a\n"), 0o644))

	var last *Result
	require.Eventually(t, func() bool {
		select {
		case last = <-runs:
		default:
		}
		return last != nil && last.Pack.Metrics.FilesScanned == 2
	}, 10*time.Second, 20*time.Millisecond)

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(last.PackPath)))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "path=pkg/b.py"))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
