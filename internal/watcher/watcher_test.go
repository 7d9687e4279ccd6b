package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func newWatcher(t *testing.T, root string, delay time.Duration) *FileWatcher {
	t.Helper()
	fw, err := NewFileWatcher(root, delay, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Stop() })
	return fw
}

func TestAddRecursiveSkipsHiddenDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"ui/forms", ".git/objects", "_old", "vendor/x", "node_modules/y"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	fw := newWatcher(t, root, 10*time.Millisecond)
	require.NoError(t, fw.AddRecursive(root))
	assert.Equal(t, []string{
		root,
		filepath.Join(root, "ui"),
		filepath.Join(root, "ui", "forms"),
	}, fw.WatchList())
}

func TestValidatePath(t *testing.T) {
	root := t.TempDir()
	fw := newWatcher(t, root, 10*time.Millisecond)

	got, err := fw.validatePath("ui")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ui"), got)

	_, err = fw.validatePath("../elsewhere")
	assert.Error(t, err)
	assert.Error(t, fw.AddPath(filepath.Dir(root)))
}

func TestFilters(t *testing.T) {
	root := "/m"
	filters := DefaultFilters(root, "")
	accept := func(path string) bool {
		for _, f := range filters {
			if !f(path) {
				return false
			}
		}
		return true
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/m/ui/card.kiln", true},
		{"/m/ui/card.css", true},
		{"/m/ui/types.go", true},
		{"/m/ui/card_kiln.go", false},
		{"/m/ui/card_test.go", false},
		{"/m/ui/notes.md", false},
		{"/m/.git/card.kiln", false},
		{"/m/_old/card.kiln", false},
		{"/m/vendor/x/card.css", false},
		{"/elsewhere/card.kiln", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, accept(tt.path), tt.path)
	}

	assert.False(t, GoFilter(".gen.go")("/m/a.gen.go"))
	assert.True(t, GoFilter(".gen.go")("/m/a_kiln.go"))
}

func TestDebouncerCollapsesBursts(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "b.kiln"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "a.css"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "b.kiln"})

	select {
	case batch := <-d.output:
		require.Len(t, batch, 2)
		assert.Equal(t, []string{"a.css", "b.kiln"}, Paths(batch))
		assert.Equal(t, EventTypeModified, batch[1].Type, "the last event for a path wins")
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}
}

func TestDebouncerFlushEmpty(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	d.flush()
	assert.Empty(t, d.output)
}

func TestFileWatcherDeliversChanges(t *testing.T) {
	root := t.TempDir()
	ui := filepath.Join(root, "ui")
	require.NoError(t, os.MkdirAll(ui, 0o755))

	fw := newWatcher(t, root, 50*time.Millisecond)
	for _, f := range DefaultFilters(root, "") {
		fw.AddFilter(f)
	}

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{}, 1)
	fw.AddHandler(func(ctx context.Context, events []ChangeEvent) error {
		mu.Lock()
		got = append(got, Paths(events)...)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, fw.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(ui, "card.kiln"), []byte("package ui\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ui, "notes.md"), []byte("ignored"), 0o644))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, got, filepath.Join(ui, "card.kiln"))
	assert.NotContains(t, got, filepath.Join(ui, "notes.md"))
}

func TestFileWatcherWatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	fw := newWatcher(t, root, 10*time.Millisecond)
	require.NoError(t, fw.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	dir := filepath.Join(root, "pages")
	require.NoError(t, os.Mkdir(dir, 0o755))
	assert.Eventually(t, func() bool {
		for _, w := range fw.WatchList() {
			if w == dir {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}
