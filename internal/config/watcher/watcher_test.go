package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestNew_Defaults(t *testing.T) {
	w := setupTestWatcher(t)
	if w.debounce != 100*time.Millisecond {
		t.Errorf("default debounce = %v, want 100ms", w.debounce)
	}

	w2 := setupTestWatcher(t, WithDebounce(20*time.Millisecond))
	if w2.debounce != 20*time.Millisecond {
		t.Errorf("debounce = %v, want 20ms", w2.debounce)
	}
}

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestWatcher_WatchUnwatch(t *testing.T) {
	dir := t.TempDir()
	w := setupTestWatcher(t)

	existing := filepath.Join(dir, "bined.toml")
	if err := os.WriteFile(existing, []byte("[logging]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(existing); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	// Not created yet; its directory exists.
	if err := w.Watch(filepath.Join(dir, "later.toml")); err != nil {
		t.Fatalf("Watch(missing file) error = %v", err)
	}
	if err := w.Watch(existing); err != nil {
		t.Fatalf("Watch() twice error = %v", err)
	}
	if got := len(w.WatchedFiles()); got != 2 {
		t.Errorf("WatchedFiles() = %d, want 2", got)
	}
	if w.dirs[dir] != 2 {
		t.Errorf("dir refcount = %d, want 2", w.dirs[dir])
	}

	if err := w.Unwatch(existing); err != nil {
		t.Fatalf("Unwatch() error = %v", err)
	}
	if got := len(w.WatchedFiles()); got != 1 {
		t.Errorf("WatchedFiles() after Unwatch = %d, want 1", got)
	}
}

func TestWatcher_WatchMissingDir(t *testing.T) {
	w := setupTestWatcher(t)
	err := w.Watch(filepath.Join(t.TempDir(), "nope", "bined.toml"))
	if err == nil {
		t.Fatal("Watch() in missing directory should fail")
	}
}

func TestWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bined.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := setupTestWatcher(t, WithDebounce(20*time.Millisecond))
	events := make(chan Event, 16)
	w.OnChange(func(ev Event) { events <- ev })
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	// Unrelated files in the same directory are filtered out.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("a = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, events)
	if ev.Path != path {
		t.Errorf("event path = %q, want %q", ev.Path, path)
	}
}

func TestWatcher_NoDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bined.yaml")

	w := setupTestWatcher(t, WithDebounce(0))
	events := make(chan Event, 16)
	w.OnChange(func(ev Event) { events <- ev })
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, events)
	if ev.Op != OpCreate && ev.Op != OpWrite {
		t.Errorf("event op = %v, want create or write", ev.Op)
	}
}

func TestWatcher_PanickingHandler(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bined.toml")

	w := setupTestWatcher(t, WithDebounce(0))
	events := make(chan Event, 16)
	w.OnChange(func(Event) { panic("boom") })
	w.OnChange(func(ev Event) { events <- ev })
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, events)
}

func TestWatcher_QueueCoalesce(t *testing.T) {
	tests := []struct {
		name  string
		first Operation
		next  Operation
		want  Operation
	}{
		{"create then write", OpCreate, OpWrite, OpCreate},
		{"write then write", OpWrite, OpWrite, OpWrite},
		{"write then remove", OpWrite, OpRemove, OpRemove},
		{"create then remove", OpCreate, OpRemove, OpRemove},
		{"remove then create", OpRemove, OpCreate, OpCreate},
		{"remove then rename", OpRemove, OpRename, OpRemove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Watcher{pendingFiles: make(map[string]pendingEvent)}
			t0 := time.Now()
			w.queueEvent(Event{Path: "/c.toml", Op: tt.first, Time: t0})
			w.queueEvent(Event{Path: "/c.toml", Op: tt.next, Time: t0.Add(time.Millisecond)})

			got := w.pendingFiles["/c.toml"]
			if got.Op != tt.want {
				t.Errorf("op = %v, want %v", got.Op, tt.want)
			}
			if !got.Time.Equal(t0.Add(time.Millisecond)) {
				t.Errorf("time not updated to latest event")
			}
		})
	}
}

func TestWatcher_ProcessPendingEvents(t *testing.T) {
	w := &Watcher{
		debounce:     50 * time.Millisecond,
		pendingFiles: make(map[string]pendingEvent),
	}
	var got []Event
	w.handlers = []Handler{func(ev Event) { got = append(got, ev) }}

	now := time.Now()
	w.pendingFiles["/old.toml"] = pendingEvent{Op: OpWrite, Time: now.Add(-time.Second)}
	w.pendingFiles["/fresh.toml"] = pendingEvent{Op: OpWrite, Time: now}

	w.processPendingEvents(now)

	if len(got) != 1 || got[0].Path != "/old.toml" {
		t.Fatalf("emitted %+v, want only /old.toml", got)
	}
	if _, ok := w.pendingFiles["/fresh.toml"]; !ok {
		t.Error("fresh event should still be pending")
	}
}

func TestWatcher_Close(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Watch(filepath.Join(t.TempDir(), "x.toml")); !errors.Is(err, ErrClosed) {
		t.Errorf("Watch after Close error = %v, want ErrClosed", err)
	}
}
