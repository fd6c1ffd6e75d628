package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sambeau/tether/pkg/tether/logging"
)

func TestWatcherCallsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.yaml")
	if err := os.WriteFile(path, []byte("bindings: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 10)
	w, err := New(path, 20*time.Millisecond, logging.NewBufferedLogger(), func(p string) { changed <- p })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Keep writing until the watch is registered and a change arrives.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	var got string
wait:
	for {
		select {
		case got = <-changed:
			break wait
		case <-tick.C:
			if err := os.WriteFile(path, []byte("bindings: []\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for a change")
		}
	}

	if got != w.path {
		t.Errorf("onChange path = %q, want %q", got, w.path)
	}
	if w.Changes() == 0 {
		t.Error("Changes() = 0 after a change")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Run did not return after cancel")
	}
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.yaml")
	w, err := New(path, time.Millisecond, nil, func(string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: path, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: path, Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: path, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: path, Op: fsnotify.Remove}, false},
		{fsnotify.Event{Name: filepath.Join(dir, "other.yaml"), Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.event); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
}

func TestDebounceCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	calls := make(chan struct{}, 10)
	w, err := New(filepath.Join(dir, "m.yaml"), 30*time.Millisecond, nil, func(string) { calls <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for range 5 {
		w.schedule()
	}
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called")
	}
	select {
	case <-calls:
		t.Error("onChange called more than once for a burst of writes")
	case <-time.After(100 * time.Millisecond):
	}
	if w.Changes() != 1 {
		t.Errorf("Changes() = %d, want 1", w.Changes())
	}
}

func TestStopCancelsPendingChange(t *testing.T) {
	dir := t.TempDir()
	calls := make(chan struct{}, 10)
	w, err := New(filepath.Join(dir, "m.yaml"), 20*time.Millisecond, nil, func(string) { calls <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.schedule()
	w.stop()
	w.schedule()
	select {
	case <-calls:
		t.Error("onChange called after stop")
	case <-time.After(100 * time.Millisecond):
	}
	if w.Changes() != 0 {
		t.Errorf("Changes() = %d, want 0", w.Changes())
	}
}

func TestStopWaitsForRunningChange(t *testing.T) {
	dir := t.TempDir()
	started := make(chan struct{})
	release := make(chan struct{})
	w, err := New(filepath.Join(dir, "m.yaml"), time.Millisecond, nil, func(string) {
		close(started)
		<-release
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.schedule()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called")
	}

	stopped := make(chan struct{})
	go func() {
		w.stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("stop returned while onChange was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after onChange finished")
	}
}
