package inbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) dispatched() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func writeScript(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestScan_InitialContentsNotDispatched(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "existing.json")

	rec := &recorder{}
	w := New(Config{Dir: dir, Logger: testLogger()}, rec.handle)

	w.scan(false)
	w.scan(true)

	if got := rec.dispatched(); len(got) != 0 {
		t.Fatalf("dispatched = %v, want none for pre-existing scripts", got)
	}
}

func TestScan_NewScriptDispatchedOnce(t *testing.T) {
	dir := t.TempDir()

	rec := &recorder{}
	w := New(Config{Dir: dir, Logger: testLogger()}, rec.handle)
	w.scan(false)

	path := writeScript(t, dir, "episode.json")
	w.scan(true)
	w.scan(true)

	got := rec.dispatched()
	if len(got) != 1 || got[0] != path {
		t.Fatalf("dispatched = %v, want exactly [%s]", got, path)
	}
}

func TestScan_ModifiedScriptDispatchedAgain(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "episode.yaml")

	rec := &recorder{}
	w := New(Config{Dir: dir, Logger: testLogger()}, rec.handle)
	w.scan(false)

	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	w.scan(true)

	if got := rec.dispatched(); len(got) != 1 || got[0] != path {
		t.Fatalf("dispatched = %v, want [%s] after modification", got, path)
	}
}

func TestScan_IgnoresNonScripts(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "notes.txt")
	writeScript(t, dir, "clip.mp4")
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := writeScript(t, dir, "real.yml")

	rec := &recorder{}
	w := New(Config{Dir: dir, Logger: testLogger()}, rec.handle)
	w.scan(true)

	if got := rec.dispatched(); len(got) != 1 || got[0] != path {
		t.Fatalf("dispatched = %v, want only [%s]", got, path)
	}
}

func TestScan_MissingDirectoryIsSilent(t *testing.T) {
	rec := &recorder{}
	w := New(Config{Dir: filepath.Join(t.TempDir(), "nope"), Logger: testLogger()}, rec.handle)

	w.scan(true)

	if got := rec.dispatched(); len(got) != 0 {
		t.Fatalf("dispatched = %v, want none", got)
	}
}

func TestWatch_DispatchesOnTick(t *testing.T) {
	dir := t.TempDir()

	dispatched := make(chan string, 1)
	w := New(Config{Dir: dir, Interval: 10 * time.Millisecond, Logger: testLogger()}, func(path string) {
		select {
		case dispatched <- path:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Watch(ctx)
	}()

	path := writeScript(t, dir, "episode.json")

	// Keep bumping the mtime so the script reads as fresh even if the
	// initial scan already recorded it.
	future := time.Now().Add(time.Minute)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-dispatched:
			if got != path {
				t.Errorf("dispatched %q, want %q", got, path)
			}
			cancel()
			<-done
			return
		case <-deadline:
			t.Fatal("script was never dispatched")
		case <-time.After(20 * time.Millisecond):
			future = future.Add(time.Minute)
			if err := os.Chtimes(path, future, future); err != nil {
				t.Fatalf("chtimes: %v", err)
			}
		}
	}
}
