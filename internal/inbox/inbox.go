// Package inbox watches a drop directory for new scripts and hands them to
// a callback. Polling, not inotify: the inbox is expected to sit on network
// mounts where filesystem events are unreliable.
package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const defaultInterval = 5 * time.Second

// Handler receives the path of each newly discovered script.
type Handler func(path string)

type Watcher struct {
	dir      string
	interval time.Duration
	logger   *slog.Logger
	handler  Handler

	mu   sync.Mutex
	seen map[string]time.Time
}

type Config struct {
	Dir      string
	Interval time.Duration
	Logger   *slog.Logger
}

func New(cfg Config, handler Handler) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Watcher{
		dir:      cfg.Dir,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		handler:  handler,
		seen:     make(map[string]time.Time),
	}
}

// Watch polls the inbox until the context is cancelled. The initial
// directory contents are recorded but not dispatched, so a restart does not
// replay scripts that were already processed.
func (w *Watcher) Watch(ctx context.Context) error {
	w.scan(false)
	w.logger.Info("watching inbox", "dir", w.dir, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.scan(true)
		}
	}
}

func (w *Watcher) scan(dispatch bool) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("failed to read inbox", "dir", w.dir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !isScript(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(w.dir, entry.Name())

		w.mu.Lock()
		prev, known := w.seen[entry.Name()]
		fresh := !known || info.ModTime().After(prev)
		if fresh {
			w.seen[entry.Name()] = info.ModTime()
		}
		w.mu.Unlock()

		if fresh && dispatch {
			w.logger.Info("new script in inbox", "path", path)
			w.handler(path)
		}
	}
}

func isScript(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
