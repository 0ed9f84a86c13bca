// Package watcher hot-reloads CSV inputs. For every load_csv binding in
// a compiled program it observes the file's directory; when the file
// changes it re-parses the CSV and pushes the fresh table into the
// bound source. It never writes to streams or sinks.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sambeau/ripple/pkg/ripple/engine"
	"github.com/sambeau/ripple/pkg/ripple/ripple"
)

// Watcher monitors CSV files referenced by a program's sources and
// pushes reloaded tables through the embedding API.
type Watcher struct {
	watcher  *fsnotify.Watcher
	program  *ripple.Program
	bindings map[string][]engine.CSVBinding // absolute path -> bindings
	debounce time.Duration
	logger   engine.Logger

	// Rapid editor saves arrive as bursts; track the last change per
	// path so only the quiet edge triggers a reload.
	mu      sync.Mutex
	pending map[string]time.Time
}

// New creates a watcher for every load_csv binding in the program.
func New(program *ripple.Program, debounce time.Duration, logger engine.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = engine.DefaultLogger
	}

	w := &Watcher{
		watcher:  fsWatcher,
		program:  program,
		bindings: make(map[string][]engine.CSVBinding),
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]time.Time),
	}

	dirs := make(map[string]bool)
	for _, b := range program.CSVBindings() {
		abs, err := filepath.Abs(b.Path)
		if err != nil {
			continue
		}
		w.bindings[abs] = append(w.bindings[abs], b)
		dirs[filepath.Dir(abs)] = true
	}

	// Watch directories rather than files so replace-by-rename saves
	// keep working.
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}

	return w, nil
}

// Paths returns the absolute CSV paths under observation.
func (w *Watcher) Paths() []string {
	out := make([]string, 0, len(w.bindings))
	for path := range w.bindings {
		out = append(out, path)
	}
	return out
}

// Start runs the event loop until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.eventLoop(ctx)
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := w.bindings[abs]; !watched {
				continue
			}
			w.mu.Lock()
			w.pending[abs] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.LogLine("watch error:", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending reloads files whose last change is older than the
// debounce window.
func (w *Watcher) flushPending() {
	now := time.Now()

	var ready []string
	w.mu.Lock()
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.reload(path)
	}
}

func (w *Watcher) reload(path string) {
	for _, binding := range w.bindings[path] {
		table, err := engine.LoadCSV(path, binding.HasHeader)
		if err != nil {
			w.logger.LogLine("reload failed:", err.Message)
			continue
		}
		if pushErr := w.program.Push(binding.Source, table); pushErr != nil {
			w.logger.LogLine("push failed:", pushErr.Message)
			continue
		}
		w.logger.LogLine("reloaded", path, "into", binding.Source)
	}
}
