// Package watch re-runs processing when event files change on disk.
package watch

// watch.go — fsnotify watcher with per-path debouncing.

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a path must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Dir is watched recursively.
	Dir string
	// Accept reports whether a changed file is of interest. rel is relative
	// to Dir with forward slashes. Nil accepts every file.
	Accept func(rel string) bool
	// Handle is called with the absolute path of each settled file, one
	// call at a time.
	Handle   func(path string)
	Debounce time.Duration
	Logger   *zap.Logger
}

// Stats counts watcher activity.
type Stats struct {
	Events  int
	Handled int
	Errors  int
}

// Watcher watches a directory tree and hands settled changes to a handler.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	cfg         Config
	log         *zap.Logger
	debounceMap map[string]time.Time
	now         func() time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// New creates a watcher. Call Start to begin watching.
func New(cfg Config) (*Watcher, error) {
	if cfg.Handle == nil {
		return nil, fmt.Errorf("watch: nil handler")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		watcher:     fw,
		cfg:         cfg,
		log:         log,
		debounceMap: make(map[string]time.Time),
		now:         time.Now,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start adds Dir and its subdirectories to the watch list and starts the
// event loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.cfg.Dir); err != nil {
		return err
	}
	w.log.Info("watching", zap.String("dir", w.cfg.Dir), zap.Duration("debounce", w.cfg.Debounce))
	go w.run(ctx)
	return nil
}

// Stop stops the event loop, waits for it to finish, and closes the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.log.Warn("close watcher", zap.Error(err))
	}
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.cfg.Debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.processDebounced()
		}
	}
}

// handleEvent records a relevant event for debounced handling.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn("watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !w.accepts(event.Name) {
		return
	}
	w.log.Debug("change", zap.String("file", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	w.stats.Events++
	w.debounceMap[event.Name] = w.now()
	w.mu.Unlock()
}

func (w *Watcher) accepts(path string) bool {
	if w.cfg.Accept == nil {
		return true
	}
	rel, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil {
		return false
	}
	return w.cfg.Accept(filepath.ToSlash(rel))
}

// processDebounced hands every path that has been quiet for the debounce
// window to the handler, in path order.
func (w *Watcher) processDebounced() {
	w.mu.Lock()
	now := w.now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.cfg.Debounce {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	sort.Strings(settled)
	for _, path := range settled {
		if _, err := os.Stat(path); err != nil {
			// Removed again before it settled.
			continue
		}
		w.cfg.Handle(path)
		w.mu.Lock()
		w.stats.Handled++
		w.mu.Unlock()
	}
}
