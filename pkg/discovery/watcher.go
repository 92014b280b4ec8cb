package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// WatchOptions configures a Watcher's debouncing.
type WatchOptions struct {
	// DebounceMs groups rapid successive events for one file into a
	// single reload, fired this many milliseconds after the last event.
	DebounceMs int
}

// DefaultWatchOptions returns the same 200ms debounce window this
// codebase's file watcher used for symbol re-indexing.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{DebounceMs: 200}
}

// OnChange is invoked once per debounced change to path — either an
// edit/create (op != ChangeRemove) or a removal.
type ChangeOp int

const (
	ChangeWrite ChangeOp = iota
	ChangeRemove
)

type OnChange func(path string, op ChangeOp)

// Watcher watches a package root for source file changes and invokes a
// callback once debouncing settles, so a caller (typically cmd/apilens's
// watch command) can re-run the extraction pipeline once per settled
// change instead of once per raw filesystem event.
type Watcher struct {
	watcher  *fsnotify.Watcher
	opts     WatchOptions
	include  Options
	root     string
	logger   *slog.Logger
	onChange OnChange

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
}

// NewWatcher creates a Watcher. include filters which files trigger
// onChange, using the same doublestar patterns Scanner uses for the
// initial discovery pass.
func NewWatcher(include Options, opts WatchOptions, logger *slog.Logger, onChange OnChange) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("discovery: create watcher: %w", err)
	}
	if opts.DebounceMs == 0 {
		opts.DebounceMs = 200
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		watcher:        fw,
		opts:           opts,
		include:        include,
		logger:         logger,
		onChange:       onChange,
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start begins watching root and every subdirectory not excluded by
// w.include, in a background goroutine.
func (w *Watcher) Start(root string) error {
	w.root = root
	if err := w.watcher.Add(root); err != nil {
		return fmt.Errorf("discovery: watch %s: %w", root, err)
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if w.shouldIgnoreDir(root, path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("discovery: failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("discovery: setup watches: %w", err)
	}

	w.logger.Info("discovery watcher started", "root", root)
	go w.eventLoop()
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopChan)

	w.debounceMu.Lock()
	for _, t := range w.debounceTimers {
		t.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
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
			w.logger.Error("discovery watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.matchesAny(w.include.Include, event.Name) || w.matchesAny(w.include.Exclude, event.Name) {
		return
	}

	switch {
	case event.Op&fsnotify.Write == fsnotify.Write, event.Op&fsnotify.Create == fsnotify.Create:
		w.debounce(event.Name, ChangeWrite)
	case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
		w.debounce(event.Name, ChangeRemove)
	}
}

func (w *Watcher) debounce(path string, op ChangeOp) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Stop()
	}
	w.debounceTimers[path] = time.AfterFunc(time.Duration(w.opts.DebounceMs)*time.Millisecond, func() {
		if w.onChange != nil {
			w.onChange(path, op)
		}
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()
	})
}

func (w *Watcher) shouldIgnoreDir(root, path string) bool {
	return w.matchesAny(w.include.Exclude, path)
}

// matchesAny reports whether path (relative to the watched root) matches
// any of the given doublestar patterns. An empty pattern list matches
// nothing.
func (w *Watcher) matchesAny(patterns []string, path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if ok, _ := doublestar.PathMatch(p, rel); ok {
			return true
		}
	}
	return false
}
