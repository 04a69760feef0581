// Package watcher reports package files dropped into the install inbox.
//
// Events from fsnotify are filtered by doublestar patterns on the file name
// and debounced per path, so a file that is still being written is reported
// once, after writes settle.
package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
)

var ErrClosed = errors.New("watcher closed")

// Config controls the drop-directory watcher
type Config struct {
	Dir      string
	Patterns []string
	Delay    time.Duration
}

// DefaultPatterns are the package names picked up when none are configured
var DefaultPatterns = []string{"*.zip", "*.tar.gz", "*.tgz", "*.tar.zst"}

// DropWatcher watches one directory for new package files
type DropWatcher struct {
	cfg     Config
	watcher *fsnotify.Watcher
	logger  *logging.Logger

	mu       sync.Mutex
	handlers map[int]func(path string)
	seq      int
	pending  map[string]*time.Timer
	closed   bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New starts watching cfg.Dir, creating it if needed
func New(cfg Config, logger *logging.Logger) (*DropWatcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = DefaultPatterns
	}
	for _, p := range cfg.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid install pattern %q", p)
		}
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, err
	}
	cfg.Dir = dir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &DropWatcher{
		cfg:      cfg,
		watcher:  fsw,
		logger:   logger.Named("watcher"),
		handlers: make(map[int]func(string)),
		pending:  make(map[string]*time.Timer),
		closeCh:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processLoop()

	w.logger.Info("watching install inbox", zap.String("dir", dir), zap.Strings("patterns", cfg.Patterns))
	return w, nil
}

// Dir returns the watched directory
func (w *DropWatcher) Dir() string {
	return w.cfg.Dir
}

// OnNewExtensionFileDetected registers handler for new package files
func (w *DropWatcher) OnNewExtensionFileDetected(handler func(path string)) func() {
	w.mu.Lock()
	w.seq++
	id := w.seq
	w.handlers[id] = handler
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.handlers, id)
		w.mu.Unlock()
	}
}

// Match reports whether name is a package file
func (w *DropWatcher) Match(name string) bool {
	base := filepath.Base(name)
	if len(base) > 0 && base[0] == '.' {
		return false
	}
	for _, p := range w.cfg.Patterns {
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Rescan reports package files already in the directory, sorted by name
func (w *DropWatcher) Rescan() (int, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return 0, err
	}

	var found []string
	for _, e := range entries {
		if e.Type().IsRegular() && w.Match(e.Name()) {
			found = append(found, filepath.Join(w.cfg.Dir, e.Name()))
		}
	}
	sort.Strings(found)
	for _, path := range found {
		w.dispatch(path)
	}
	return len(found), nil
}

// Close stops watching and cancels pending notifications
func (w *DropWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.watcher.Close()
}

func (w *DropWatcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				w.schedule(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// schedule debounces path; a rename away leaves nothing to report
func (w *DropWatcher) schedule(path string) {
	if !w.Match(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Delay)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Delay, func() { w.fire(path) })
}

func (w *DropWatcher) fire(path string) {
	w.mu.Lock()
	if _, ok := w.pending[path]; !ok || w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	w.dispatch(path)
}

func (w *DropWatcher) dispatch(path string) {
	w.mu.Lock()
	handlers := make([]func(string), 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()

	w.logger.Info("package file detected", zap.String("path", path))
	for _, h := range handlers {
		h(path)
	}
}
