// Package watcher keeps the run cache in step with the results directory.
//
// It subscribes to file-system events for the whole tree below the results
// root and funnels every qualifying event into a Debouncer, so that a burst
// of writes from a finishing benchmark becomes one full reload.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is the quiet period after the last event before a reload.
const DefaultDelay = 5 * time.Second

// ReloadFunc performs a full reload of the cache.
type ReloadFunc func(ctx context.Context) error

// Observer receives watcher activity. metrics.Recorder implements it.
type Observer interface {
	WatchEvent(op string)
	ReloadFired(err error)
}

type nopObserver struct{}

func (nopObserver) WatchEvent(string)  {}
func (nopObserver) ReloadFired(error) {}

// Watcher watches a results directory recursively.
type Watcher struct {
	root     string
	delay    time.Duration
	reload   ReloadFunc
	logger   *slog.Logger
	observer Observer
	ignored  map[string]bool

	fsw *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce delay. Non-positive values keep the default.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) Option {
	return func(w *Watcher) {
		if o != nil {
			w.observer = o
		}
	}
}

// WithIgnoredNames drops events for files with the given base names.
func WithIgnoredNames(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			w.ignored[n] = true
		}
	}
}

// New creates a Watcher on root and subscribes to every directory below it.
func New(root string, reload ReloadFunc, opts ...Option) (*Watcher, error) {
	if reload == nil {
		return nil, errors.New("watcher: nil reload func")
	}
	w := &Watcher{
		root:     root,
		delay:    DefaultDelay,
		reload:   reload,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: nopObserver{},
		ignored:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	w.fsw = fsw
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watcher: watch %s: %w", root, err)
	}
	return w, nil
}

// Delay returns the configured debounce delay.
func (w *Watcher) Delay() time.Duration { return w.delay }

// Run consumes events until ctx is cancelled or the watcher is closed.
// A scheduled reload that has not started yet is dropped on return.
func (w *Watcher) Run(ctx context.Context) error {
	d := NewDebouncer(w.delay, func() {
		start := time.Now()
		err := w.reload(ctx)
		w.observer.ReloadFired(err)
		if err != nil {
			w.logger.Error("reload failed", "err", err)
			return
		}
		w.logger.Info("reload finished", "duration", time.Since(start))
	})
	defer d.Stop()

	w.logger.Info("watching results directory", "dir", w.root, "debounce", w.delay)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				d.Trigger()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// Close stops watching. Run returns once the event channels drain.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// handle reports whether ev should schedule a reload. New directories are
// subscribed to before returning.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	op := opName(ev.Op)
	if op == "" {
		return false
	}
	if w.ignored[filepath.Base(ev.Name)] {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "dir", ev.Name, "err", err)
			}
		}
	}
	w.observer.WatchEvent(op)
	w.logger.Debug("change detected", "op", op, "path", ev.Name)
	return true
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The root must be watchable; vanished subdirectories are not fatal.
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

// opName maps an event to the label used for logs and metrics. Chmod-only
// events do not qualify.
func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return ""
	}
}
