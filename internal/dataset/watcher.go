package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the dataset into a Store whenever its file changes.
type Watcher struct {
	path     string
	opts     Options
	store    *Store
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
	stop  sync.Once

	// OnReload, if set, observes the outcome of every reload attempt
	OnReload func(t *Table, err error)
}

// NewWatcher watches the directory containing path. Editors and copy tools
// often replace a file instead of writing it in place, so the directory is
// watched rather than the file itself.
func NewWatcher(path string, store *Store, opts Options, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		path:     filepath.Clean(path),
		opts:     opts,
		store:    store,
		debounce: debounce,
		logger:   logger.With(slog.String("component", "dataset_watcher")),
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Run processes file events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching dataset for changes", slog.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", slog.String("error", err.Error()))
		}
	}
}

// schedule coalesces bursts of events into a single reload
func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.Reload(ctx)
	})
}

// Reload loads the dataset again and swaps it in. On failure the previous
// table stays current.
func (w *Watcher) Reload(ctx context.Context) (*Table, error) {
	table, err := Load(ctx, w.path, w.opts)
	if err != nil {
		w.logger.Error("dataset reload failed, keeping previous table",
			slog.String("error", err.Error()))
	} else {
		w.store.Swap(table)
		w.logger.Info("dataset reloaded", slog.Int("rows", table.Len()))
	}

	if w.OnReload != nil {
		w.OnReload(table, err)
	}
	return table, err
}

// Close stops the watcher
func (w *Watcher) Close() error {
	var err error
	w.stop.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
