package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events one atomic write produces.
const DefaultDebounce = 100 * time.Millisecond

// Reloader re-reads durable storage after an external change and reports
// whether anything changed.
type Reloader interface {
	Reload(ctx context.Context) bool
}

// Watcher reloads a Reloader when another process rewrites a File store.
// Writes made through the watched File itself are ignored.
type Watcher struct {
	file     *File
	target   Reloader
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher for file. A zero debounce uses DefaultDebounce.
func NewWatcher(file *File, target Reloader, logger *slog.Logger, debounce time.Duration) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		file:     file,
		target:   target,
		logger:   logger.With(slog.String("component", "storage-watcher")),
		debounce: debounce,
	}
}

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file because atomic renames replace the inode.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.file.Path())
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.logger.InfoContext(ctx, "watching storage file", slog.String("path", w.file.Path()))

	name := filepath.Clean(w.file.Path())

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(evt.Name) != name || !evt.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}

			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.WarnContext(ctx, "storage watcher error", slog.Any("error", err))

		case <-fire:
			fire = nil
			w.handleChange(ctx)
		}
	}
}

func (w *Watcher) handleChange(ctx context.Context) {
	data, err := os.ReadFile(w.file.Path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.WarnContext(ctx, "reading changed storage file failed", slog.Any("error", err))
		}

		return
	}

	if w.file.WrittenByUs(data) {
		return
	}

	if w.target.Reload(ctx) {
		w.logger.InfoContext(ctx, "store reloaded after external change")
	}
}
