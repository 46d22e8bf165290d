// Package watch observes the configured directory and reports files to
// process. Two modes are supported: event mode backed by inotify, and a
// polling fallback for filesystems without change notification (network
// mounts, some FUSE drives).
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pairmux/internal/logging"
)

// ModeWatch and ModePoll are the accepted watcher modes.
const (
	ModeWatch = "watch"
	ModePoll  = "poll"
)

// Options configures a Watcher.
type Options struct {
	Dir          string
	Mode         string
	PollInterval time.Duration
	SettleDelay  time.Duration
	Logger       *slog.Logger
}

// Watcher emits paths of files that appeared or changed in the watched
// directory. Delivery is at-least-once; consumers own deduplication.
type Watcher struct {
	dir          string
	mode         string
	pollInterval time.Duration
	settleDelay  time.Duration
	logger       *slog.Logger
	events       chan string

	mu      sync.Mutex
	pending map[string]*time.Timer
	settled sync.WaitGroup
}

// New validates options and builds a watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watch directory required")
	}
	switch opts.Mode {
	case ModeWatch, ModePoll:
	case "":
		opts.Mode = ModeWatch
	default:
		return nil, fmt.Errorf("unknown watcher mode %q", opts.Mode)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	return &Watcher{
		dir:          opts.Dir,
		mode:         opts.Mode,
		pollInterval: opts.PollInterval,
		settleDelay:  opts.SettleDelay,
		logger:       logging.NewComponentLogger(opts.Logger, "watch"),
		events:       make(chan string, 64),
		pending:      make(map[string]*time.Timer),
	}, nil
}

// Events returns the channel of observed file paths.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Run scans existing directory contents, then watches for changes until the
// context is canceled. The events channel is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	if err := w.scanExisting(ctx); err != nil {
		return err
	}

	if w.mode == ModePoll {
		return w.runPoll(ctx)
	}
	return w.runNotify(ctx)
}

// scanExisting emits every regular file already present, so fragments that
// arrived while the daemon was down are not lost.
func (w *Watcher) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan watch directory: %w", err)
	}
	for _, entry := range entries {
		if !w.wanted(entry.Name(), entry.IsDir()) {
			continue
		}
		if !w.emit(ctx, filepath.Join(w.dir, entry.Name())) {
			return ctx.Err()
		}
	}
	return nil
}

func (w *Watcher) runNotify(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer notifier.Close()

	if err := notifier.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory", logging.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			// Drain settle timers before the events channel is closed.
			w.cancelPending()
			w.settled.Wait()
			return ctx.Err()
		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || !w.wanted(filepath.Base(event.Name), info.IsDir()) {
				continue
			}
			w.scheduleEmit(ctx, event.Name)
		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

// scheduleEmit delays delivery by the settle window so bursts of writes to
// a freshly created file collapse into one event.
func (w *Watcher) scheduleEmit(ctx context.Context, path string) {
	if w.settleDelay == 0 {
		w.emit(ctx, path)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settleDelay)
		return
	}
	w.settled.Add(1)
	w.pending[path] = time.AfterFunc(w.settleDelay, func() {
		defer w.settled.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.emit(ctx, path)
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.settled.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) runPoll(ctx context.Context) error {
	w.logger.Info("polling directory",
		logging.String("dir", w.dir),
		logging.Duration("interval", w.pollInterval))

	// Baseline from the startup scan: those files were already emitted.
	seen := w.snapshotSizes()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			current := w.snapshotSizes()
			for path, size := range current {
				if prev, ok := seen[path]; ok && prev == size {
					continue
				}
				if !w.emit(ctx, path) {
					return ctx.Err()
				}
			}
			seen = current
		}
	}
}

func (w *Watcher) snapshotSizes() map[string]int64 {
	sizes := make(map[string]int64)
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("poll scan failed", logging.Error(err))
		return sizes
	}
	for _, entry := range entries {
		if !w.wanted(entry.Name(), entry.IsDir()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sizes[filepath.Join(w.dir, entry.Name())] = info.Size()
	}
	return sizes
}

// wanted filters out directories, hidden files, and in-progress downloads.
func (w *Watcher) wanted(name string, isDir bool) bool {
	if isDir {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	if strings.HasSuffix(name, ".part") {
		return false
	}
	return true
}

func (w *Watcher) emit(ctx context.Context, path string) bool {
	select {
	case <-ctx.Done():
		return false
	case w.events <- path:
		return true
	}
}
