// Package daemon ties the watcher, correlator, and supporting services into
// a single lifecycle with flock-based locking to prevent multiple instances
// from fighting over the same directory.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"pairmux/internal/capture"
	"pairmux/internal/config"
	"pairmux/internal/fetch"
	"pairmux/internal/history"
	"pairmux/internal/logging"
	"pairmux/internal/merge"
	"pairmux/internal/notify"
	"pairmux/internal/preflight"
	"pairmux/internal/readiness"
	"pairmux/internal/session"
	"pairmux/internal/watch"
)

// Daemon owns the full processing pipeline for one watched directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	store      *history.Store
	correlator *session.Correlator
	watcher    *watch.Watcher
}

// New wires up the daemon's components from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	dispatcher, err := merge.New(cfg.FFmpeg.Binary, cfg.FFmpeg.MergeTimeout, cfg.Cleanup.DeleteTempFiles, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	detector := readiness.New(readiness.Options{
		CheckInterval:      secondsToDuration(cfg.Readiness.CheckInterval),
		StabilityThreshold: cfg.Readiness.StabilityThreshold,
		Timeout:            secondsToDuration(cfg.Readiness.Timeout),
	})

	correlator, err := session.NewCorrelator(session.Options{
		OutputDir: cfg.Paths.OutputDir,
		WatchDir:  cfg.Paths.WatchDir,
		Detector:  detector,
		Merger:    dispatcher,
		Extractor: capture.NewExtractor(logger),
		Fetcher:   fetch.NewClient(cfg.Fetch.Timeout, logger),
		Notifier:  notify.NewService(cfg),
		History:   store,
		Logger:    logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	watcher, err := watch.New(watch.Options{
		Dir:          cfg.Paths.WatchDir,
		Mode:         cfg.Watcher.Mode,
		PollInterval: secondsToDuration(cfg.Watcher.PollInterval),
		SettleDelay:  secondsToDuration(cfg.Watcher.SettleDelay),
		Logger:       logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "pairmuxd.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		store:      store,
		correlator: correlator,
		watcher:    watcher,
	}, nil
}

// Run performs preflight checks, acquires the single-instance lock, and
// processes watcher events serially until the context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	results := preflight.RunAll(ctx, d.cfg)
	if failed := preflight.Failed(results); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			details = append(details, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pairmux daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	d.logger.Info("daemon started",
		logging.String("watch", d.cfg.Paths.WatchDir),
		logging.String("output", d.cfg.Paths.OutputDir),
		logging.String("lock", d.lockPath))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- d.watcher.Run(watchCtx)
	}()

	// One consumer: sessions merge strictly one at a time.
	for path := range d.watcher.Events() {
		if err := d.correlator.HandleFile(ctx, path); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			d.logger.Error("event handling failed",
				logging.String("file", path),
				logging.Error(err))
		}
	}

	cancel()
	err = <-watchDone
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	d.logger.Info("daemon stopped")
	return nil
}

// Sessions exposes the live session table for status output.
func (d *Daemon) Sessions() []session.Session {
	return d.correlator.Snapshot()
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
