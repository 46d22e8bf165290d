package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pairmux/internal/capture"
	"pairmux/internal/fetch"
	"pairmux/internal/history"
	"pairmux/internal/logging"
	"pairmux/internal/media"
	"pairmux/internal/merge"
	"pairmux/internal/notify"
)

// Merger runs one remux and applies the temp-file retention policy.
type Merger interface {
	Merge(ctx context.Context, req merge.Request) error
	Cleanup(paths ...string)
}

// Stability decides when a fragment file has finished downloading.
type Stability interface {
	WaitUntilStable(ctx context.Context, path string) bool
}

// CaptureExtractor selects the best video and audio URLs from a capture file.
type CaptureExtractor interface {
	ExtractBestFile(path string) (capture.Selection, error)
}

// Options wires the correlator's collaborators.
type Options struct {
	OutputDir string
	WatchDir  string

	Detector  Stability
	Merger    Merger
	Extractor CaptureExtractor
	Fetcher   fetch.Fetcher
	Notifier  notify.Service
	History   *history.Store
	Logger    *slog.Logger

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// Correlator owns the session map. All mutations go through one mutex, and
// the daemon delivers events serially, so at most one merge runs at a time.
// Sessions leave the map on reaching a terminal state; the finished set is
// what keeps their keys from being reopened.
type Correlator struct {
	mu       sync.Mutex
	sessions map[string]*Session
	finished map[string]Status
	captures map[string]struct{}

	outputDir string
	watchDir  string
	detector  Stability
	merger    Merger
	extractor CaptureExtractor
	fetcher   fetch.Fetcher
	notifier  notify.Service
	store     *history.Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewCorrelator builds a correlator. Detector, Merger, and Logger are
// required; the rest degrade gracefully when absent.
func NewCorrelator(opts Options) (*Correlator, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory required")
	}
	if opts.Detector == nil {
		return nil, fmt.Errorf("readiness detector required")
	}
	if opts.Merger == nil {
		return nil, fmt.Errorf("merger required")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Correlator{
		sessions:  make(map[string]*Session),
		finished:  make(map[string]Status),
		captures:  make(map[string]struct{}),
		outputDir: opts.OutputDir,
		watchDir:  opts.WatchDir,
		detector:  opts.Detector,
		merger:    opts.Merger,
		extractor: opts.Extractor,
		fetcher:   opts.Fetcher,
		notifier:  notifier,
		store:     opts.History,
		logger:    logging.NewComponentLogger(opts.Logger, "session"),
		now:       now,
	}, nil
}

// HandleFile processes one file observed in the watched directory. Capture
// documents and fragment files are dispatched to their flows; anything else
// is ignored. Errors are logged and recorded but never abort the daemon, so
// the return is reserved for context cancellation.
func (c *Correlator) HandleFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), ".har") {
		c.handleCapture(ctx, path)
		return nil
	}

	fragment, ok := ParseFragmentName(base)
	if !ok {
		c.logger.Debug("ignoring unrecognized file", logging.String("file", base))
		return nil
	}
	fragment.Path = path

	c.handleFragment(ctx, fragment)
	return nil
}

// handleFragment waits for the fragment to stabilize, records it against
// its session, and merges once both halves are present.
func (c *Correlator) handleFragment(ctx context.Context, fragment Fragment) {
	c.mu.Lock()
	if status, done := c.finished[fragment.Key]; done {
		c.mu.Unlock()
		c.logger.Debug("ignoring fragment for finished session",
			logging.String("key", fragment.Key),
			logging.String("status", string(status)))
		return
	}
	c.mu.Unlock()

	if !c.detector.WaitUntilStable(ctx, fragment.Path) {
		c.logger.Warn("fragment never stabilized, will retry on next scan",
			logging.String("file", fragment.Path))
		return
	}

	c.mu.Lock()
	if _, done := c.finished[fragment.Key]; done {
		c.mu.Unlock()
		return
	}
	sess, exists := c.sessions[fragment.Key]
	if !exists {
		sess = &Session{
			Key:       fragment.Key,
			Status:    StatusPending,
			CreatedAt: c.now(),
		}
		c.sessions[fragment.Key] = sess
		c.logger.Info("new session", logging.String("key", fragment.Key))
		if err := c.notifier.NotifySessionStarted(ctx, fragment.Key); err != nil {
			c.logger.Warn("session notification failed", logging.Error(err))
		}
	}

	switch fragment.Role {
	case RoleVideo:
		sess.VideoPath = fragment.Path
	case RoleAudio:
		sess.AudioPath = fragment.Path
	}
	sess.UpdatedAt = c.now()

	if !sess.Complete() || sess.Status != StatusPending {
		c.mu.Unlock()
		return
	}
	sess.Status = StatusReady
	c.mu.Unlock()

	c.mergeSession(ctx, sess, history.SourceFolder)
}

// mergeSession runs the remux for a ready session and drives it to a
// terminal state. The caller must have set the session to StatusReady.
func (c *Correlator) mergeSession(ctx context.Context, sess *Session, source history.Source) {
	c.mu.Lock()
	sess.Status = StatusMerging
	sess.OutputPath = filepath.Join(c.outputDir, OutputName(c.now(), filepath.Ext(sess.VideoPath)))
	sess.UpdatedAt = c.now()
	videoPath, audioPath, outputPath := sess.VideoPath, sess.AudioPath, sess.OutputPath
	c.mu.Unlock()

	var recordID int64
	if c.store != nil {
		record, err := c.store.Begin(ctx, sess.Key, source, videoPath, audioPath, outputPath)
		if err != nil {
			c.logger.Warn("history record failed", logging.Error(err))
		} else {
			recordID = record.ID
		}
	}

	err := c.merger.Merge(ctx, merge.Request{
		VideoPath:  videoPath,
		AudioPath:  audioPath,
		OutputPath: outputPath,
	})

	c.mu.Lock()
	sess.UpdatedAt = c.now()
	if err != nil {
		sess.Status = StatusFailed
		sess.ErrorMessage = err.Error()
	} else {
		sess.Status = StatusCompleted
	}
	// Terminal keys leave active tracking; the finished set alone blocks
	// redelivered fragments from reopening them.
	delete(c.sessions, sess.Key)
	c.finished[sess.Key] = sess.Status
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("merge failed",
			logging.String("key", sess.Key),
			logging.Error(err))
		if c.store != nil && recordID != 0 {
			if histErr := c.store.Fail(ctx, recordID, err.Error()); histErr != nil {
				c.logger.Warn("history update failed", logging.Error(histErr))
			}
		}
		if notifyErr := c.notifier.NotifyMergeFailed(ctx, sess.Key, err); notifyErr != nil {
			c.logger.Warn("failure notification failed", logging.Error(notifyErr))
		}
		return
	}

	c.logger.Info("merge completed",
		logging.String("key", sess.Key),
		logging.String("output", outputPath))
	if c.store != nil && recordID != 0 {
		if histErr := c.store.Complete(ctx, recordID, outputPath); histErr != nil {
			c.logger.Warn("history update failed", logging.Error(histErr))
		}
	}
	c.merger.Cleanup(videoPath, audioPath)
	if notifyErr := c.notifier.NotifyMergeCompleted(ctx, sess.Key, outputPath); notifyErr != nil {
		c.logger.Warn("completion notification failed", logging.Error(notifyErr))
	}
}

// handleCapture runs the capture flow: pick the best video and audio URLs,
// download both, and merge the synthesized pair. A capture file is handled
// at most once per key, across restarts when the history store is present.
func (c *Correlator) handleCapture(ctx context.Context, path string) {
	base := filepath.Base(path)

	c.mu.Lock()
	if _, seen := c.captures[base]; seen {
		c.mu.Unlock()
		return
	}
	c.captures[base] = struct{}{}
	c.mu.Unlock()

	if c.store != nil {
		processed, err := c.store.CaptureProcessed(ctx, base)
		if err != nil {
			c.logger.Warn("processed capture lookup failed", logging.Error(err))
		} else if processed {
			c.logger.Debug("capture already processed", logging.String("file", base))
			return
		}
	}

	if c.extractor == nil || c.fetcher == nil {
		c.logger.Warn("capture flow not configured", logging.String("file", base))
		return
	}

	if !c.detector.WaitUntilStable(ctx, path) {
		c.logger.Warn("capture file never stabilized", logging.String("file", base))
		c.forgetCapture(base)
		return
	}

	c.logger.Info("processing capture", logging.String("file", base))

	selection, err := c.extractor.ExtractBestFile(path)
	if err != nil {
		c.captureFailed(ctx, base, err)
		return
	}

	key := NewKey(c.now())
	videoURL := media.NormalizeURL(selection.Video.URL)
	audioURL := media.NormalizeURL(selection.Audio.URL)

	videoPath := filepath.Join(c.watchDir, fmt.Sprintf("video_%s.mp4", key))
	audioPath := filepath.Join(c.watchDir, fmt.Sprintf("audio_%s.mp4", key))

	if _, err := c.fetcher.Fetch(ctx, videoURL, videoPath); err != nil {
		c.captureFailed(ctx, base, fmt.Errorf("download video: %w", err))
		return
	}
	if _, err := c.fetcher.Fetch(ctx, audioURL, audioPath); err != nil {
		_ = os.Remove(videoPath)
		c.captureFailed(ctx, base, fmt.Errorf("download audio: %w", err))
		return
	}

	c.mu.Lock()
	sess := &Session{
		Key:       key,
		Status:    StatusReady,
		VideoPath: videoPath,
		AudioPath: audioPath,
		CreatedAt: c.now(),
	}
	c.sessions[key] = sess
	c.mu.Unlock()

	c.mergeSession(ctx, sess, history.SourceCapture)

	c.mu.Lock()
	completed := sess.Status == StatusCompleted
	c.mu.Unlock()
	if !completed {
		return
	}

	if c.store != nil {
		if err := c.store.MarkCaptureProcessed(ctx, base); err != nil {
			c.logger.Warn("mark capture processed failed", logging.Error(err))
		}
	}
	c.merger.Cleanup(path)
	if err := c.notifier.NotifyCaptureProcessed(ctx, base, sess.OutputPath); err != nil {
		c.logger.Warn("capture notification failed", logging.Error(err))
	}
}

// captureFailed logs a capture flow error and lets the file be retried on
// a later scan.
func (c *Correlator) captureFailed(ctx context.Context, base string, err error) {
	c.logger.Error("capture processing failed",
		logging.String("file", base),
		logging.Error(err))
	c.forgetCapture(base)
	if notifyErr := c.notifier.NotifyError(ctx, err, "capture "+base); notifyErr != nil {
		c.logger.Warn("error notification failed", logging.Error(notifyErr))
	}
}

func (c *Correlator) forgetCapture(base string) {
	c.mu.Lock()
	delete(c.captures, base)
	c.mu.Unlock()
}

// Snapshot returns a copy of every active session, newest first. Terminal
// sessions are not included; the history store records those.
func (c *Correlator) Snapshot() []Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Session, 0, len(c.sessions))
	for _, sess := range c.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
