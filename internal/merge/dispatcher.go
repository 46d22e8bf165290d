// Package merge invokes the external remux tool to combine one video and
// one audio stream into a single container without re-encoding.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"pairmux/internal/logging"
)

var (
	// ErrToolFailed means the remux tool exited non-zero.
	ErrToolFailed = errors.New("remux tool failed")
	// ErrTimeout means the merge exceeded the configured timeout.
	ErrTimeout = errors.New("remux timed out")
	// ErrToolMissing means the remux executable could not be found.
	ErrToolMissing = errors.New("remux tool not found")
)

// Request names the two inputs and the output of one merge.
type Request struct {
	VideoPath  string
	AudioPath  string
	OutputPath string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stderr string, err error)
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) Option {
	return func(d *Dispatcher) {
		if executor != nil {
			d.exec = executor
		}
	}
}

// Dispatcher wraps remux tool invocations and the post-merge cleanup policy.
type Dispatcher struct {
	binary     string
	timeout    time.Duration
	deleteTemp bool
	logger     *slog.Logger
	exec       Executor
}

// New constructs a dispatcher for the given binary and timeout.
func New(binary string, timeoutSeconds int, deleteTemp bool, logger *slog.Logger, opts ...Option) (*Dispatcher, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("remux binary required")
	}
	dispatcher := &Dispatcher{
		binary:     binary,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
		deleteTemp: deleteTemp,
		logger:     logging.NewComponentLogger(logger, "merge"),
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	return dispatcher, nil
}

// Merge runs the stream-copy remux. Any pre-existing output is overwritten.
// Failures are classified by sentinel: tool exit, timeout, missing binary,
// or an unexpected launch error.
func (d *Dispatcher) Merge(ctx context.Context, req Request) error {
	if req.VideoPath == "" || req.AudioPath == "" || req.OutputPath == "" {
		return errors.New("merge request requires video, audio, and output paths")
	}

	mergeCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		mergeCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	args := []string{
		"-i", req.VideoPath,
		"-i", req.AudioPath,
		"-c:v", "copy",
		"-c:a", "copy",
		"-y",
		req.OutputPath,
	}

	d.logger.Info("starting remux",
		logging.String("video", req.VideoPath),
		logging.String("audio", req.AudioPath),
		logging.String("output", req.OutputPath))

	stderr, err := d.exec.Run(mergeCtx, d.binary, args)
	if err == nil {
		d.logger.Info("remux complete", logging.String("output", req.OutputPath))
		return nil
	}

	switch {
	case errors.Is(mergeCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, d.timeout)
	case errors.Is(mergeCtx.Err(), context.Canceled):
		// Shutdown kills the tool; that is not a tool failure.
		return fmt.Errorf("remux interrupted: %w", context.Canceled)
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrToolMissing, d.binary)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: exit code %d: %s", ErrToolFailed, exitErr.ExitCode(), tail(stderr, 512))
	}

	return fmt.Errorf("remux launch: %w", err)
}

// Cleanup removes the given temp files when the delete policy is enabled.
// Deletion errors are logged and never escalate.
func (d *Dispatcher) Cleanup(paths ...string) {
	if !d.deleteTemp {
		return
	}
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("failed to remove temp file",
				logging.String("path", path),
				logging.Error(err))
			continue
		}
		d.logger.Debug("removed temp file", logging.String("path", path))
	}
}

// DeleteTempEnabled reports the configured retention policy.
func (d *Dispatcher) DeleteTempEnabled() bool {
	return d.deleteTemp
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}
