// Package fetch downloads captured media URLs to local fragment files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"pairmux/internal/logging"
)

// ErrBadStatus means the remote server answered with a non-success status.
var ErrBadStatus = errors.New("unexpected response status")

// Fetcher streams a remote resource to a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) (int64, error)
}

// Client is the production HTTP fetcher. Responses stream straight to disk
// so large media files never sit in memory.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a fetcher with the given total request timeout.
func NewClient(timeoutSeconds int, logger *slog.Logger) *Client {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "fetch"),
	}
}

// Fetch downloads url into destPath and returns the byte count written.
// The destination is written via a temporary sibling and renamed on success,
// so a partial download never masquerades as a complete fragment.
func (c *Client) Fetch(ctx context.Context, url, destPath string) (int64, error) {
	if url == "" {
		return 0, errors.New("fetch url required")
	}
	if destPath == "" {
		return 0, errors.New("fetch destination required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	c.logger.Info("downloading", logging.String("dest", destPath))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", filepath.Base(destPath), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	tmpPath := destPath + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmpPath, err)
	}

	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("write %s: %w", destPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("finalize %s: %w", destPath, err)
	}

	c.logger.Info("download complete",
		logging.String("dest", destPath),
		logging.Int64("bytes", written))
	return written, nil
}
