// Package readiness decides when a file the capture tool is still writing
// has been fully flushed. There is no completion signal from the producer,
// so a stable size over several probes is used as the proxy. The contract
// favors false negatives: an unready verdict just means retry on a later
// scan, while acting on a truncated file corrupts the merge.
package readiness

import (
	"context"
	"os"
	"time"
)

// Probe reports the current size of the file at path.
type Probe func(path string) (int64, error)

// Options controls detection timing.
type Options struct {
	CheckInterval      time.Duration
	StabilityThreshold int
	Timeout            time.Duration
}

// DefaultOptions mirrors the production defaults: probe every second,
// three stable readings, give up after 30 seconds.
func DefaultOptions() Options {
	return Options{
		CheckInterval:      time.Second,
		StabilityThreshold: 3,
		Timeout:            30 * time.Second,
	}
}

// Detector watches a path until its size stops changing.
type Detector struct {
	opts  Options
	probe Probe
}

// Option configures the detector.
type Option func(*Detector)

// WithProbe injects a size probe (primarily for tests).
func WithProbe(probe Probe) Option {
	return func(d *Detector) {
		if probe != nil {
			d.probe = probe
		}
	}
}

// New constructs a detector. Zero option fields fall back to defaults.
func New(opts Options, options ...Option) *Detector {
	defaults := DefaultOptions()
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = defaults.CheckInterval
	}
	if opts.StabilityThreshold <= 0 {
		opts.StabilityThreshold = defaults.StabilityThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	detector := &Detector{opts: opts, probe: statProbe}
	for _, option := range options {
		option(detector)
	}
	return detector
}

// WaitUntilStable polls the file size until it has stayed at the same
// nonzero value for the configured number of consecutive probes. It returns
// false when the overall timeout elapses or the context is canceled first.
// A missing file or a size change resets the stability counter.
func (d *Detector) WaitUntilStable(ctx context.Context, path string) bool {
	deadline := time.Now().Add(d.opts.Timeout)
	var lastSize int64 = -1
	stable := 0

	for time.Now().Before(deadline) {
		size, err := d.probe(path)
		switch {
		case err != nil:
			stable = 0
			lastSize = -1
		case size == lastSize && size > 0:
			stable++
			if stable >= d.opts.StabilityThreshold {
				return true
			}
		default:
			stable = 0
			lastSize = size
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(d.opts.CheckInterval):
		}
	}
	return false
}

func statProbe(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
