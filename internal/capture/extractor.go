// Package capture recovers the best video and audio stream URLs from an
// exported browser network-activity log (HAR).
package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"pairmux/internal/logging"
	"pairmux/internal/media"
)

var (
	// ErrNoVideo means the capture contained no usable video candidate.
	ErrNoVideo = errors.New("no valid video candidate in capture")
	// ErrNoAudio means the capture contained no usable audio candidate.
	ErrNoAudio = errors.New("no valid audio candidate in capture")
)

// Candidate is one classified media URL from a capture document.
type Candidate struct {
	URL          string
	Kind         media.Kind
	FormatID     int
	QualityRank  int
	DeclaredSize int64
	Redirect     bool
}

// Selection holds the winning candidate per bucket.
type Selection struct {
	Video *Candidate
	Audio *Candidate
}

// harDocument mirrors the single field the extractor reads per entry.
type harDocument struct {
	Log struct {
		Entries []struct {
			Request struct {
				URL string `json:"url"`
			} `json:"request"`
		} `json:"entries"`
	} `json:"log"`
}

// Extractor parses capture documents and selects the best candidates.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor builds an extractor. A nil logger is replaced with a no-op.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logging.NewComponentLogger(logger, "extractor")}
}

// ExtractBestFile runs ExtractBest over the capture file at path.
func (e *Extractor) ExtractBestFile(path string) (Selection, error) {
	file, err := os.Open(path)
	if err != nil {
		return Selection{}, fmt.Errorf("open capture: %w", err)
	}
	defer file.Close()
	return e.ExtractBest(file)
}

// ExtractBest scans every network entry, classifies media playback URLs, and
// picks the maximum per bucket under the (redirect, quality, size)
// lexicographic order. A redirect-capable source always outranks a
// non-redirect one regardless of quality.
func (e *Extractor) ExtractBest(r io.Reader) (Selection, error) {
	var doc harDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Selection{}, fmt.Errorf("parse capture: %w", err)
	}

	var selection Selection
	playbackCount := 0
	validCount := 0

	for _, entry := range doc.Log.Entries {
		rawURL := entry.Request.URL
		if !media.IsPlaybackURL(rawURL) {
			continue
		}
		playbackCount++

		// Capture exports may double-encode the URL. PathUnescape only
		// percent-decodes; a literal + in a signature value must survive.
		decoded, err := url.PathUnescape(rawURL)
		if err != nil {
			decoded = rawURL
		}

		kind := media.ClassifyKind(decoded)
		if kind == media.KindUnknown {
			formatID, _ := media.ParseFormatID(decoded)
			e.logger.Debug("ignoring playback URL of unknown kind",
				logging.Int("format_id", formatID))
			continue
		}
		if !media.IsCompleteRequest(decoded) {
			e.logger.Debug("ignoring chunked playback URL",
				logging.String("kind", kind.String()))
			continue
		}

		formatID, _ := media.ParseFormatID(decoded)
		candidate := &Candidate{
			URL:          decoded,
			Kind:         kind,
			FormatID:     formatID,
			QualityRank:  media.QualityRank(formatID),
			DeclaredSize: media.DeclaredSize(decoded),
			Redirect:     media.IsRedirectVariant(decoded),
		}
		validCount++

		switch kind {
		case media.KindVideo:
			if candidate.Outranks(selection.Video) {
				selection.Video = candidate
			}
		case media.KindAudio:
			if candidate.Outranks(selection.Audio) {
				selection.Audio = candidate
			}
		}
	}

	e.logger.Info("capture scan complete",
		logging.Int("playback_urls", playbackCount),
		logging.Int("valid_candidates", validCount))

	if selection.Video == nil {
		return selection, ErrNoVideo
	}
	if selection.Audio == nil {
		return selection, ErrNoAudio
	}

	e.logger.Info("selected video candidate",
		logging.Int("format_id", selection.Video.FormatID),
		logging.Int64("declared_size", selection.Video.DeclaredSize),
		logging.Bool("redirect", selection.Video.Redirect))
	e.logger.Info("selected audio candidate",
		logging.Int("format_id", selection.Audio.FormatID),
		logging.Int64("declared_size", selection.Audio.DeclaredSize),
		logging.Bool("redirect", selection.Audio.Redirect))

	return selection, nil
}

// Outranks compares candidates by (redirect, quality rank, declared size),
// in that priority order. A nil other always loses.
func (c *Candidate) Outranks(other *Candidate) bool {
	if other == nil {
		return true
	}
	if c.Redirect != other.Redirect {
		return c.Redirect
	}
	if c.QualityRank != other.QualityRank {
		return c.QualityRank > other.QualityRank
	}
	return c.DeclaredSize > other.DeclaredSize
}
