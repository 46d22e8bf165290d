// Package session correlates video and audio fragments that belong to the
// same recording and drives them through the merge lifecycle.
package session

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents a session's position in the merge lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusMerging   Status = "merging"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status can never change again. A key that
// reached a terminal state is not reopened by later fragment arrivals.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Role names which half of a pair a fragment carries.
type Role string

const (
	RoleVideo Role = "video"
	RoleAudio Role = "audio"
)

// Fragment is one recognized input file.
type Fragment struct {
	Path string
	Role Role
	Key  string
	Ext  string
}

// Session tracks one video/audio pair from first arrival to terminal state.
type Session struct {
	Key          string
	Status       Status
	VideoPath    string
	AudioPath    string
	OutputPath   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Complete reports whether both halves have arrived.
func (s *Session) Complete() bool {
	return s.VideoPath != "" && s.AudioPath != ""
}

// fragmentNamePattern is the exact fragment shape: a role, a digits-only
// timestamp, and an alphanumeric token. Anything looser would turn stray
// files like video_final.mp4 into phantom sessions.
var fragmentNamePattern = regexp.MustCompile(`(?i)^(video|audio)_(\d+)_([a-z0-9]+)$`)

// ParseFragmentName recognizes fragment filenames of the form
// {role}_{timestamp}_{token}.{ext}. The role is matched case-insensitively;
// the correlation key is {timestamp}_{token}.
func ParseFragmentName(filename string) (Fragment, bool) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	match := fragmentNamePattern.FindStringSubmatch(stem)
	if match == nil {
		return Fragment{}, false
	}

	return Fragment{
		Role: Role(strings.ToLower(match[1])),
		Key:  match[2] + "_" + match[3],
		Ext:  ext,
	}, true
}

// NewKey synthesizes a correlation key for fragments created by the daemon
// itself, following the same timestamp_token shape produced by the capture
// tooling.
func NewKey(now time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s", now.UnixMilli(), token)
}

// OutputName builds the merged file's name from the merge start time and
// the video fragment's extension.
func OutputName(now time.Time, ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	return "clase_" + now.Format("20060102_150405") + ext
}
