// Package media classifies candidate stream URLs produced by the capture
// tool: media kind, relative quality, declared size, and transfer markers.
package media

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which stream a candidate URL carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindVideo
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Known stream format identifiers (itags) per kind.
var videoFormats = map[int]struct{}{
	137: {}, 136: {}, 135: {}, 134: {}, 133: {}, 160: {},
	298: {}, 299: {}, 264: {}, 266: {}, 138: {}, 313: {}, 315: {}, 272: {}, 308: {},
	243: {}, 244: {}, 245: {}, 246: {}, 247: {}, 248: {}, 278: {},
	302: {}, 303: {}, 330: {}, 331: {}, 332: {}, 333: {}, 334: {}, 335: {}, 336: {}, 337: {},
}

var audioFormats = map[int]struct{}{
	140: {}, 141: {}, 171: {}, 249: {}, 250: {}, 251: {}, 139: {}, 172: {},
}

// qualityRanks orders known format identifiers, higher is better. Within a
// resolution tier the higher-efficiency codec variant outranks the baseline.
var qualityRanks = map[int]int{
	// video
	315: 11, 313: 10, 266: 10, // 2160p
	308: 9, 264: 8, // 1440p
	299: 7, 137: 6, // 1080p
	298: 5, 136: 4, // 720p
	135: 3, // 480p
	134: 2, // 360p
	133: 1, // 240p
	160: 0, // 144p
	// audio, bitrate descending
	141: 5, // 256kbps
	251: 4, // 160kbps
	140: 3, // 128kbps
	250: 2, // 70kbps
	249: 1, // 50kbps
}

var formatIDPattern = regexp.MustCompile(`itag[=/](\d+)`)

var declaredSizePattern = regexp.MustCompile(`clen=(\d+)`)

// strippedParams are range/streaming/session-churn query parameters removed
// before a URL is handed to the fetcher. Classification never uses this.
var strippedParams = map[string]struct{}{
	"range": {}, "rn": {}, "rbuf": {}, "ump": {}, "srfvp": {}, "cpn": {}, "cver": {}, "alr": {},
}

// IsPlaybackURL reports whether the URL targets a media playback endpoint.
func IsPlaybackURL(rawURL string) bool {
	return strings.Contains(rawURL, "videoplayback")
}

// ClassifyKind determines whether a URL carries video or audio. The explicit
// mime marker wins; otherwise the format identifier decides.
func ClassifyKind(rawURL string) Kind {
	lowered := strings.ToLower(rawURL)
	if strings.Contains(lowered, "mime=video") {
		return KindVideo
	}
	if strings.Contains(lowered, "mime=audio") {
		return KindAudio
	}

	if id, ok := ParseFormatID(rawURL); ok {
		if _, ok := videoFormats[id]; ok {
			return KindVideo
		}
		if _, ok := audioFormats[id]; ok {
			return KindAudio
		}
	}
	return KindUnknown
}

// ParseFormatID extracts the numeric stream format identifier from a URL.
func ParseFormatID(rawURL string) (int, bool) {
	match := formatIDPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return 0, false
	}
	id, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// QualityRank returns the relative quality score for a format identifier.
// Unknown identifiers rank 0.
func QualityRank(formatID int) int {
	return qualityRanks[formatID]
}

// IsCompleteRequest reports whether a URL denotes a full-file request. A URL
// is rejected only when it carries both chunked-transfer markers; a single
// marker is accepted so valid full-file URLs survive protocol drift.
func IsCompleteRequest(rawURL string) bool {
	hasUmp := strings.Contains(rawURL, "ump=1")
	hasSrfvp := strings.Contains(rawURL, "srfvp=1")
	return !(hasUmp && hasSrfvp)
}

// DeclaredSize parses the content-length query parameter, 0 when absent.
func DeclaredSize(rawURL string) int64 {
	match := declaredSizePattern.FindStringSubmatch(rawURL)
	if match == nil {
		return 0
	}
	size, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0
	}
	return size
}

// IsRedirectVariant reports whether the URL resolves through the redirect
// delivery path, which proved more reliable for large transfers.
func IsRedirectVariant(rawURL string) bool {
	return strings.Contains(rawURL, "cms_redirect=yes")
}

// NormalizeURL strips range/streaming/session-churn query parameters while
// preserving the remaining parameters and their relative order. Called only
// right before fetch handoff.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	pairs := strings.Split(parsed.RawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key = pair[:idx]
		}
		if _, drop := strippedParams[key]; drop {
			continue
		}
		kept = append(kept, pair)
	}
	parsed.RawQuery = strings.Join(kept, "&")
	return parsed.String()
}
