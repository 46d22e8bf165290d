package capture_test

import (
	"errors"
	"strings"
	"testing"

	"pairmux/internal/capture"
	"pairmux/internal/logging"
)

func harWithURLs(urls ...string) string {
	var sb strings.Builder
	sb.WriteString(`{"log":{"entries":[`)
	for i, u := range urls {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"request":{"url":"` + u + `"}}`)
	}
	sb.WriteString(`]}}`)
	return sb.String()
}

func extract(t *testing.T, doc string) (capture.Selection, error) {
	t.Helper()
	extractor := capture.NewExtractor(logging.NewNop())
	return extractor.ExtractBest(strings.NewReader(doc))
}

func TestExtractBestPicksBothBuckets(t *testing.T) {
	doc := harWithURLs(
		"https://cdn.example/videoplayback?itag=137&clen=50000000",
		"https://cdn.example/videoplayback?itag=140&clen=3000000",
		"https://cdn.example/api/other",
	)
	sel, err := extract(t, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if sel.Video == nil || sel.Video.FormatID != 137 {
		t.Fatalf("expected video itag 137, got %+v", sel.Video)
	}
	if sel.Audio == nil || sel.Audio.FormatID != 140 {
		t.Fatalf("expected audio itag 140, got %+v", sel.Audio)
	}
}

func TestExtractBestRedirectOutranksQuality(t *testing.T) {
	// itag 140 ranks below 141, but the redirect variant must win anyway.
	doc := harWithURLs(
		"https://cdn.example/videoplayback?itag=137&clen=1",
		"https://cdn.example/videoplayback?itag=141&clen=9000000",
		"https://cdn.example/videoplayback?itag=140&clen=3000000&cms_redirect=yes",
	)
	sel, err := extract(t, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if sel.Audio.FormatID != 140 || !sel.Audio.Redirect {
		t.Fatalf("expected redirect audio itag 140, got %+v", sel.Audio)
	}
}

func TestExtractBestQualityOutranksSize(t *testing.T) {
	doc := harWithURLs(
		"https://cdn.example/videoplayback?itag=140&clen=1",
		"https://cdn.example/videoplayback?itag=136&clen=99999999",
		"https://cdn.example/videoplayback?itag=137&clen=5",
	)
	sel, err := extract(t, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if sel.Video.FormatID != 137 {
		t.Fatalf("expected itag 137 over larger 136, got %+v", sel.Video)
	}
}

func TestExtractBestSizeIsFinalTiebreak(t *testing.T) {
	doc := harWithURLs(
		"https://cdn.example/videoplayback?itag=140&clen=1",
		"https://cdn.example/videoplayback?itag=137&clen=100",
		"https://cdn.example/videoplayback?itag=137&clen=200",
	)
	sel, err := extract(t, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if sel.Video.DeclaredSize != 200 {
		t.Fatalf("expected the larger itag 137 entry, got %+v", sel.Video)
	}
}

func TestExtractBestDropsChunkedAndUnknown(t *testing.T) {
	doc := harWithURLs(
		"https://cdn.example/videoplayback?itag=137&clen=9&ump=1&srfvp=1", // chunked
		"https://cdn.example/videoplayback?itag=9999&clen=9",              // unknown kind
		"https://cdn.example/videoplayback?itag=135&clen=7",
		"https://cdn.example/videoplayback?itag=140&clen=3",
	)
	sel, err := extract(t, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if sel.Video.FormatID != 135 {
		t.Fatalf("chunked or unknown entry leaked into selection: %+v", sel.Video)
	}
}

func TestExtractBestMissingBucketErrors(t *testing.T) {
	doc := harWithURLs("https://cdn.example/videoplayback?itag=137&clen=9")
	_, err := extract(t, doc)
	if !errors.Is(err, capture.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}

	doc = harWithURLs("https://cdn.example/videoplayback?itag=140&clen=9")
	_, err = extract(t, doc)
	if !errors.Is(err, capture.ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
}

func TestExtractBestPercentDecodesURLs(t *testing.T) {
	doc := harWithURLs(
		"https://cdn.example/videoplayback%3Fitag%3D137%26clen%3D42",
		"https://cdn.example/videoplayback?itag=140",
	)
	sel, err := extract(t, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if sel.Video == nil || sel.Video.FormatID != 137 || sel.Video.DeclaredSize != 42 {
		t.Fatalf("double-encoded video URL not decoded: %+v", sel.Video)
	}
}

func TestExtractBestKeepsLiteralPlusInValues(t *testing.T) {
	doc := harWithURLs(
		"https://cdn.example/videoplayback?itag=137&clen=42&sig=ab+cd",
		"https://cdn.example/videoplayback?itag=140",
	)
	sel, err := extract(t, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(sel.Video.URL, "sig=ab+cd") {
		t.Fatalf("literal + corrupted during decode: %q", sel.Video.URL)
	}
}

func TestExtractBestMalformedDocument(t *testing.T) {
	extractor := capture.NewExtractor(logging.NewNop())
	if _, err := extractor.ExtractBest(strings.NewReader("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEndToEndScenarioFromProduction(t *testing.T) {
	// One video (137, 50MB, no redirect) and two audio entries; the redirect
	// 251 entry must win even though redirect is absent on the other.
	doc := harWithURLs(
		"https://cdn.example/videoplayback?itag=137&clen=50000000&mime=video%2Fmp4",
		"https://cdn.example/videoplayback?itag=140&clen=3000000&mime=audio%2Fmp4",
		"https://cdn.example/videoplayback?itag=251&clen=3200000&mime=audio%2Fwebm&cms_redirect=yes",
	)
	sel, err := extract(t, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if sel.Video.FormatID != 137 {
		t.Fatalf("expected video itag 137, got %d", sel.Video.FormatID)
	}
	if sel.Audio.FormatID != 251 || !sel.Audio.Redirect {
		t.Fatalf("expected redirect audio itag 251, got %+v", sel.Audio)
	}
}
