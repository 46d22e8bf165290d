package media_test

import (
	"strings"
	"testing"

	"pairmux/internal/media"
)

func TestClassifyKindMimeMarkerWins(t *testing.T) {
	// itag 140 is audio, but the explicit mime marker takes precedence.
	url := "https://cdn.example/videoplayback?mime=video%2Fmp4&itag=140"
	if kind := media.ClassifyKind(url); kind != media.KindVideo {
		t.Fatalf("expected video via mime marker, got %s", kind)
	}
}

func TestClassifyKindByFormatID(t *testing.T) {
	tests := []struct {
		url  string
		want media.Kind
	}{
		{"https://cdn.example/videoplayback?itag=137&clen=1", media.KindVideo},
		{"https://cdn.example/videoplayback?itag=251", media.KindAudio},
		{"https://cdn.example/videoplayback/itag/299", media.KindVideo},
		{"https://cdn.example/videoplayback?itag=9999", media.KindUnknown},
		{"https://cdn.example/videoplayback?foo=bar", media.KindUnknown},
	}
	for _, tc := range tests {
		if got := media.ClassifyKind(tc.url); got != tc.want {
			t.Errorf("ClassifyKind(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestQualityRankOrderingContract(t *testing.T) {
	// Resolution tiers, baseline codecs, descending.
	videoOrder := []int{313, 308, 137, 136, 135, 134, 133, 160}
	for i := 1; i < len(videoOrder); i++ {
		hi, lo := videoOrder[i-1], videoOrder[i]
		if media.QualityRank(hi) <= media.QualityRank(lo) {
			t.Errorf("expected rank(%d) > rank(%d)", hi, lo)
		}
	}

	// Higher-efficiency codec variant above baseline at the same resolution.
	pairs := [][2]int{{299, 137}, {298, 136}, {315, 313}}
	for _, pair := range pairs {
		if media.QualityRank(pair[0]) <= media.QualityRank(pair[1]) {
			t.Errorf("expected efficient variant %d above baseline %d", pair[0], pair[1])
		}
	}

	// Audio bitrate descending.
	audioOrder := []int{141, 251, 140, 250, 249}
	for i := 1; i < len(audioOrder); i++ {
		hi, lo := audioOrder[i-1], audioOrder[i]
		if media.QualityRank(hi) <= media.QualityRank(lo) {
			t.Errorf("expected audio rank(%d) > rank(%d)", hi, lo)
		}
	}

	if media.QualityRank(42) != 0 {
		t.Error("unknown format identifier must rank 0")
	}
}

func TestIsCompleteRequestRejectsOnlyBothMarkers(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"neither marker", "https://cdn.example/videoplayback?itag=137", true},
		{"only ump", "https://cdn.example/videoplayback?itag=137&ump=1", true},
		{"only srfvp", "https://cdn.example/videoplayback?itag=137&srfvp=1", true},
		{"both markers", "https://cdn.example/videoplayback?itag=137&ump=1&srfvp=1", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := media.IsCompleteRequest(tc.url); got != tc.want {
				t.Fatalf("IsCompleteRequest = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDeclaredSize(t *testing.T) {
	if got := media.DeclaredSize("https://cdn.example/videoplayback?clen=50000000&itag=137"); got != 50000000 {
		t.Fatalf("expected 50000000, got %d", got)
	}
	if got := media.DeclaredSize("https://cdn.example/videoplayback?itag=137"); got != 0 {
		t.Fatalf("expected 0 for missing clen, got %d", got)
	}
}

func TestIsRedirectVariant(t *testing.T) {
	if !media.IsRedirectVariant("https://cdn.example/videoplayback?cms_redirect=yes&itag=251") {
		t.Fatal("expected redirect variant")
	}
	if media.IsRedirectVariant("https://cdn.example/videoplayback?itag=251") {
		t.Fatal("expected non-redirect variant")
	}
}

func TestNormalizeURLStripsStreamingParams(t *testing.T) {
	in := "https://cdn.example/videoplayback?expire=123&range=0-999&itag=137&rn=5&rbuf=0&ump=1&srfvp=1&cpn=xyz&cver=2&alr=yes&clen=1000&sig=abc"
	out := media.NormalizeURL(in)

	for _, stripped := range []string{"range=", "rn=", "rbuf=", "ump=", "srfvp=", "cpn=", "cver=", "alr="} {
		if strings.Contains(out, stripped) {
			t.Errorf("expected %q to be stripped from %q", stripped, out)
		}
	}
	// Remaining parameters preserved in relative order.
	want := "https://cdn.example/videoplayback?expire=123&itag=137&clen=1000&sig=abc"
	if out != want {
		t.Fatalf("NormalizeURL = %q, want %q", out, want)
	}
}

func TestNormalizeURLLeavesCleanURLAlone(t *testing.T) {
	in := "https://cdn.example/videoplayback?itag=140&clen=3000000"
	if out := media.NormalizeURL(in); out != in {
		t.Fatalf("expected unchanged URL, got %q", out)
	}
}

func TestIsPlaybackURL(t *testing.T) {
	if !media.IsPlaybackURL("https://cdn.example/videoplayback?itag=140") {
		t.Fatal("expected playback URL")
	}
	if media.IsPlaybackURL("https://cdn.example/api/stats") {
		t.Fatal("expected non-playback URL")
	}
}
