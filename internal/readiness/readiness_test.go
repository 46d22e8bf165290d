package readiness_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pairmux/internal/readiness"
)

// sequenceProbe replays a synthetic size sequence; the final reading repeats
// once the sequence is exhausted. A negative value simulates a missing file.
func sequenceProbe(sizes []int64) readiness.Probe {
	idx := 0
	return func(string) (int64, error) {
		size := sizes[len(sizes)-1]
		if idx < len(sizes) {
			size = sizes[idx]
			idx++
		}
		if size < 0 {
			return 0, errors.New("file missing")
		}
		return size, nil
	}
}

func newFastDetector(probe readiness.Probe, timeout time.Duration) *readiness.Detector {
	return readiness.New(readiness.Options{
		CheckInterval:      time.Millisecond,
		StabilityThreshold: 3,
		Timeout:            timeout,
	}, readiness.WithProbe(probe))
}

func TestWaitUntilStableAfterThreeEqualReadings(t *testing.T) {
	probe := sequenceProbe([]int64{100, 500, 500, 500, 500})
	detector := newFastDetector(probe, time.Second)
	if !detector.WaitUntilStable(context.Background(), "f") {
		t.Fatal("expected file to stabilize")
	}
}

func TestWaitUntilStableResetsOnSizeChange(t *testing.T) {
	// Two equal readings, a change, then stability again; must still succeed,
	// but only thanks to the trailing run.
	probe := sequenceProbe([]int64{500, 500, 600, 600, 600, 600, 600})
	detector := newFastDetector(probe, time.Second)
	if !detector.WaitUntilStable(context.Background(), "f") {
		t.Fatal("expected trailing stable run to succeed")
	}
}

func TestWaitUntilStableGrowingFileTimesOut(t *testing.T) {
	size := int64(0)
	probe := func(string) (int64, error) {
		size += 1024
		return size, nil
	}
	detector := newFastDetector(probe, 25*time.Millisecond)
	if detector.WaitUntilStable(context.Background(), "f") {
		t.Fatal("a continuously growing file must not be reported stable")
	}
}

func TestWaitUntilStableZeroSizeNeverStable(t *testing.T) {
	probe := sequenceProbe([]int64{0, 0, 0, 0, 0, 0})
	detector := newFastDetector(probe, 25*time.Millisecond)
	if detector.WaitUntilStable(context.Background(), "f") {
		t.Fatal("an empty file must not be reported stable")
	}
}

func TestWaitUntilStableMissingFileResetsCounter(t *testing.T) {
	probe := sequenceProbe([]int64{500, 500, -1, 500, 500, 500, 500})
	detector := newFastDetector(probe, time.Second)
	if !detector.WaitUntilStable(context.Background(), "f") {
		t.Fatal("expected recovery after a briefly missing file")
	}
}

func TestWaitUntilStableHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	probe := sequenceProbe([]int64{500, 500, 500, 500})
	detector := newFastDetector(probe, time.Minute)
	if detector.WaitUntilStable(ctx, "f") {
		t.Fatal("canceled context must abort the wait")
	}
}

func TestWaitUntilStableRealFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video_1_a.mp4")
	if err := os.WriteFile(path, []byte("fragment data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	detector := readiness.New(readiness.Options{
		CheckInterval:      time.Millisecond,
		StabilityThreshold: 3,
		Timeout:            time.Second,
	})
	if !detector.WaitUntilStable(context.Background(), path) {
		t.Fatal("a fully written file should stabilize")
	}
}
