package history_test

import (
	"context"
	"path/filepath"
	"testing"

	"pairmux/internal/history"
)

func newStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.OpenPath(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestBeginAndComplete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	record, err := store.Begin(ctx, "1700000000_abc", history.SourceFolder, "/w/video_1_abc.mp4", "/w/audio_1_abc.mp4", "")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if record.Status != history.StatusMerging {
		t.Fatalf("expected merging status, got %s", record.Status)
	}

	if err := store.Complete(ctx, record.ID, "/out/clase_20240101_120000.mp4"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != history.StatusCompleted {
		t.Fatalf("expected completed status, got %s", got.Status)
	}
	if got.OutputPath != "/out/clase_20240101_120000.mp4" {
		t.Fatalf("unexpected output path %q", got.OutputPath)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Fatal("updated_at must not precede created_at")
	}
}

func TestFailRecordsReason(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	record, err := store.Begin(ctx, "1700000000_abc", history.SourceCapture, "/w/v.mp4", "/w/a.mp4", "")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.Fail(ctx, record.ID, "remux tool failed: exit code 1"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, err := store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != history.StatusFailed {
		t.Fatalf("expected failed status, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected error message to be stored")
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, _ := store.Begin(ctx, "k1", history.SourceFolder, "v", "a", "")
	second, _ := store.Begin(ctx, "k2", history.SourceFolder, "v", "a", "")
	if err := store.Complete(ctx, first.ID, "/out/one.mp4"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.Fail(ctx, second.ID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}

	failed, err := store.List(ctx, history.StatusFailed)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].SessionKey != "k2" {
		t.Fatalf("unexpected failed listing: %+v", failed)
	}
}

func TestStatsGroupsByStatus(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	r1, _ := store.Begin(ctx, "k1", history.SourceFolder, "v", "a", "")
	r2, _ := store.Begin(ctx, "k2", history.SourceFolder, "v", "a", "")
	_, _ = store.Begin(ctx, "k3", history.SourceCapture, "v", "a", "")
	_ = store.Complete(ctx, r1.ID, "/out/one.mp4")
	_ = store.Fail(ctx, r2.ID, "boom")

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[history.StatusCompleted] != 1 || stats[history.StatusFailed] != 1 || stats[history.StatusMerging] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, _ = store.Begin(ctx, "k1", history.SourceFolder, "v", "a", "")
	_, _ = store.Begin(ctx, "k2", history.SourceFolder, "v", "a", "")

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty history, got %d records", len(all))
	}
}

func TestCaptureProcessedIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	processed, err := store.CaptureProcessed(ctx, "session.har")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if processed {
		t.Fatal("capture must not be processed initially")
	}

	if err := store.MarkCaptureProcessed(ctx, "session.har"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := store.MarkCaptureProcessed(ctx, "session.har"); err != nil {
		t.Fatalf("second mark must not fail: %v", err)
	}

	processed, err = store.CaptureProcessed(ctx, "session.har")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !processed {
		t.Fatal("capture should be recorded as processed")
	}
}
