package preflight_test

import (
	"os"
	"path/filepath"
	"testing"

	"pairmux/internal/preflight"
)

func TestCheckDirectoryAccessPasses(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Watch directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for %s, got %+v", dir, result)
	}
}

func TestCheckDirectoryAccessMissing(t *testing.T) {
	result := preflight.CheckDirectoryAccess("Watch directory", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatalf("expected failure for missing directory, got %+v", result)
	}
}

func TestCheckDirectoryAccessNotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result := preflight.CheckDirectoryAccess("Watch directory", path)
	if result.Passed {
		t.Fatalf("expected failure for non-directory, got %+v", result)
	}
}

func TestCheckDirectoryAccessReadOnly(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	if err := os.Mkdir(dir, 0o555); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	result := preflight.CheckDirectoryAccess("Output directory", dir)
	if result.Passed {
		t.Fatalf("expected failure for read-only directory, got %+v", result)
	}
}

func TestFailedFiltersResults(t *testing.T) {
	results := []preflight.Result{
		{Name: "a", Passed: true},
		{Name: "b", Passed: false},
		{Name: "c", Passed: false},
	}
	failed := preflight.Failed(results)
	if len(failed) != 2 || failed[0].Name != "b" || failed[1].Name != "c" {
		t.Fatalf("unexpected failed set: %+v", failed)
	}
}
