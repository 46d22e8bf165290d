package daemon_test

import (
	"context"
	"strings"
	"testing"

	"pairmux/internal/daemon"
	"pairmux/internal/logging"
	"pairmux/internal/testsupport"
)

func TestNewWiresComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	defer d.Close()

	if sessions := d.Sessions(); len(sessions) != 0 {
		t.Fatalf("expected empty session table, got %d", len(sessions))
	}
}

func TestRunFailsPreflightWithMissingTool(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegBinary("definitely-not-a-real-binary"))

	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	defer d.Close()

	err = d.Run(context.Background())
	if err == nil {
		t.Fatal("expected preflight failure")
	}
	if !strings.Contains(err.Error(), "preflight") {
		t.Fatalf("expected preflight error, got %v", err)
	}
}

func TestNewRequiresConfigAndLogger(t *testing.T) {
	if _, err := daemon.New(nil, logging.NewNop()); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := daemon.New(testsupport.NewConfig(t), nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
