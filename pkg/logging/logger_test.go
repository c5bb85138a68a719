package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"wanderpod/pkg/config"
)

func TestInitCreatesLogsAndRotates(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.LogConfig{}
	cfg.Server.Path = filepath.Join(dir, "server.log")
	cfg.Server.Level = "DEBUG"
	cfg.Requests.Path = filepath.Join(dir, "requests.log")
	cfg.Requests.Level = "INFO"

	// Seed an existing log so rotation has something to move.
	if err := os.WriteFile(cfg.Server.Path, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cleanup, err := Init(cfg, nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	slog.Info("hello from test")
	RequestLogger.Info("request line")

	if _, err := os.Stat(cfg.Server.Path + ".old"); err != nil {
		t.Errorf("expected rotated server.log.old: %v", err)
	}

	data, err := os.ReadFile(cfg.Server.Path)
	if err != nil {
		t.Fatalf("reading server log: %v", err)
	}
	if len(data) == 0 {
		t.Error("server log is empty after writing a record")
	}

	reqData, err := os.ReadFile(cfg.Requests.Path)
	if err != nil {
		t.Fatalf("reading requests log: %v", err)
	}
	if len(reqData) == 0 {
		t.Error("requests log is empty after writing a record")
	}
}

func TestMultiHandlerLevels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")

	h, f, err := setupHandler(path, "WARN", false)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Error("INFO should be disabled at WARN level")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Error("ERROR should be enabled at WARN level")
	}
}
