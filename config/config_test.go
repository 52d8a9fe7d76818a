package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runner.MaxConcurrentDownloads != 4 {
		t.Errorf("MaxConcurrentDownloads = %d, want 4", cfg.Runner.MaxConcurrentDownloads)
	}
	if cfg.Scheduler.StaleRunTimeout != 30*time.Minute {
		t.Errorf("StaleRunTimeout = %v, want 30m", cfg.Scheduler.StaleRunTimeout)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fallpaper.conf")
	content := "# comment\nFALLPAPER_RUNNER_MAX_CONCURRENT_DOWNLOADS=8\nRUNNER_IMAGE_DIRECTORY=\"/data/images\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runner.ImageDir != "/data/images" {
		t.Errorf("ImageDir = %q, want /data/images", cfg.Runner.ImageDir)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fallpaper.conf")
	if err := os.WriteFile(path, []byte("RUNNER_MAX_CONCURRENT_DOWNLOADS=8\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FALLPAPER_RUNNER_MAX_CONCURRENT_DOWNLOADS", "16")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runner.MaxConcurrentDownloads != 16 {
		t.Errorf("MaxConcurrentDownloads = %d, want 16 (env should win over file)", cfg.Runner.MaxConcurrentDownloads)
	}
}

func TestEnvEmptyDoesNotOverride(t *testing.T) {
	t.Setenv("FALLPAPER_RUNNER_MAX_CONCURRENT_DOWNLOADS", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runner.MaxConcurrentDownloads != 4 {
		t.Errorf("MaxConcurrentDownloads = %d, want default 4 when env is empty", cfg.Runner.MaxConcurrentDownloads)
	}
}

func TestInvalidBooleanRejected(t *testing.T) {
	t.Setenv("FALLPAPER_DATABASE_QUERY_LOGGING", "maybe")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid boolean, got nil")
	}
}

func TestSnapshotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fallpaper.conf")
	os.WriteFile(path, []byte("RUNNER_MAX_CONCURRENT_DOWNLOADS=2\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	snap := NewSnapshot(cfg)
	if snap.Current().Runner.MaxConcurrentDownloads != 2 {
		t.Fatalf("initial snapshot wrong")
	}

	os.WriteFile(path, []byte("RUNNER_MAX_CONCURRENT_DOWNLOADS=9\n"), 0o644)
	if _, err := snap.Reload(path); err != nil {
		t.Fatal(err)
	}
	if snap.Current().Runner.MaxConcurrentDownloads != 9 {
		t.Fatalf("reload did not swap in new value")
	}
}
