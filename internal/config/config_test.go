package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutOverlay(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDownloadWorkers != 2 || cfg.MaxRetryAttempts != 3 {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yml")
	if err := os.WriteFile(path, []byte("max_download_workers: 16\nlog_level: debug\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDownloadWorkers != 16 {
		t.Fatalf("MaxDownloadWorkers = %d, want 16", cfg.MaxDownloadWorkers)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Fields the overlay didn't mention keep their defaults.
	if cfg.MaxRetryAttempts != 3 {
		t.Fatalf("MaxRetryAttempts = %d, want default 3", cfg.MaxRetryAttempts)
	}
}

func TestLoadMissingOverlayFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("Load with missing overlay path should not error: %v", err)
	}
}

func TestEnvOverridesOverlay(t *testing.T) {
	t.Setenv("MAX_DOWNLOAD_WORKERS", "32")
	t.Setenv("SKIP_TS_VALIDATION", "true")

	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yml")
	if err := os.WriteFile(path, []byte("max_download_workers: 16\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDownloadWorkers != 32 {
		t.Fatalf("MaxDownloadWorkers = %d, want env override 32", cfg.MaxDownloadWorkers)
	}
	if !cfg.SkipTSValidation {
		t.Fatalf("SkipTSValidation = false, want env override true")
	}
}
