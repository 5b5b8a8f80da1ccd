package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults apply with no input", func(t *testing.T) {
		cfg, err := Load(nil)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.DBPath != "archpad.db" {
			t.Errorf("Expected default db path, got %q", cfg.DBPath)
		}
		if cfg.CacheVersion != 1 {
			t.Errorf("Expected default cache version 1, got %d", cfg.CacheVersion)
		}
		if cfg.StudyThreshold != 60*time.Second {
			t.Errorf("Expected default study threshold 60s, got %v", cfg.StudyThreshold)
		}
		if len(cfg.Manifest) == 0 {
			t.Error("Expected a non-empty default manifest")
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		cfg, err := Load([]string{"--db_path", "other.db", "--cache_version", "3"})
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.DBPath != "other.db" {
			t.Errorf("Expected flag value, got %q", cfg.DBPath)
		}
		if cfg.CacheVersion != 3 {
			t.Errorf("Expected cache version 3, got %d", cfg.CacheVersion)
		}
	})

	t.Run("config file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "archpad.yaml")
		if err := os.WriteFile(path, []byte("db_path: from-file.db\nstudy_threshold: 90s\n"), 0o644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		cfg, err := Load([]string{"--config", path})
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.DBPath != "from-file.db" {
			t.Errorf("Expected file value, got %q", cfg.DBPath)
		}
		if cfg.StudyThreshold != 90*time.Second {
			t.Errorf("Expected 90s threshold from file, got %v", cfg.StudyThreshold)
		}
	})

	t.Run("environment overrides the config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "archpad.yaml")
		if err := os.WriteFile(path, []byte("db_path: from-file.db\n"), 0o644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}
		t.Setenv("ARCHPAD_DB_PATH", "from-env.db")

		cfg, err := Load([]string{"--config", path})
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.DBPath != "from-env.db" {
			t.Errorf("Expected env value, got %q", cfg.DBPath)
		}
	})

	t.Run("explicit flags beat the environment", func(t *testing.T) {
		t.Setenv("ARCHPAD_DB_PATH", "from-env.db")

		cfg, err := Load([]string{"--db_path", "from-flag.db"})
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.DBPath != "from-flag.db" {
			t.Errorf("Expected flag value, got %q", cfg.DBPath)
		}
	})

	t.Run("invalid values fail validation", func(t *testing.T) {
		if _, err := Load([]string{"--origin", "not a url"}); err == nil {
			t.Error("Expected a validation error for a malformed origin")
		}
		if _, err := Load([]string{"--cache_version", "0"}); err == nil {
			t.Error("Expected a validation error for cache version 0")
		}
	})

	t.Run("unknown flags are an error", func(t *testing.T) {
		if _, err := Load([]string{"--nope"}); err == nil {
			t.Error("Expected an error for an unknown flag")
		}
	})
}
