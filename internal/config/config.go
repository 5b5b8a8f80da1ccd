// Package config loads runtime configuration. Precedence, lowest to
// highest: flag defaults, YAML config file, ARCHPAD_ environment
// variables, explicitly set flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the full runtime configuration.
type Config struct {
	// DBPath is the SQLite database file backing the local store.
	DBPath string `koanf:"db_path" validate:"required"`
	// ListenAddr is where the local shell server listens.
	ListenAddr string `koanf:"listen_addr" validate:"required"`
	// Origin is the upstream the cache worker fetches assets from.
	Origin string `koanf:"origin" validate:"required,url"`
	// APIBase is the base URL for /api/terms and /api/formulas.
	APIBase string `koanf:"api_base" validate:"required,url"`

	// CacheDir roots the named response caches.
	CacheDir string `koanf:"cache_dir" validate:"required"`
	// CacheVersion is the token embedded in the cache name. Bumping it is
	// the only way to invalidate the previous asset set.
	CacheVersion int `koanf:"cache_version" validate:"min=1"`
	// Manifest lists the asset paths precached at install time.
	Manifest []string `koanf:"manifest" validate:"min=1,dive,startswith=/"`

	// SeedRepo is an optional git URL holding the fallback glossary.
	SeedRepo string `koanf:"seed_repo"`
	// SeedDir is where the seed repo is checked out (or, without
	// SeedRepo, a plain directory with terms.json / formulas.json).
	SeedDir string `koanf:"seed_dir"`

	// StudyPoll and StudyThreshold drive the study-time accumulator.
	StudyPoll      time.Duration `koanf:"study_poll" validate:"gt=0"`
	StudyThreshold time.Duration `koanf:"study_threshold" validate:"gt=0"`
}

// Flags returns the flag set Load parses, with the built-in defaults.
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("archpad", pflag.ContinueOnError)
	f.String("config", "", "Path to a YAML config file")
	f.String("db_path", "archpad.db", "Path to the SQLite database file")
	f.String("listen_addr", "127.0.0.1:8484", "Local shell server listen address")
	f.String("origin", "http://localhost:3000", "Upstream origin for asset fetches")
	f.String("api_base", "http://localhost:3000", "Base URL for the terms/formulas API")
	f.String("cache_dir", "cache", "Directory holding the named response caches")
	f.Int("cache_version", 1, "Cache version token; bump to invalidate the asset set")
	f.StringSlice("manifest", []string{
		"/",
		"/index.html",
		"/manifest.json",
		"/app.js",
		"/app.css",
		"/icons/icon-192.png",
		"/icons/icon-512.png",
		"/calculator",
		"/glossary",
		"/exam",
		"/portfolio",
	}, "Asset paths precached at install time")
	f.String("seed_repo", "", "Optional git URL of the seed content repository")
	f.String("seed_dir", "seed", "Checkout directory for the seed content")
	f.Duration("study_poll", 5*time.Second, "Study-time polling cadence")
	f.Duration("study_threshold", 60*time.Second, "Minimum study-time segment committed by the poller")
	return f
}

// Load parses args and assembles the configuration.
func Load(args []string) (*Config, error) {
	flags := Flags()
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	k := koanf.New(".")

	if cfgFile, _ := flags.GetString("config"); cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider("ARCHPAD_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "ARCHPAD_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Last so explicitly set flags win; unset flags only contribute their
	// defaults for keys nothing else provided.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
