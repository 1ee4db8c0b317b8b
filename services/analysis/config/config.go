// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads tool configuration from a YAML file layered with
// SPOTBUGS_* environment variables.
//
// Precedence, lowest to highest: built-in defaults, the YAML file, then
// environment variables. A missing config file is not an error; the
// defaults are complete enough to run with nothing on disk.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file probed when no explicit path is given.
const DefaultFileName = "spotbugs.yaml"

// ServerConfig holds the HTTP service settings.
type ServerConfig struct {
	// Host is the listen address.
	// Env: SPOTBUGS_SERVER_HOST (default: "0.0.0.0")
	Host string `yaml:"host"`

	// Port is the listen port.
	// Env: SPOTBUGS_SERVER_PORT (default: 8080)
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// AuthToken, when set, requires a matching bearer token on every
	// API request. Empty disables authorization entirely.
	// Env: SPOTBUGS_AUTH_TOKEN (default: "")
	AuthToken string `yaml:"auth_token"`

	// RateLimitPerMin caps requests per client per minute. 0 disables
	// rate limiting.
	// Env: SPOTBUGS_RATE_LIMIT_PER_MIN (default: 120)
	RateLimitPerMin int `yaml:"rate_limit_per_min" validate:"min=0"`

	// RateBurst is the burst allowance on top of the steady rate.
	// Env: SPOTBUGS_RATE_BURST (default: 20)
	RateBurst int `yaml:"rate_burst" validate:"min=0"`
}

// ScanConfig holds the defaults applied to every scan.
type ScanConfig struct {
	// Concurrency bounds parallel artifact loading and class visits.
	// Env: SPOTBUGS_SCAN_CONCURRENCY (default: 8)
	Concurrency int `yaml:"concurrency" validate:"min=1,max=256"`

	// Detectors restricts scans to the named detector IDs. Empty runs
	// every registered detector.
	// Env: SPOTBUGS_DETECTORS (comma-separated, default: "")
	Detectors []string `yaml:"detectors"`

	// CacheEnabled turns the content-addressed class metadata cache on.
	// Env: SPOTBUGS_CACHE_ENABLED (default: "true")
	CacheEnabled bool `yaml:"cache_enabled"`
}

// StoreConfig holds the BadgerDB settings shared by the metadata cache and
// the run store.
type StoreConfig struct {
	// Path is the store directory. Empty means a per-user default under
	// the home directory, resolved by the command that opens the store.
	// Env: SPOTBUGS_STORE_DIR (default: "")
	Path string `yaml:"path"`

	// InMemory runs the store without touching disk. Intended for tests
	// and ephemeral CI scans.
	// Env: SPOTBUGS_STORE_IN_MEMORY (default: "false")
	InMemory bool `yaml:"in_memory"`

	// CacheTTLDays bounds how long cached class metadata lives.
	// Env: SPOTBUGS_CACHE_TTL_DAYS (default: 14)
	CacheTTLDays int `yaml:"cache_ttl_days" validate:"min=0"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	// Level is the minimum level emitted.
	// Env: SPOTBUGS_LOG_LEVEL (default: "info")
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format selects the slog handler.
	// Env: SPOTBUGS_LOG_FORMAT (default: "text")
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Config is the full tool configuration.
//
// Thread Safety: Config is read-only after Load returns. Safe to share.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Scan   ScanConfig   `yaml:"scan"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			RateLimitPerMin: 120,
			RateBurst:       20,
		},
		Scan: ScanConfig{
			Concurrency:  8,
			CacheEnabled: true,
		},
		Store: StoreConfig{
			CacheTTLDays: 14,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path, and
// SPOTBUGS_* environment variables, in that order.
//
// # Inputs
//
//   - path: config file location. "" probes DefaultFileName in the working
//     directory. A file that does not exist is skipped, not an error.
//
// # Outputs
//
//   - *Config: validated configuration.
//   - error: unreadable or invalid YAML, or validation failure.
func Load(path string) (*Config, error) {
	// A .env beside the process supplies environment variables without
	// exporting them. Missing is fine.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	probe := path == ""
	if probe {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment carry the day.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// NewLogger builds a slog.Logger on stderr per the log configuration.
func NewLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyEnv overlays SPOTBUGS_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Host = envString("SPOTBUGS_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = envInt("SPOTBUGS_SERVER_PORT", cfg.Server.Port)
	cfg.Server.AuthToken = envString("SPOTBUGS_AUTH_TOKEN", cfg.Server.AuthToken)
	cfg.Server.RateLimitPerMin = envInt("SPOTBUGS_RATE_LIMIT_PER_MIN", cfg.Server.RateLimitPerMin)
	cfg.Server.RateBurst = envInt("SPOTBUGS_RATE_BURST", cfg.Server.RateBurst)

	cfg.Scan.Concurrency = envInt("SPOTBUGS_SCAN_CONCURRENCY", cfg.Scan.Concurrency)
	cfg.Scan.Detectors = envList("SPOTBUGS_DETECTORS", cfg.Scan.Detectors)
	cfg.Scan.CacheEnabled = envBool("SPOTBUGS_CACHE_ENABLED", cfg.Scan.CacheEnabled)

	cfg.Store.Path = envString("SPOTBUGS_STORE_DIR", cfg.Store.Path)
	cfg.Store.InMemory = envBool("SPOTBUGS_STORE_IN_MEMORY", cfg.Store.InMemory)
	cfg.Store.CacheTTLDays = envInt("SPOTBUGS_CACHE_TTL_DAYS", cfg.Store.CacheTTLDays)

	cfg.Log.Level = envString("SPOTBUGS_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("SPOTBUGS_LOG_FORMAT", cfg.Log.Format)
}

// envString reads a string environment variable with a default value.
func envString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envBool reads a boolean environment variable with a default value.
func envBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// envList reads a comma-separated environment variable with a default value.
func envList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
