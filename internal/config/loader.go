// Package config provides configuration loading for fieldtag.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BACKEND_BASE_URL, QUEUE_MAX_RETRIES, ...)
//  2. YAML config file (~/.config/fieldtag/config.yaml)
//  3. Hardcoded defaults
//
// The configPath parameter specifies the YAML file to load. If empty, the
// default path is used; a missing file is not an error and leaves the
// defaults in place.
//
// Environment variables use an underscore separator and are uppercased:
// the first underscore separates section from field.
//
//	BACKEND_BASE_URL    -> backend.base_url
//	QUEUE_SETTLE_DELAY  -> queue.settle_delay
//	GPS_TIMEOUT         -> gps.timeout
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "fieldtag", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate via the descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envToKey maps BACKEND_BASE_URL -> backend.base_url: the first underscore
// splits section from field, later underscores stay in the field name.
func envToKey(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// EnsureStateDir creates the fieldtag data directory if it doesn't exist.
// Queue and state files default to living under it.
func EnsureStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".local", "share", "fieldtag")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return dir, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = Duration(30 * time.Second)
	}

	if cfg.Queue.Path == "" {
		if dir, err := EnsureStateDir(); err == nil {
			cfg.Queue.Path = filepath.Join(dir, "queue.json")
		}
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Queue.SettleDelay == 0 {
		cfg.Queue.SettleDelay = Duration(3 * time.Second)
	}
	if cfg.Queue.DrainRate == 0 {
		cfg.Queue.DrainRate = 1
	}

	if cfg.Capture.Device == "" {
		cfg.Capture.Device = "/dev/video0"
	}
	if cfg.Capture.TagWidth == 0 {
		cfg.Capture.TagWidth = 300
	}
	if cfg.Capture.TagHeight == 0 {
		cfg.Capture.TagHeight = 500
	}
	if cfg.Capture.JPEGQuality == 0 {
		cfg.Capture.JPEGQuality = 90
	}

	if cfg.GPS.Device == "" {
		cfg.GPS.Device = "/run/fieldtag/gps.json"
	}
	if cfg.GPS.Timeout == 0 {
		cfg.GPS.Timeout = Duration(10 * time.Second)
	}
	if cfg.GPS.PlacesRadius == 0 {
		cfg.GPS.PlacesRadius = 200
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9343
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.State.Path == "" {
		if dir, err := EnsureStateDir(); err == nil {
			cfg.State.Path = filepath.Join(dir, "state.json")
		}
	}
}
