// Package config loads endpoint defaults (stale time, prefetch
// concurrency) from a TOML file, the way five82-flyer loads its daemon's
// config: fall back to defaults when the file is missing, keep only
// positive parsed values, wrap errors with context.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the values used to construct an Endpoint's
// EndpointOptions and to bound a PrefetchMany call.
type Config struct {
	DefaultStaleTime    time.Duration
	PrefetchConcurrency int
}

const (
	defaultStaleTime           = 30 * time.Second
	defaultPrefetchConcurrency = 4
)

// Load parses the config file at path, falling back to defaults when the
// file does not exist.
func Load(path string) (Config, error) {
	cfg := Config{
		DefaultStaleTime:    defaultStaleTime,
		PrefetchConcurrency: defaultPrefetchConcurrency,
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		DefaultStaleTimeSeconds int `toml:"default_stale_time_seconds"`
		PrefetchConcurrency     int `toml:"prefetch_concurrency"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if raw.DefaultStaleTimeSeconds > 0 {
		cfg.DefaultStaleTime = time.Duration(raw.DefaultStaleTimeSeconds) * time.Second
	}
	if raw.PrefetchConcurrency > 0 {
		cfg.PrefetchConcurrency = raw.PrefetchConcurrency
	}

	return cfg, nil
}
