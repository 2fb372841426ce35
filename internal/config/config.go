// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

// Package config defines the application configuration and its layered
// loader. Precedence is ENV > YAML file > built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	LastFM   LastFMConfig   `koanf:"lastfm"`
	Engine   EngineConfig   `koanf:"engine"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path to the database file. Empty means in-memory, which is only
	// useful for tests.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads for DuckDB workers. 0 means use runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// LastFMConfig holds external metadata provider settings.
type LastFMConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`

	// MockMode serves canned metadata without network access. The
	// service runs fully offline in this mode.
	MockMode bool `koanf:"mock_mode"`

	// Timeout bounds each individual provider call.
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond paces outbound calls through a token bucket.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// EnrichWorkers bounds concurrent detail-enrichment calls.
	EnrichWorkers int `koanf:"enrich_workers"`

	// CachePath is the Badger directory for cached provider responses.
	// Empty means an in-memory cache.
	CachePath string        `koanf:"cache_path"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

// EngineConfig holds recommendation engine overrides. Zero values fall
// back to the engine's built-in defaults.
type EngineConfig struct {
	TotalLimit int `koanf:"total_limit"`

	// Scoring weight overrides. All four must be set together; they
	// are normalized to sum to 1.0 at validation time.
	GenreWeight      float64 `koanf:"genre_weight"`
	ArtistWeight     float64 `koanf:"artist_weight"`
	DurationWeight   float64 `koanf:"duration_weight"`
	PopularityWeight float64 `koanf:"popularity_weight"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. These are
// layered first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Path:      "/data/resonate.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		LastFM: LastFMConfig{
			BaseURL:           "https://ws.audioscrobbler.com/2.0/",
			APIKey:            "",
			MockMode:          true,
			Timeout:           10 * time.Second,
			RequestsPerSecond: 4,
			EnrichWorkers:     3,
			CachePath:         "",
			CacheTTL:          6 * time.Hour,
		},
		Engine: EngineConfig{
			TotalLimit: 25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for inconsistencies that would
// cause runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("server.rate_limit_reqs must be at least 1, got %d", c.Server.RateLimitReqs)
	}

	if !c.LastFM.MockMode {
		if strings.TrimSpace(c.LastFM.APIKey) == "" {
			return fmt.Errorf("lastfm.api_key is required when mock mode is disabled")
		}
		if !strings.HasPrefix(c.LastFM.BaseURL, "http://") && !strings.HasPrefix(c.LastFM.BaseURL, "https://") {
			return fmt.Errorf("lastfm.base_url must be an http(s) URL, got %q", c.LastFM.BaseURL)
		}
	}
	if c.LastFM.Timeout <= 0 {
		return fmt.Errorf("lastfm.timeout must be positive, got %s", c.LastFM.Timeout)
	}
	if c.LastFM.RequestsPerSecond <= 0 {
		return fmt.Errorf("lastfm.requests_per_second must be positive, got %g", c.LastFM.RequestsPerSecond)
	}
	if c.LastFM.EnrichWorkers < 1 {
		return fmt.Errorf("lastfm.enrich_workers must be at least 1, got %d", c.LastFM.EnrichWorkers)
	}

	if c.Engine.TotalLimit < 1 {
		return fmt.Errorf("engine.total_limit must be at least 1, got %d", c.Engine.TotalLimit)
	}
	if err := c.validateWeights(); err != nil {
		return err
	}

	return nil
}

// validateWeights checks the scoring weight overrides. Either all four
// are zero (use engine defaults) or all four are set and positive-sum.
func (c *Config) validateWeights() error {
	w := []float64{
		c.Engine.GenreWeight,
		c.Engine.ArtistWeight,
		c.Engine.DurationWeight,
		c.Engine.PopularityWeight,
	}

	var sum float64
	var nonZero int
	for _, v := range w {
		if v < 0 {
			return fmt.Errorf("engine weights must be non-negative, got %g", v)
		}
		if v > 0 {
			nonZero++
		}
		sum += v
	}

	if nonZero == 0 {
		return nil
	}
	if sum <= 0 {
		return fmt.Errorf("engine weights must sum to a positive value")
	}
	return nil
}

// WeightsSet reports whether any scoring weight override is present.
func (c *EngineConfig) WeightsSet() bool {
	return c.GenreWeight > 0 || c.ArtistWeight > 0 || c.DurationWeight > 0 || c.PopularityWeight > 0
}
