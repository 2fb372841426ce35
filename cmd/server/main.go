// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

// Package main is the entry point for the Resonate server.
//
// Resonate is a self-hosted music track recommendation service. It
// scores a local track catalog against user taste signals, blends in
// similar and chart tracks from the Last.fm API, and serves ranked,
// persisted recommendations over a small HTTP API.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file (Koanf v2)
//  2. Database: DuckDB catalog, preferences, and recommendation stores
//  3. Provider: Last.fm client with Badger response cache, rate
//     limiter, and circuit breaker (mock mode needs no network)
//  4. Engine: the four generation strategies plus aggregation
//  5. HTTP server: chi router with request ID, logging, CORS, rate
//     limiting, and Prometheus metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults.
//
// Common settings:
//   - HTTP_PORT: listen port (default 8080)
//   - DUCKDB_PATH: database file, empty for in-memory
//   - LASTFM_API_KEY: enables live provider mode
//   - LASTFM_MOCK_MODE: serve canned metadata, no network (default)
//   - LOG_LEVEL, LOG_FORMAT: zerolog settings
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, waits up to 10 seconds for in-flight
// requests, then closes the provider cache and the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/everolfe/resonate/internal/api"
	"github.com/everolfe/resonate/internal/config"
	"github.com/everolfe/resonate/internal/database"
	"github.com/everolfe/resonate/internal/lastfm"
	"github.com/everolfe/resonate/internal/logging"
	"github.com/everolfe/resonate/internal/recommend"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Default logger; config not yet available.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("provider_mock", cfg.LastFM.MockMode).
		Msg("Starting Resonate")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	tracks := database.NewTrackStore(db)
	prefs := database.NewPreferenceStore(db)
	recs := database.NewRecommendationStore(db)

	logger := logging.Logger()

	cache, err := lastfm.NewCache(cfg.LastFM.CachePath, cfg.LastFM.CacheTTL, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open provider cache")
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing provider cache")
		}
	}()

	provider := lastfm.NewBreakerClient(lastfm.New(cfg.LastFM, cache, logger))

	engine := buildEngine(cfg, tracks, prefs, recs, provider)

	handler := api.NewHandler(api.Deps{
		Engine:          engine,
		Recommendations: recs,
		Preferences:     prefs,
		Tracks:          tracks,
		Searcher:        provider,
		Health:          db,
		BreakerState:    provider.State,
	})
	router := api.NewRouter(handler, api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	}))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// buildEngine wires the four generation strategies into the
// aggregation engine, applying any configured scoring weight
// overrides.
func buildEngine(cfg *config.Config, tracks *database.TrackStore, prefs *database.PreferenceStore, recs *database.RecommendationStore, provider *lastfm.BreakerClient) *recommend.Engine {
	weights := recommend.DefaultWeights()
	if cfg.Engine.WeightsSet() {
		weights = recommend.Weights{
			Genre:      cfg.Engine.GenreWeight,
			Artist:     cfg.Engine.ArtistWeight,
			Duration:   cfg.Engine.DurationWeight,
			Popularity: cfg.Engine.PopularityWeight,
		}
	}
	scorer := recommend.NewScorer(weights)

	engineCfg := recommend.DefaultConfig()
	engineCfg.TotalLimit = cfg.Engine.TotalLimit

	logger := logging.Logger()
	resolver := recommend.NewResolver(tracks, logger)

	return recommend.NewEngine(engineCfg, tracks, prefs, recs, logger,
		recommend.NewContentBased(engineCfg, scorer, tracks, prefs, logger),
		recommend.NewRecencyBased(engineCfg, scorer, tracks, prefs, logger),
		recommend.NewExternalSimilar(engineCfg, provider, resolver, tracks, prefs, logger),
		recommend.NewPopularity(engineCfg, provider, resolver, logger),
	)
}
