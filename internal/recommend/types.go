// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

// Package recommend implements the hybrid recommendation engine: four
// generation strategies feeding an aggregation pipeline that filters,
// deduplicates, ranks, and persists scored track suggestions.
//
// The package depends only on the domain models; storage and the
// external metadata provider are injected through interfaces.
package recommend

import (
	"context"
	"fmt"

	"github.com/everolfe/resonate/internal/models"
)

// TrackStore is the catalog surface the engine needs.
type TrackStore interface {
	FindAll(ctx context.Context) ([]models.Track, error)
	FindByID(ctx context.Context, id int64) (*models.Track, error)
	FindByArtist(ctx context.Context, artist string) ([]models.Track, error)
	FindByTitleAndArtist(ctx context.Context, title, artist string) (*models.Track, error)
	Save(ctx context.Context, t *models.Track) error
	UpdatePlayCount(ctx context.Context, id, playCount int64) error
}

// PreferenceStore exposes the user taste signals that seed generation.
type PreferenceStore interface {
	FindByUser(ctx context.Context, userID int64) ([]models.UserPreference, error)
	FindHighRated(ctx context.Context, userID int64, minRating int) ([]models.UserPreference, error)
	FindFavorites(ctx context.Context, userID int64) ([]models.UserPreference, error)
	FindRecent(ctx context.Context, userID int64, limit int) ([]models.UserPreference, error)
}

// RecommendationStore persists aggregated results.
type RecommendationStore interface {
	Upsert(ctx context.Context, r *models.Recommendation) error
}

// MetadataProvider is the external catalog surface used by the
// external-similar and popularity strategies.
type MetadataProvider interface {
	GetSimilarTracks(ctx context.Context, artist, title string, limit int) ([]models.TrackDescriptor, error)
	GetGlobalTopTracks(ctx context.Context) ([]models.TrackDescriptor, error)
}

// Generator is one generation strategy. Implementations return raw
// candidates; ownership filtering, deduplication, and ranking happen
// in the engine's aggregation pipeline.
type Generator interface {
	Name() string
	Source() models.SourceKind
	Generate(ctx context.Context, userID int64) ([]models.Recommendation, error)
}

// Config carries the tunable limits of the generation pipeline.
type Config struct {
	// TotalLimit caps the aggregated result set.
	TotalLimit int

	// Content-based strategy: high-rated seeds.
	ContentSeeds     int
	ContentPerSeed   int
	ContentSoftCap   int
	ContentDampening float64

	// Recency strategy: recently listened seeds.
	RecencySeeds     int
	RecencyPerSeed   int
	RecencySoftCap   int
	RecencyDampening float64

	// External-similar strategy: favorite seeds against the provider.
	ExternalSeeds      int
	ExternalMinRequest int
	ExternalLimit      int
	ExternalScore      float64

	// Popularity strategy: global chart fallback.
	PopularLimit int
	PopularScore float64
}

// DefaultConfig returns the production pipeline limits.
func DefaultConfig() *Config {
	return &Config{
		TotalLimit: 25,

		ContentSeeds:     8,
		ContentPerSeed:   5,
		ContentSoftCap:   15,
		ContentDampening: 0.9,

		RecencySeeds:     8,
		RecencyPerSeed:   4,
		RecencySoftCap:   5,
		RecencyDampening: 0.7,

		ExternalSeeds:      8,
		ExternalMinRequest: 6,
		ExternalLimit:      8,
		ExternalScore:      0.85,

		PopularLimit: 7,
		PopularScore: 0.7,
	}
}

// Validate checks the configuration for values that would break the
// pipeline's invariants.
func (c *Config) Validate() error {
	if c.TotalLimit < 1 {
		return fmt.Errorf("total limit must be at least 1, got %d", c.TotalLimit)
	}
	for name, v := range map[string]int{
		"content seeds":        c.ContentSeeds,
		"content per seed":     c.ContentPerSeed,
		"content soft cap":     c.ContentSoftCap,
		"recency seeds":        c.RecencySeeds,
		"recency per seed":     c.RecencyPerSeed,
		"recency soft cap":     c.RecencySoftCap,
		"external seeds":       c.ExternalSeeds,
		"external min request": c.ExternalMinRequest,
		"external limit":       c.ExternalLimit,
		"popular limit":        c.PopularLimit,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, v)
		}
	}
	for name, v := range map[string]float64{
		"content dampening": c.ContentDampening,
		"recency dampening": c.RecencyDampening,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %g", name, v)
		}
	}
	for name, v := range map[string]float64{
		"external score": c.ExternalScore,
		"popular score":  c.PopularScore,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %g", name, v)
		}
	}
	return nil
}
