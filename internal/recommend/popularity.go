// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package recommend

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/everolfe/resonate/internal/models"
)

// popularityGenerator surfaces the provider's global chart. It is the
// cold-start fallback: it needs no taste signals, so brand-new users
// always receive something.
type popularityGenerator struct {
	provider MetadataProvider
	resolver *Resolver
	limit    int
	score    float64
	logger   zerolog.Logger
}

// NewPopularity builds the global chart strategy.
func NewPopularity(cfg *Config, provider MetadataProvider, resolver *Resolver, logger zerolog.Logger) Generator {
	return &popularityGenerator{
		provider: provider,
		resolver: resolver,
		limit:    cfg.PopularLimit,
		score:    cfg.PopularScore,
		logger:   logger.With().Str("generator", "popular").Logger(),
	}
}

func (g *popularityGenerator) Name() string { return "popular" }

func (g *popularityGenerator) Source() models.SourceKind { return models.SourcePopular }

// Generate resolves the global chart into catalog tracks with a fixed
// moderate score, capped at the strategy limit.
func (g *popularityGenerator) Generate(ctx context.Context, userID int64) ([]models.Recommendation, error) {
	chart, err := g.provider.GetGlobalTopTracks(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.Recommendation
	picked := make(map[int64]bool)

	for _, d := range chart {
		if len(out) >= g.limit {
			break
		}

		track, err := g.resolver.Resolve(ctx, d)
		if err != nil {
			if errors.Is(err, ErrSkipCandidate) {
				continue
			}
			return nil, err
		}
		if picked[track.ID] {
			continue
		}

		picked[track.ID] = true
		out = append(out, models.Recommendation{
			UserID:      userID,
			TrackID:     track.ID,
			Source:      models.SourcePopular,
			Score:       g.score,
			TrackTitle:  track.Title,
			TrackArtist: track.Artist,
			TrackAlbum:  track.Album,
		})
	}

	g.logger.Debug().
		Int64("user_id", userID).
		Int("candidates", len(out)).
		Msg("popularity pass complete")
	return out, nil
}
