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

// externalSimilarGenerator asks the metadata provider for tracks
// similar to the user's favorites. External candidates carry a fixed
// confidence score because provider similarity is not comparable to
// the local scorer's output.
type externalSimilarGenerator struct {
	provider   MetadataProvider
	resolver   *Resolver
	tracks     TrackStore
	prefs      PreferenceStore
	seedLimit  int
	minRequest int
	limit      int
	score      float64
	logger     zerolog.Logger
}

// NewExternalSimilar builds the provider-backed similarity strategy.
func NewExternalSimilar(cfg *Config, provider MetadataProvider, resolver *Resolver, tracks TrackStore, prefs PreferenceStore, logger zerolog.Logger) Generator {
	return &externalSimilarGenerator{
		provider:   provider,
		resolver:   resolver,
		tracks:     tracks,
		prefs:      prefs,
		seedLimit:  cfg.ExternalSeeds,
		minRequest: cfg.ExternalMinRequest,
		limit:      cfg.ExternalLimit,
		score:      cfg.ExternalScore,
		logger:     logger.With().Str("generator", "external-similar").Logger(),
	}
}

func (g *externalSimilarGenerator) Name() string { return "external-similar" }

func (g *externalSimilarGenerator) Source() models.SourceKind { return models.SourceExternalSimilar }

// Generate queries the provider once per favorite seed until the
// candidate cap is reached. Provider failures for one seed are logged
// and skipped; the remaining seeds still contribute.
func (g *externalSimilarGenerator) Generate(ctx context.Context, userID int64) ([]models.Recommendation, error) {
	favorites, err := g.prefs.FindFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 {
		return nil, nil
	}
	if len(favorites) > g.seedLimit {
		favorites = favorites[:g.seedLimit]
	}

	var out []models.Recommendation
	picked := make(map[int64]bool)

	for _, fav := range favorites {
		if len(out) >= g.limit {
			break
		}

		seedTrack, err := g.tracks.FindByID(ctx, fav.TrackID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
			continue
		}

		similar, err := g.provider.GetSimilarTracks(ctx, seedTrack.Artist, seedTrack.Title, g.minRequest)
		if err != nil {
			g.logger.Warn().Err(err).
				Str("seed_title", seedTrack.Title).
				Str("seed_artist", seedTrack.Artist).
				Msg("provider similar lookup failed, skipping seed")
			continue
		}

		for _, d := range similar {
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
			if picked[track.ID] || track.ID == seedTrack.ID {
				continue
			}

			picked[track.ID] = true
			out = append(out, models.Recommendation{
				UserID:      userID,
				TrackID:     track.ID,
				Source:      models.SourceExternalSimilar,
				Score:       g.score,
				TrackTitle:  track.Title,
				TrackArtist: track.Artist,
				TrackAlbum:  track.Album,
			})
		}
	}

	g.logger.Debug().
		Int64("user_id", userID).
		Int("seeds", len(favorites)).
		Int("candidates", len(out)).
		Msg("external similar pass complete")
	return out, nil
}
