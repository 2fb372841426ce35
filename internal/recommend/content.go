// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package recommend

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/everolfe/resonate/internal/models"
)

// seedFetcher selects the preferences that anchor a similarity pass.
type seedFetcher func(ctx context.Context, prefs PreferenceStore, userID int64, limit int) ([]models.UserPreference, error)

// similarityGenerator scores the local catalog against a set of seed
// tracks. Two strategies share it: content-based (high-rated seeds)
// and recency-based (recently listened seeds). They differ only in
// seed selection, limits, and dampening.
type similarityGenerator struct {
	name      string
	source    models.SourceKind
	scorer    *Scorer
	tracks    TrackStore
	prefs     PreferenceStore
	fetch     seedFetcher
	seedLimit int
	perSeed   int
	softCap   int
	dampening float64
	logger    zerolog.Logger
}

// NewContentBased builds the strategy seeded by the user's high-rated
// tracks.
func NewContentBased(cfg *Config, scorer *Scorer, tracks TrackStore, prefs PreferenceStore, logger zerolog.Logger) Generator {
	return &similarityGenerator{
		name:   "content-based",
		source: models.SourceContentBased,
		scorer: scorer,
		tracks: tracks,
		prefs:  prefs,
		fetch: func(ctx context.Context, prefs PreferenceStore, userID int64, limit int) ([]models.UserPreference, error) {
			seeds, err := prefs.FindHighRated(ctx, userID, models.HighRatingThreshold)
			if err != nil {
				return nil, err
			}
			if len(seeds) > limit {
				seeds = seeds[:limit]
			}
			return seeds, nil
		},
		seedLimit: cfg.ContentSeeds,
		perSeed:   cfg.ContentPerSeed,
		softCap:   cfg.ContentSoftCap,
		dampening: cfg.ContentDampening,
		logger:    logger.With().Str("generator", "content-based").Logger(),
	}
}

// NewRecencyBased builds the strategy seeded by the user's most recent
// listens. It surfaces a smaller, more volatile slice of taste than
// the content-based pass, so its caps and dampening are tighter.
func NewRecencyBased(cfg *Config, scorer *Scorer, tracks TrackStore, prefs PreferenceStore, logger zerolog.Logger) Generator {
	return &similarityGenerator{
		name:   "recency-based",
		source: models.SourceRecentBased,
		scorer: scorer,
		tracks: tracks,
		prefs:  prefs,
		fetch: func(ctx context.Context, prefs PreferenceStore, userID int64, limit int) ([]models.UserPreference, error) {
			return prefs.FindRecent(ctx, userID, limit)
		},
		seedLimit: cfg.RecencySeeds,
		perSeed:   cfg.RecencyPerSeed,
		softCap:   cfg.RecencySoftCap,
		dampening: cfg.RecencyDampening,
		logger:    logger.With().Str("generator", "recency-based").Logger(),
	}
}

func (g *similarityGenerator) Name() string { return g.name }

func (g *similarityGenerator) Source() models.SourceKind { return g.source }

// Generate walks the seeds in priority order. Each seed contributes up
// to perSeed of its best-scoring catalog tracks, with every score
// discounted by the strategy's flat dampening factor so similarity
// candidates never outrank an equally strong external match. Tracks by
// the seed's own artist are excluded to keep results diverse.
func (g *similarityGenerator) Generate(ctx context.Context, userID int64) ([]models.Recommendation, error) {
	seeds, err := g.fetch(ctx, g.prefs, userID, g.seedLimit)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	catalog, err := g.tracks.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	owned, err := ownedTrackIDs(ctx, g.prefs, userID)
	if err != nil {
		return nil, err
	}

	var out []models.Recommendation
	picked := make(map[int64]bool)

	for _, seed := range seeds {
		if len(out) >= g.softCap {
			break
		}

		seedTrack, err := g.tracks.FindByID(ctx, seed.TrackID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
			continue
		}

		scored := g.scoreCandidates(catalog, seedTrack, owned, picked)

		take := g.perSeed
		if remaining := g.softCap - len(out); remaining < take {
			take = remaining
		}
		if len(scored) > take {
			scored = scored[:take]
		}

		for _, cand := range scored {
			picked[cand.track.ID] = true
			out = append(out, models.Recommendation{
				UserID:      userID,
				TrackID:     cand.track.ID,
				Source:      g.source,
				Score:       cand.score,
				TrackTitle:  cand.track.Title,
				TrackArtist: cand.track.Artist,
				TrackAlbum:  cand.track.Album,
			})
		}
	}

	g.logger.Debug().
		Int64("user_id", userID).
		Int("seeds", len(seeds)).
		Int("candidates", len(out)).
		Msg("similarity pass complete")
	return out, nil
}

type scoredTrack struct {
	track models.Track
	score float64
}

// scoreCandidates ranks the catalog against one seed. Results are
// ordered by score descending with track ID as a stable tie-break.
func (g *similarityGenerator) scoreCandidates(catalog []models.Track, seed *models.Track, owned, picked map[int64]bool) []scoredTrack {
	var scored []scoredTrack
	for i := range catalog {
		cand := &catalog[i]
		if cand.ID == seed.ID || owned[cand.ID] || picked[cand.ID] {
			continue
		}
		if !cand.Valid() {
			continue
		}
		// Diversity rule: never recommend more of the seed's artist.
		if strings.EqualFold(strings.TrimSpace(cand.Artist), strings.TrimSpace(seed.Artist)) {
			continue
		}

		score := g.scorer.Score(cand, seed) * g.dampening
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredTrack{track: *cand, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].track.ID < scored[j].track.ID
	})
	return scored
}

// ownedTrackIDs returns every track the user already has a preference
// for. Owned tracks never appear as candidates.
func ownedTrackIDs(ctx context.Context, prefs PreferenceStore, userID int64) (map[int64]bool, error) {
	all, err := prefs.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	owned := make(map[int64]bool, len(all))
	for _, p := range all {
		owned[p.TrackID] = true
	}
	return owned, nil
}
