// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package recommend

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/everolfe/resonate/internal/metrics"
	"github.com/everolfe/resonate/internal/models"
)

// Engine runs the registered generation strategies and aggregates
// their candidates into a ranked, persisted result set.
type Engine struct {
	cfg        *Config
	generators []Generator
	tracks     TrackStore
	prefs      PreferenceStore
	recs       RecommendationStore
	logger     zerolog.Logger
}

// NewEngine wires the engine. Generators run in registration order
// for deterministic aggregation.
func NewEngine(cfg *Config, tracks TrackStore, prefs PreferenceStore, recs RecommendationStore, logger zerolog.Logger, generators ...Generator) *Engine {
	return &Engine{
		cfg:        cfg,
		generators: generators,
		tracks:     tracks,
		prefs:      prefs,
		recs:       recs,
		logger:     logger.With().Str("component", "engine").Logger(),
	}
}

// Generate produces recommendations for the user. It never returns an
// error: failed generators are logged and skipped, failed persistence
// keeps the in-memory result, and the worst case is an empty slice.
// Results are sorted by score descending with track ID ascending as
// the tie-break, and capped at the configured total.
func (e *Engine) Generate(ctx context.Context, userID int64) []models.Recommendation {
	start := time.Now()
	defer func() {
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	}()

	candidates := e.runGenerators(ctx, userID)
	if len(candidates) == 0 {
		e.logger.Info().Int64("user_id", userID).Msg("no candidates generated")
		return []models.Recommendation{}
	}

	owned, err := ownedTrackIDs(ctx, e.prefs, userID)
	if err != nil {
		// Without the owned set the exclusion invariant cannot be
		// honored, so no recommendations are better than wrong ones.
		e.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to load owned tracks, aborting aggregation")
		return []models.Recommendation{}
	}

	merged := e.aggregate(ctx, candidates, owned)
	e.persist(ctx, merged)

	e.logger.Info().
		Int64("user_id", userID).
		Int("candidates", len(candidates)).
		Int("results", len(merged)).
		Dur("elapsed", time.Since(start)).
		Msg("generation complete")
	return merged
}

// runGenerators executes every strategy concurrently and concatenates
// their results in registration order, so aggregation stays
// deterministic regardless of completion order.
func (e *Engine) runGenerators(ctx context.Context, userID int64) []models.Recommendation {
	results := make([][]models.Recommendation, len(e.generators))

	var wg sync.WaitGroup
	for i, gen := range e.generators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := gen.Generate(ctx, userID)
			if err != nil {
				metrics.GenerationErrors.WithLabelValues(string(gen.Source())).Inc()
				e.logger.Warn().Err(err).
					Str("generator", gen.Name()).
					Int64("user_id", userID).
					Msg("generator failed, continuing without it")
				return
			}
			metrics.GenerationCandidates.WithLabelValues(string(gen.Source())).Observe(float64(len(out)))
			results[i] = out
		}()
	}
	wg.Wait()

	var all []models.Recommendation
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// aggregate applies the pipeline invariants: drop owned tracks,
// re-validate against the catalog, refresh display metadata,
// deduplicate keeping the best score, rank, and truncate.
func (e *Engine) aggregate(ctx context.Context, candidates []models.Recommendation, owned map[int64]bool) []models.Recommendation {
	best := make(map[int64]models.Recommendation, len(candidates))

	for _, cand := range candidates {
		if owned[cand.TrackID] {
			metrics.CandidatesDropped.WithLabelValues("owned").Inc()
			continue
		}

		track, err := e.tracks.FindByID(ctx, cand.TrackID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				e.logger.Warn().Err(err).Int64("track_id", cand.TrackID).Msg("catalog lookup failed during aggregation")
			}
			metrics.CandidatesDropped.WithLabelValues("invalid").Inc()
			continue
		}
		if !track.Valid() {
			metrics.CandidatesDropped.WithLabelValues("invalid").Inc()
			continue
		}
		cand.TrackTitle = track.Title
		cand.TrackArtist = track.Artist
		cand.TrackAlbum = track.Album

		// Keep the highest score per track. On equal scores the first
		// candidate wins, preserving generator registration order.
		if existing, ok := best[cand.TrackID]; ok {
			metrics.CandidatesDropped.WithLabelValues("duplicate").Inc()
			if cand.Score <= existing.Score {
				continue
			}
		}
		best[cand.TrackID] = cand
	}

	merged := make([]models.Recommendation, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].TrackID < merged[j].TrackID
	})

	if len(merged) > e.cfg.TotalLimit {
		for range len(merged) - e.cfg.TotalLimit {
			metrics.CandidatesDropped.WithLabelValues("over_limit").Inc()
		}
		merged = merged[:e.cfg.TotalLimit]
	}
	return merged
}

// persist upserts each result independently. A failed row is logged
// and kept in the returned set; persistence is best effort.
func (e *Engine) persist(ctx context.Context, recs []models.Recommendation) {
	for i := range recs {
		if err := e.recs.Upsert(ctx, &recs[i]); err != nil {
			e.logger.Error().Err(err).
				Int64("user_id", recs[i].UserID).
				Int64("track_id", recs[i].TrackID).
				Msg("failed to persist recommendation")
			continue
		}
		metrics.RecommendationsPersisted.Inc()
	}
}
