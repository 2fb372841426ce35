// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/everolfe/resonate/internal/models"
)

// ErrSkipCandidate marks a descriptor that cannot become a
// recommendation candidate. Generators treat it as a normal skip, not
// a failure.
var ErrSkipCandidate = errors.New("candidate skipped")

// Resolver maps external track descriptors onto catalog tracks,
// creating catalog entries for tracks seen for the first time.
type Resolver struct {
	tracks TrackStore
	logger zerolog.Logger
}

// NewResolver returns a resolver over the given catalog.
func NewResolver(tracks TrackStore, logger zerolog.Logger) *Resolver {
	return &Resolver{tracks: tracks, logger: logger}
}

// Resolve returns the catalog track for the descriptor. Descriptors
// without usable identity metadata return ErrSkipCandidate. Unknown
// tracks are persisted with the external source marker so repeated
// resolutions converge on one catalog row.
func (r *Resolver) Resolve(ctx context.Context, d models.TrackDescriptor) (*models.Track, error) {
	if !d.Valid() {
		return nil, ErrSkipCandidate
	}

	existing, err := r.tracks.FindByTitleAndArtist(ctx, d.Title, d.Artist)
	if err == nil {
		r.refreshPlayCount(ctx, existing, d.PlayCount)
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("catalog lookup failed for %q by %q: %w", d.Title, d.Artist, err)
	}

	track := &models.Track{
		Title:           d.Title,
		Artist:          d.Artist,
		Album:           d.Album,
		DurationSeconds: d.DurationSeconds,
		GenreTags:       d.GenreTags,
		PlayCount:       d.PlayCount,
		Source:          models.TrackSourceLastFM,
	}
	if err := r.tracks.Save(ctx, track); err != nil {
		return nil, fmt.Errorf("failed to persist resolved track %q by %q: %w", d.Title, d.Artist, err)
	}

	r.logger.Debug().
		Int64("track_id", track.ID).
		Str("title", track.Title).
		Str("artist", track.Artist).
		Msg("resolved external track into catalog")
	return track, nil
}

// refreshPlayCount keeps the catalog's popularity signal current when
// the provider reports a higher global play count. Best effort; a
// failed update leaves the stale count in place.
func (r *Resolver) refreshPlayCount(ctx context.Context, track *models.Track, playCount int64) {
	if playCount <= track.PlayCount {
		return
	}
	if err := r.tracks.UpdatePlayCount(ctx, track.ID, playCount); err != nil {
		r.logger.Debug().Err(err).
			Int64("track_id", track.ID).
			Msg("play count refresh failed")
		return
	}
	track.PlayCount = playCount
}
