// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package recommend

import (
	"strings"

	"github.com/everolfe/resonate/internal/models"
)

// Weights are the similarity factor weights. They are fixed at
// construction; changing weights means building a new Scorer.
type Weights struct {
	Genre      float64
	Artist     float64
	Duration   float64
	Popularity float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		Genre:      0.40,
		Artist:     0.30,
		Duration:   0.15,
		Popularity: 0.15,
	}
}

// Neutral factor values used when a signal is missing on either side.
const (
	neutralGenreFactor    = 0.3
	neutralDurationFactor = 0.5

	// durationRatioFloor is the minimum length ratio for two tracks to
	// count as similar in duration at all.
	durationRatioFloor = 0.7
)

// Scorer computes pairwise track similarity in [0, 1].
type Scorer struct {
	weights Weights
}

// NewScorer builds a scorer. A zero-value Weights falls back to the
// defaults.
func NewScorer(w Weights) *Scorer {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Scorer{weights: w}
}

// Score computes the similarity of candidate to reference. The result
// is deterministic and always within [0, 1].
func (s *Scorer) Score(candidate, reference *models.Track) float64 {
	score := s.weights.Genre*genreFactor(candidate, reference) +
		s.weights.Artist*artistFactor(candidate, reference) +
		s.weights.Duration*durationFactor(candidate, reference) +
		s.weights.Popularity*popularityFactor(candidate, reference)

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// genreFactor is the genre tag overlap: |intersection| divided by the
// larger tag set, compared case-insensitively. Missing tags on either
// side yield a neutral value rather than zero.
func genreFactor(a, b *models.Track) float64 {
	if len(a.GenreTags) == 0 || len(b.GenreTags) == 0 {
		return neutralGenreFactor
	}

	set := make(map[string]bool, len(a.GenreTags))
	for _, g := range a.GenreTags {
		set[strings.ToLower(strings.TrimSpace(g))] = true
	}
	var overlap int
	seen := make(map[string]bool, len(b.GenreTags))
	for _, g := range b.GenreTags {
		key := strings.ToLower(strings.TrimSpace(g))
		if set[key] && !seen[key] {
			overlap++
			seen[key] = true
		}
	}

	larger := len(a.GenreTags)
	if len(b.GenreTags) > larger {
		larger = len(b.GenreTags)
	}
	return float64(overlap) / float64(larger)
}

// artistFactor is 1 for the same artist, compared case-insensitively.
func artistFactor(a, b *models.Track) float64 {
	if strings.EqualFold(strings.TrimSpace(a.Artist), strings.TrimSpace(b.Artist)) {
		return 1.0
	}
	return 0.0
}

// durationFactor is the shorter/longer length ratio when it clears the
// floor, zero when the lengths diverge too far, and neutral when either
// duration is unknown.
func durationFactor(a, b *models.Track) float64 {
	if a.DurationSeconds <= 0 || b.DurationSeconds <= 0 {
		return neutralDurationFactor
	}

	shorter, longer := float64(a.DurationSeconds), float64(b.DurationSeconds)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	ratio := shorter / longer
	if ratio > durationRatioFloor {
		return ratio
	}
	return 0.0
}

// popularityFactor is 1 when both tracks fall in the same popularity
// class relative to the global play-count threshold.
func popularityFactor(a, b *models.Track) float64 {
	if a.Popular() == b.Popular() {
		return 1.0
	}
	return 0.0
}
