// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package models

import "time"

// SourceKind identifies which generation strategy produced a
// recommendation. The kind travels with the recommendation through
// deduplication and persistence so the API can report provenance.
type SourceKind string

// Generation strategies, in the order they run.
const (
	SourceContentBased    SourceKind = "content_based"
	SourceRecentBased     SourceKind = "recent_based"
	SourceExternalSimilar SourceKind = "external_similar"
	SourcePopular         SourceKind = "popular"
)

// Valid reports whether the kind is one of the known strategies.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceContentBased, SourceRecentBased, SourceExternalSimilar, SourcePopular:
		return true
	}
	return false
}

// Recommendation is a scored track suggestion for a user. Score is
// always within [0, 1]. The track display fields are denormalized
// copies filled in during enrichment so API responses do not need a
// join per row.
type Recommendation struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	TrackID   int64      `json:"track_id"`
	Source    SourceKind `json:"source"`
	Score     float64    `json:"score"`
	Viewed    bool       `json:"viewed"`
	CreatedAt time.Time  `json:"created_at"`

	// Denormalized track metadata for display.
	TrackTitle  string `json:"track_title"`
	TrackArtist string `json:"track_artist"`
	TrackAlbum  string `json:"track_album,omitempty"`
}
