// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package models

import "time"

// Rating bounds for user preferences. A rating of zero means the user
// has listened to the track but never rated it.
const (
	MinRating = 0
	MaxRating = 5
)

// HighRatingThreshold is the minimum rating for a preference to act as
// a taste seed in content-based generation.
const HighRatingThreshold = 3

// UserPreference records a user's relationship with a single track:
// rating, favorite flag, and listening history. At most one row exists
// per (user, track) pair; its existence marks the track as owned and
// therefore never recommendable back to the user.
type UserPreference struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	TrackID      int64     `json:"track_id"`
	Rating       int       `json:"rating"`
	Favorite     bool      `json:"favorite"`
	ListenCount  int       `json:"listen_count"`
	LastListened time.Time `json:"last_listened,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HighRated reports whether the preference qualifies as a content seed.
func (p *UserPreference) HighRated() bool {
	return p.Rating >= HighRatingThreshold
}
