// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

// Package models defines the core domain types shared across the
// recommendation engine, the persistence layer, and the HTTP API.
package models

import (
	"strings"
	"time"
)

// Track source values. Tracks discovered through the external metadata
// provider are persisted with SourceLastFM so they can be distinguished
// from the user's own library.
const (
	TrackSourceLocal  = "local"
	TrackSourceLastFM = "lastfm"
)

// unknownMarker is the placeholder the external provider returns for
// tracks whose title or artist could not be resolved. Such tracks are
// never valid recommendation candidates.
const unknownMarker = "unknown"

// PopularPlayCount is the play-count threshold above which a track is
// considered popular for scoring purposes.
const PopularPlayCount = 1_000_000

// Track is a single music track, either from the local library or
// resolved from the external metadata provider.
type Track struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	Album           string    `json:"album,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	GenreTags       []string  `json:"genre_tags,omitempty"`
	PlayCount       int64     `json:"play_count"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

// Valid reports whether the track carries usable identity metadata.
// Tracks with an empty or placeholder title or artist are rejected at
// every stage of the pipeline.
func (t *Track) Valid() bool {
	title := strings.TrimSpace(t.Title)
	artist := strings.TrimSpace(t.Artist)
	if title == "" || artist == "" {
		return false
	}
	if strings.EqualFold(title, unknownMarker) || strings.EqualFold(artist, unknownMarker) {
		return false
	}
	return true
}

// Popular reports whether the track clears the global popularity
// threshold.
func (t *Track) Popular() bool {
	return t.PlayCount > PopularPlayCount
}

// IdentityKey returns the case-insensitive (title, artist) identity used
// for track deduplication. Two tracks with the same key are the same
// logical track regardless of source.
func (t *Track) IdentityKey() string {
	return strings.ToLower(strings.TrimSpace(t.Title)) + "\x00" + strings.ToLower(strings.TrimSpace(t.Artist))
}

// TrackDescriptor is a lightweight reference to a track as reported by
// the external metadata provider, before it has been resolved against
// the local catalog. Duration is in seconds; zero means unknown.
type TrackDescriptor struct {
	Title           string   `json:"title"`
	Artist          string   `json:"artist"`
	Album           string   `json:"album,omitempty"`
	DurationSeconds int      `json:"duration_seconds,omitempty"`
	GenreTags       []string `json:"genre_tags,omitempty"`
	PlayCount       int64    `json:"play_count,omitempty"`
	URL             string   `json:"url,omitempty"`
}

// Valid reports whether the descriptor identifies a real track. The
// same placeholder rules as Track.Valid apply.
func (d *TrackDescriptor) Valid() bool {
	t := Track{Title: d.Title, Artist: d.Artist}
	return t.Valid()
}
