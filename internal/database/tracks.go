// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/everolfe/resonate/internal/metrics"
	"github.com/everolfe/resonate/internal/models"
)

// TrackStore persists tracks in DuckDB.
type TrackStore struct {
	db *DB
}

// NewTrackStore returns a store backed by the given database.
func NewTrackStore(db *DB) *TrackStore {
	return &TrackStore{db: db}
}

const trackColumns = `id, title, artist, album, duration_seconds, genre_tags, play_count, source, created_at`

// FindAll returns every track in the catalog ordered by ID.
func (s *TrackStore) FindAll(ctx context.Context) ([]models.Track, error) {
	start := time.Now()
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks ORDER BY id`)
	metrics.RecordDBQuery("find_all", "tracks", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer closeQuietly(rows)

	return scanTracks(rows)
}

// FindByID returns the track with the given ID or models.ErrNotFound.
func (s *TrackStore) FindByID(ctx context.Context, id int64) (*models.Track, error) {
	start := time.Now()
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	track, err := scanTrack(row)
	metrics.RecordDBQuery("find_by_id", "tracks", time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}
	return track, nil
}

// FindByArtist returns all tracks by the given artist, matched
// case-insensitively.
func (s *TrackStore) FindByArtist(ctx context.Context, artist string) ([]models.Track, error) {
	start := time.Now()
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE lower(artist) = lower(?) ORDER BY id`, artist)
	metrics.RecordDBQuery("find_by_artist", "tracks", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks by artist: %w", err)
	}
	defer closeQuietly(rows)

	return scanTracks(rows)
}

// FindByTitleAndArtist returns the track with the given identity or
// models.ErrNotFound. Matching is case-insensitive.
func (s *TrackStore) FindByTitleAndArtist(ctx context.Context, title, artist string) (*models.Track, error) {
	start := time.Now()
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
		 WHERE lower(title) = lower(?) AND lower(artist) = lower(?)`,
		strings.TrimSpace(title), strings.TrimSpace(artist))
	track, err := scanTrack(row)
	metrics.RecordDBQuery("find_by_identity", "tracks", time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}
	return track, nil
}

// Save inserts a new track and fills in its generated ID. If a track
// with the same (title, artist) identity already exists, the existing
// row wins and its ID is returned instead.
func (s *TrackStore) Save(ctx context.Context, t *models.Track) error {
	start := time.Now()
	err := s.db.conn.QueryRowContext(ctx,
		`INSERT INTO tracks (title, artist, album, duration_seconds, genre_tags, play_count, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id, created_at`,
		strings.TrimSpace(t.Title), strings.TrimSpace(t.Artist), t.Album,
		t.DurationSeconds, joinGenres(t.GenreTags), t.PlayCount, t.Source,
	).Scan(&t.ID, &t.CreatedAt)
	metrics.RecordDBQuery("save", "tracks", time.Since(start), err)
	if err == nil {
		return nil
	}

	// A unique index violation means another writer created the same
	// identity concurrently; adopt the existing row.
	existing, lookupErr := s.FindByTitleAndArtist(ctx, t.Title, t.Artist)
	if lookupErr != nil {
		return fmt.Errorf("failed to save track %q by %q: %w", t.Title, t.Artist, err)
	}
	*t = *existing
	return nil
}

// UpdatePlayCount sets the play count for a track.
func (s *TrackStore) UpdatePlayCount(ctx context.Context, id, playCount int64) error {
	start := time.Now()
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE tracks SET play_count = ? WHERE id = ?`, playCount, id)
	metrics.RecordDBQuery("update_play_count", "tracks", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update play count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Search returns tracks whose title or artist contains the query,
// matched case-insensitively, capped at limit.
func (s *TrackStore) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	start := time.Now()
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
		 WHERE lower(title) LIKE ? OR lower(artist) LIKE ?
		 ORDER BY play_count DESC, id
		 LIMIT ?`, pattern, pattern, limit)
	metrics.RecordDBQuery("search", "tracks", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	defer closeQuietly(rows)

	return scanTracks(rows)
}

// scanner abstracts *sql.Row and *sql.Rows for single-track scans.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(sc scanner) (*models.Track, error) {
	var t models.Track
	var album, genres sql.NullString
	err := sc.Scan(&t.ID, &t.Title, &t.Artist, &album, &t.DurationSeconds,
		&genres, &t.PlayCount, &t.Source, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Album = album.String
	t.GenreTags = splitGenres(genres.String)
	return &t, nil
}

func scanTracks(rows *sql.Rows) ([]models.Track, error) {
	var tracks []models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("track iteration failed: %w", err)
	}
	return tracks, nil
}

// Genre tags are stored as a comma-separated string.

func joinGenres(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitGenres(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
