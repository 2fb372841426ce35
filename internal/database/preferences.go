// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/everolfe/resonate/internal/metrics"
	"github.com/everolfe/resonate/internal/models"
)

// PreferenceStore persists user preferences in DuckDB.
type PreferenceStore struct {
	db *DB
}

// NewPreferenceStore returns a store backed by the given database.
func NewPreferenceStore(db *DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

const preferenceColumns = `id, user_id, track_id, rating, favorite, listen_count, last_listened, created_at`

// FindByUser returns all preferences for a user.
func (s *PreferenceStore) FindByUser(ctx context.Context, userID int64) ([]models.UserPreference, error) {
	start := time.Now()
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+preferenceColumns+` FROM user_preferences WHERE user_id = ? ORDER BY id`, userID)
	metrics.RecordDBQuery("find_by_user", "user_preferences", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer closeQuietly(rows)

	return scanPreferences(rows)
}

// FindByUserAndTrack returns the preference for a (user, track) pair or
// models.ErrNotFound. Its existence marks the track as owned.
func (s *PreferenceStore) FindByUserAndTrack(ctx context.Context, userID, trackID int64) (*models.UserPreference, error) {
	start := time.Now()
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM user_preferences WHERE user_id = ? AND track_id = ?`,
		userID, trackID)
	pref, err := scanPreference(row)
	metrics.RecordDBQuery("find_by_user_track", "user_preferences", time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}
	return pref, nil
}

// FindHighRated returns the user's preferences with rating at or above
// minRating, best rated first.
func (s *PreferenceStore) FindHighRated(ctx context.Context, userID int64, minRating int) ([]models.UserPreference, error) {
	start := time.Now()
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+preferenceColumns+` FROM user_preferences
		 WHERE user_id = ? AND rating >= ?
		 ORDER BY rating DESC, id`, userID, minRating)
	metrics.RecordDBQuery("find_high_rated", "user_preferences", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query high rated preferences: %w", err)
	}
	defer closeQuietly(rows)

	return scanPreferences(rows)
}

// FindFavorites returns the user's favorite tracks.
func (s *PreferenceStore) FindFavorites(ctx context.Context, userID int64) ([]models.UserPreference, error) {
	start := time.Now()
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+preferenceColumns+` FROM user_preferences
		 WHERE user_id = ? AND favorite
		 ORDER BY id`, userID)
	metrics.RecordDBQuery("find_favorites", "user_preferences", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer closeQuietly(rows)

	return scanPreferences(rows)
}

// FindRecent returns the user's most recently listened preferences,
// newest first, capped at limit. Preferences without a listen
// timestamp are excluded.
func (s *PreferenceStore) FindRecent(ctx context.Context, userID int64, limit int) ([]models.UserPreference, error) {
	if limit <= 0 {
		limit = 10
	}
	start := time.Now()
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+preferenceColumns+` FROM user_preferences
		 WHERE user_id = ? AND last_listened IS NOT NULL
		 ORDER BY last_listened DESC, id
		 LIMIT ?`, userID, limit)
	metrics.RecordDBQuery("find_recent", "user_preferences", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent preferences: %w", err)
	}
	defer closeQuietly(rows)

	return scanPreferences(rows)
}

// Upsert inserts or updates the preference for its (user, track) pair.
func (s *PreferenceStore) Upsert(ctx context.Context, p *models.UserPreference) error {
	if p.Rating < models.MinRating || p.Rating > models.MaxRating {
		return fmt.Errorf("rating %d out of range [%d, %d]", p.Rating, models.MinRating, models.MaxRating)
	}

	var lastListened any
	if !p.LastListened.IsZero() {
		lastListened = p.LastListened
	}

	start := time.Now()
	err := s.db.conn.QueryRowContext(ctx,
		`INSERT INTO user_preferences (user_id, track_id, rating, favorite, listen_count, last_listened)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, track_id) DO UPDATE SET
			rating = excluded.rating,
			favorite = excluded.favorite,
			listen_count = excluded.listen_count,
			last_listened = excluded.last_listened
		 RETURNING id, created_at`,
		p.UserID, p.TrackID, p.Rating, p.Favorite, p.ListenCount, lastListened,
	).Scan(&p.ID, &p.CreatedAt)
	metrics.RecordDBQuery("upsert", "user_preferences", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}
	return nil
}

func scanPreference(sc scanner) (*models.UserPreference, error) {
	var p models.UserPreference
	var lastListened sql.NullTime
	err := sc.Scan(&p.ID, &p.UserID, &p.TrackID, &p.Rating, &p.Favorite,
		&p.ListenCount, &lastListened, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastListened.Valid {
		p.LastListened = lastListened.Time
	}
	return &p, nil
}

func scanPreferences(rows *sql.Rows) ([]models.UserPreference, error) {
	var prefs []models.UserPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("preference iteration failed: %w", err)
	}
	return prefs, nil
}
