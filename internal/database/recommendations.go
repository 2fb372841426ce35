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

// RecommendationStore persists recommendations in DuckDB. One row
// exists per (user, track); repeated generation runs update rows in
// place rather than accumulating duplicates.
type RecommendationStore struct {
	db *DB
}

// NewRecommendationStore returns a store backed by the given database.
func NewRecommendationStore(db *DB) *RecommendationStore {
	return &RecommendationStore{db: db}
}

// Upsert inserts a recommendation or, when a row for the (user, track)
// pair already exists, updates it only if the new score is higher. A
// winning update also refreshes the source and resets the viewed flag,
// since a stronger signal makes the suggestion new again.
func (s *RecommendationStore) Upsert(ctx context.Context, r *models.Recommendation) error {
	start := time.Now()
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO recommendations (user_id, track_id, source, score, viewed)
		 VALUES (?, ?, ?, ?, false)
		 ON CONFLICT (user_id, track_id) DO UPDATE SET
			score = excluded.score,
			source = excluded.source,
			viewed = false,
			created_at = now()
		 WHERE excluded.score > recommendations.score`,
		r.UserID, r.TrackID, string(r.Source), r.Score)
	metrics.RecordDBQuery("upsert", "recommendations", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert recommendation: %w", err)
	}
	return nil
}

// FindByUser returns the user's recommendations joined with track
// display metadata: unviewed rows first, then best score first with
// track ID as tie-break.
func (s *RecommendationStore) FindByUser(ctx context.Context, userID int64) ([]models.Recommendation, error) {
	start := time.Now()
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT r.id, r.user_id, r.track_id, r.source, r.score, r.viewed, r.created_at,
		        t.title, t.artist, t.album
		 FROM recommendations r
		 JOIN tracks t ON t.id = r.track_id
		 WHERE r.user_id = ?
		 ORDER BY r.viewed, r.score DESC, r.track_id`, userID)
	metrics.RecordDBQuery("find_by_user", "recommendations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer closeQuietly(rows)

	var recs []models.Recommendation
	for rows.Next() {
		var r models.Recommendation
		var source string
		var album sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.TrackID, &source, &r.Score,
			&r.Viewed, &r.CreatedAt, &r.TrackTitle, &r.TrackArtist, &album); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		r.Source = models.SourceKind(source)
		r.TrackAlbum = album.String
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recommendation iteration failed: %w", err)
	}
	return recs, nil
}

// FindUnviewed returns the user's recommendations not yet seen, best
// score first.
func (s *RecommendationStore) FindUnviewed(ctx context.Context, userID int64) ([]models.Recommendation, error) {
	all, err := s.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unviewed := make([]models.Recommendation, 0, len(all))
	for _, r := range all {
		if !r.Viewed {
			unviewed = append(unviewed, r)
		}
	}
	return unviewed, nil
}

// MarkViewed flags one recommendation as seen. Returns
// models.ErrNotFound if no row matches the ID for the user.
func (s *RecommendationStore) MarkViewed(ctx context.Context, userID, id int64) error {
	start := time.Now()
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE recommendations SET viewed = true WHERE id = ? AND user_id = ?`, id, userID)
	metrics.RecordDBQuery("mark_viewed", "recommendations", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to mark recommendation viewed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkAllViewed flags every recommendation for the user as seen and
// returns the number of rows updated.
func (s *RecommendationStore) MarkAllViewed(ctx context.Context, userID int64) (int64, error) {
	start := time.Now()
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE recommendations SET viewed = true WHERE user_id = ? AND NOT viewed`, userID)
	metrics.RecordDBQuery("mark_all_viewed", "recommendations", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to mark recommendations viewed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count updated recommendations: %w", err)
	}
	return n, nil
}

// DeleteByUser removes all recommendations for a user and returns the
// number of rows removed.
func (s *RecommendationStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	start := time.Now()
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM recommendations WHERE user_id = ?`, userID)
	metrics.RecordDBQuery("delete_by_user", "recommendations", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete recommendations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted recommendations: %w", err)
	}
	return n, nil
}
