// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package database

import "fmt"

// schemaStatements create the tables, sequences, and indexes. Each
// statement is idempotent so startup can run them unconditionally.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_track_id START 1`,
	`CREATE TABLE IF NOT EXISTS tracks (
		id               BIGINT PRIMARY KEY DEFAULT nextval('seq_track_id'),
		title            VARCHAR NOT NULL,
		artist           VARCHAR NOT NULL,
		album            VARCHAR DEFAULT '',
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		genre_tags       VARCHAR DEFAULT '',
		play_count       BIGINT NOT NULL DEFAULT 0,
		source           VARCHAR NOT NULL DEFAULT 'local',
		created_at       TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	// Track identity is case-insensitive (title, artist).
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tracks_identity
		ON tracks (lower(title), lower(artist))`,
	`CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks (lower(artist))`,

	`CREATE SEQUENCE IF NOT EXISTS seq_preference_id START 1`,
	`CREATE TABLE IF NOT EXISTS user_preferences (
		id            BIGINT PRIMARY KEY DEFAULT nextval('seq_preference_id'),
		user_id       BIGINT NOT NULL,
		track_id      BIGINT NOT NULL,
		rating        INTEGER NOT NULL DEFAULT 0,
		favorite      BOOLEAN NOT NULL DEFAULT false,
		listen_count  INTEGER NOT NULL DEFAULT 0,
		last_listened TIMESTAMP,
		created_at    TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (user_id, track_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_preferences_user ON user_preferences (user_id)`,

	`CREATE SEQUENCE IF NOT EXISTS seq_recommendation_id START 1`,
	`CREATE TABLE IF NOT EXISTS recommendations (
		id         BIGINT PRIMARY KEY DEFAULT nextval('seq_recommendation_id'),
		user_id    BIGINT NOT NULL,
		track_id   BIGINT NOT NULL,
		source     VARCHAR NOT NULL,
		score      DOUBLE NOT NULL,
		viewed     BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (user_id, track_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recommendations_user ON recommendations (user_id)`,
}

// createSchema applies all schema statements in order.
func (db *DB) createSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
