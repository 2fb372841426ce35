// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/everolfe/resonate/internal/logging"
	"github.com/everolfe/resonate/internal/models"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	generateRequestTimeout = 30 * time.Second

	searchDefaultLimit = 10
	searchMaxLimit     = 50

	// searchEnrichWorkers bounds the detail lookups that fan out per
	// search request.
	searchEnrichWorkers = 3
)

// RecommendationEngine generates and persists recommendations for a
// user. It never fails; an empty slice is the degraded result.
type RecommendationEngine interface {
	Generate(ctx context.Context, userID int64) []models.Recommendation
}

// RecommendationDirectory reads and updates persisted recommendations.
type RecommendationDirectory interface {
	FindByUser(ctx context.Context, userID int64) ([]models.Recommendation, error)
	FindUnviewed(ctx context.Context, userID int64) ([]models.Recommendation, error)
	MarkViewed(ctx context.Context, userID, id int64) error
	MarkAllViewed(ctx context.Context, userID int64) (int64, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

// TrackSearcher is the provider surface the search endpoint needs.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackDescriptor, error)
	GetTrackDetails(ctx context.Context, artist, title string) (*models.TrackDescriptor, error)
}

// PreferenceDirectory reads and writes user taste signals.
type PreferenceDirectory interface {
	FindByUser(ctx context.Context, userID int64) ([]models.UserPreference, error)
	FindByUserAndTrack(ctx context.Context, userID, trackID int64) (*models.UserPreference, error)
	Upsert(ctx context.Context, p *models.UserPreference) error
}

// TrackFinder reads the local catalog: existence checks for
// preference writes and title/artist search.
type TrackFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Track, error)
	Search(ctx context.Context, query string, limit int) ([]models.Track, error)
}

// HealthChecker reports storage liveness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps bundles the collaborators the API handlers need.
type Deps struct {
	Engine          RecommendationEngine
	Recommendations RecommendationDirectory
	Preferences     PreferenceDirectory
	Tracks          TrackFinder
	Searcher        TrackSearcher
	Health          HealthChecker

	// BreakerState reports the provider circuit breaker state for the
	// health endpoint. May be nil.
	BreakerState func() string
}

// Handler holds the dependencies for all API endpoints.
type Handler struct {
	engine       RecommendationEngine
	recs         RecommendationDirectory
	prefs        PreferenceDirectory
	tracks       TrackFinder
	searcher     TrackSearcher
	health       HealthChecker
	breakerState func() string
}

// NewHandler creates the API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		engine:       d.Engine,
		recs:         d.Recommendations,
		prefs:        d.Preferences,
		tracks:       d.Tracks,
		searcher:     d.Searcher,
		health:       d.Health,
		breakerState: d.BreakerState,
	}
}

// GenerateRecommendations handles
// POST /api/v1/users/{userID}/recommendations/generate.
func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := parseUserID(rw, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), generateRequestTimeout)
	defer cancel()

	recs := h.engine.Generate(ctx, userID)
	rw.SuccessWithCount(recs, len(recs))
}

// ListRecommendations handles
// GET /api/v1/users/{userID}/recommendations. The optional
// unviewed=true query parameter restricts the list to unseen rows.
func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := parseUserID(rw, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	find := h.recs.FindByUser
	if r.URL.Query().Get("unviewed") == "true" {
		find = h.recs.FindUnviewed
	}
	recs, err := find(ctx, userID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithCount(recs, len(recs))
}

// ClearRecommendations handles
// DELETE /api/v1/users/{userID}/recommendations. The response reports
// how many rows were removed.
func (h *Handler) ClearRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := parseUserID(rw, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	deleted, err := h.recs.DeleteByUser(ctx, userID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(map[string]int64{"deleted": deleted})
}

// MarkViewed handles
// POST /api/v1/users/{userID}/recommendations/{id}/viewed.
func (h *Handler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := parseUserID(rw, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		rw.BadRequest("Invalid recommendation ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	if err := h.recs.MarkViewed(ctx, userID, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			rw.NotFound("Recommendation not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.Success(map[string]interface{}{"id": id, "viewed": true})
}

// MarkAllViewed handles
// POST /api/v1/users/{userID}/recommendations/viewed.
func (h *Handler) MarkAllViewed(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := parseUserID(rw, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	updated, err := h.recs.MarkAllViewed(ctx, userID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(map[string]interface{}{"updated": updated})
}

// SearchTracks handles GET /api/v1/tracks/search?q=...&limit=...
// Local catalog matches come first; the external provider fills the
// remainder, with duplicate title/artist identities collapsed. All
// results are enriched with album and genre details through a bounded
// concurrent fan-out. Enrichment is best effort; a failed detail
// lookup leaves the bare result.
func (h *Handler) SearchTracks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	query := r.URL.Query().Get("q")
	if query == "" {
		rw.BadRequest("Missing query parameter q")
		return
	}

	limit := searchDefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			rw.BadRequest("Invalid limit parameter")
			return
		}
		limit = parsed
	}
	if limit > searchMaxLimit {
		limit = searchMaxLimit
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	local, err := h.tracks.Search(ctx, query, limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	results := make([]models.TrackDescriptor, 0, limit)
	seen := make(map[string]bool, limit)
	for i := range local {
		results = append(results, models.TrackDescriptor{
			Title:           local[i].Title,
			Artist:          local[i].Artist,
			Album:           local[i].Album,
			DurationSeconds: local[i].DurationSeconds,
			GenreTags:       local[i].GenreTags,
			PlayCount:       local[i].PlayCount,
		})
		seen[local[i].IdentityKey()] = true
	}

	if len(results) < limit {
		remote, err := h.searcher.SearchTracks(ctx, query, limit)
		if err != nil {
			// Provider down with nothing local is an error; otherwise
			// serve the catalog matches alone.
			if len(results) == 0 {
				rw.ExternalServiceError("lastfm", err)
				return
			}
			logging.Ctx(ctx).Warn().Err(err).Str("query", query).
				Msg("provider search failed, serving catalog matches only")
		}
		for i := range remote {
			if len(results) >= limit {
				break
			}
			key := (&models.Track{Title: remote[i].Title, Artist: remote[i].Artist}).IdentityKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			results = append(results, remote[i])
		}
	}

	h.enrichSearchResults(ctx, results)
	rw.SuccessWithCount(results, len(results))
}

func (h *Handler) enrichSearchResults(ctx context.Context, results []models.TrackDescriptor) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(searchEnrichWorkers)

	for i := range results {
		g.Go(func() error {
			detail, err := h.searcher.GetTrackDetails(ctx, results[i].Artist, results[i].Title)
			if err != nil {
				logging.Ctx(ctx).Debug().Err(err).
					Str("title", results[i].Title).
					Str("artist", results[i].Artist).
					Msg("search detail lookup failed")
				return nil
			}
			if results[i].Album == "" {
				results[i].Album = detail.Album
			}
			if results[i].DurationSeconds == 0 {
				results[i].DurationSeconds = detail.DurationSeconds
			}
			if len(results[i].GenreTags) == 0 {
				results[i].GenreTags = detail.GenreTags
			}
			if results[i].PlayCount == 0 {
				results[i].PlayCount = detail.PlayCount
			}
			return nil
		})
	}
	// Workers only ever return nil; the group is used for bounding.
	_ = g.Wait()
}

// Health handles GET /healthz. It reports degraded status with a 503
// when the database is unreachable; the circuit breaker state is
// informational only.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"status":   "ok",
		"database": "ok",
	}
	if h.breakerState != nil {
		status["provider_breaker"] = h.breakerState()
	}

	if err := h.health.Ping(ctx); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("health check database ping failed")
		status["status"] = "degraded"
		status["database"] = "unreachable"
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Success: false, Data: status})
		return
	}

	rw.Success(status)
}

func parseUserID(rw *ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID < 1 {
		rw.BadRequest("Invalid user ID")
		return 0, false
	}
	return userID, true
}
