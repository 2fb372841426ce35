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
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/everolfe/resonate/internal/models"
)

var validate = validator.New()

// preferenceRequest is the body for preference writes. Pointer fields
// distinguish "not sent" from zero values, so a rating update does not
// clear the favorite flag and vice versa.
type preferenceRequest struct {
	Rating   *int  `json:"rating,omitempty" validate:"omitempty,min=0,max=5"`
	Favorite *bool `json:"favorite,omitempty"`

	// Listened records one listen: it increments the listen count and
	// stamps the last-listened time.
	Listened bool `json:"listened,omitempty"`
}

// ListPreferences handles GET /api/v1/users/{userID}/preferences.
func (h *Handler) ListPreferences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := parseUserID(rw, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	prefs, err := h.prefs.FindByUser(ctx, userID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithCount(prefs, len(prefs))
}

// UpsertPreference handles
// PUT /api/v1/users/{userID}/preferences/{trackID}. The write merges
// into any existing preference for the pair, so partial updates keep
// the fields the request did not mention.
func (h *Handler) UpsertPreference(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := parseUserID(rw, r)
	if !ok {
		return
	}
	trackID, err := strconv.ParseInt(chi.URLParam(r, "trackID"), 10, 64)
	if err != nil || trackID < 1 {
		rw.BadRequest("Invalid track ID")
		return
	}

	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		rw.BadRequest("Rating must be between 0 and 5")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	if _, err := h.tracks.FindByID(ctx, trackID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			rw.NotFound("Track not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	pref, err := h.prefs.FindByUserAndTrack(ctx, userID, trackID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			rw.DatabaseError(err)
			return
		}
		pref = &models.UserPreference{UserID: userID, TrackID: trackID}
	}

	if req.Rating != nil {
		pref.Rating = *req.Rating
	}
	if req.Favorite != nil {
		pref.Favorite = *req.Favorite
	}
	if req.Listened {
		pref.ListenCount++
		pref.LastListened = time.Now().UTC()
	}

	if err := h.prefs.Upsert(ctx, pref); err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(pref)
}
