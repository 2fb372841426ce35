// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package api

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/everolfe/resonate/internal/models"
)

func doJSONRequest(t *testing.T, method, url string, payload any) (*http.Response, APIResponse) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp, body
}

func TestListPreferences(t *testing.T) {
	prefs := &fakePrefDirectory{prefs: []models.UserPreference{
		{ID: 1, UserID: 42, TrackID: 7, Rating: 5, Favorite: true},
		{ID: 2, UserID: 42, TrackID: 9, ListenCount: 3},
	}}
	srv := newTestServer(t, testHandler(Deps{Preferences: prefs}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/users/42/preferences")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body.Meta == nil || body.Meta.Count != 2 {
		t.Errorf("meta count = %+v, want 2", body.Meta)
	}
}

func TestUpsertPreferenceCreates(t *testing.T) {
	prefs := &fakePrefDirectory{}
	tracks := &fakeTrackFinder{tracks: map[int64]*models.Track{
		7: {ID: 7, Title: "Roads", Artist: "Portishead"},
	}}
	srv := newTestServer(t, testHandler(Deps{Preferences: prefs, Tracks: tracks}))

	rating := 4
	favorite := true
	resp, body := doJSONRequest(t, http.MethodPut, srv.URL+"/api/v1/users/42/preferences/7",
		preferenceRequest{Rating: &rating, Favorite: &favorite})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !body.Success {
		t.Error("response success = false, want true")
	}
	if len(prefs.upserted) != 1 {
		t.Fatalf("upserted %d preferences, want 1", len(prefs.upserted))
	}
	got := prefs.upserted[0]
	if got.UserID != 42 || got.TrackID != 7 {
		t.Errorf("upserted pair = (%d, %d), want (42, 7)", got.UserID, got.TrackID)
	}
	if got.Rating != 4 || !got.Favorite {
		t.Errorf("upserted rating/favorite = %d/%v, want 4/true", got.Rating, got.Favorite)
	}
	if got.ListenCount != 0 {
		t.Errorf("listen count = %d, want 0 when listened not sent", got.ListenCount)
	}
}

func TestUpsertPreferenceMergesExisting(t *testing.T) {
	prefs := &fakePrefDirectory{existing: &models.UserPreference{
		ID: 11, UserID: 42, TrackID: 7, Rating: 3, Favorite: true, ListenCount: 5,
	}}
	tracks := &fakeTrackFinder{tracks: map[int64]*models.Track{7: {ID: 7, Title: "Roads", Artist: "Portishead"}}}
	srv := newTestServer(t, testHandler(Deps{Preferences: prefs, Tracks: tracks}))

	rating := 5
	resp, _ := doJSONRequest(t, http.MethodPut, srv.URL+"/api/v1/users/42/preferences/7",
		preferenceRequest{Rating: &rating})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(prefs.upserted) != 1 {
		t.Fatalf("upserted %d preferences, want 1", len(prefs.upserted))
	}
	got := prefs.upserted[0]
	if got.Rating != 5 {
		t.Errorf("rating = %d, want 5", got.Rating)
	}
	if !got.Favorite {
		t.Error("favorite cleared by rating-only update")
	}
	if got.ListenCount != 5 {
		t.Errorf("listen count = %d, want 5 unchanged", got.ListenCount)
	}
}

func TestUpsertPreferenceRecordsListen(t *testing.T) {
	prefs := &fakePrefDirectory{existing: &models.UserPreference{
		ID: 11, UserID: 42, TrackID: 7, ListenCount: 2,
	}}
	tracks := &fakeTrackFinder{tracks: map[int64]*models.Track{7: {ID: 7, Title: "Roads", Artist: "Portishead"}}}
	srv := newTestServer(t, testHandler(Deps{Preferences: prefs, Tracks: tracks}))

	before := time.Now().UTC()
	resp, _ := doJSONRequest(t, http.MethodPut, srv.URL+"/api/v1/users/42/preferences/7",
		preferenceRequest{Listened: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := prefs.upserted[0]
	if got.ListenCount != 3 {
		t.Errorf("listen count = %d, want 3", got.ListenCount)
	}
	if got.LastListened.Before(before) {
		t.Errorf("last listened = %v, want at or after %v", got.LastListened, before)
	}
}

func TestUpsertPreferenceValidation(t *testing.T) {
	tracks := &fakeTrackFinder{tracks: map[int64]*models.Track{7: {ID: 7, Title: "Roads", Artist: "Portishead"}}}

	bad := 6
	negative := -1
	tests := []struct {
		name string
		path string
		body preferenceRequest
	}{
		{"invalid user", "/api/v1/users/abc/preferences/7", preferenceRequest{}},
		{"invalid track", "/api/v1/users/42/preferences/0", preferenceRequest{}},
		{"rating too high", "/api/v1/users/42/preferences/7", preferenceRequest{Rating: &bad}},
		{"rating negative", "/api/v1/users/42/preferences/7", preferenceRequest{Rating: &negative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := &fakePrefDirectory{}
			srv := newTestServer(t, testHandler(Deps{Preferences: prefs, Tracks: tracks}))

			resp, body := doJSONRequest(t, http.MethodPut, srv.URL+tt.path, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if body.Error == nil || body.Error.Code != ErrCodeBadRequest {
				t.Errorf("error = %+v, want code %s", body.Error, ErrCodeBadRequest)
			}
			if len(prefs.upserted) != 0 {
				t.Error("invalid request reached the store")
			}
		})
	}
}

func TestUpsertPreferenceUnknownTrack(t *testing.T) {
	prefs := &fakePrefDirectory{}
	srv := newTestServer(t, testHandler(Deps{Preferences: prefs, Tracks: &fakeTrackFinder{}}))

	resp, body := doJSONRequest(t, http.MethodPut, srv.URL+"/api/v1/users/42/preferences/999", preferenceRequest{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v, want code %s", body.Error, ErrCodeNotFound)
	}
	if len(prefs.upserted) != 0 {
		t.Error("missing track reached the store")
	}
}
