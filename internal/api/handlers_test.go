// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/everolfe/resonate/internal/models"
)

type fakeEngine struct {
	out    []models.Recommendation
	lastID int64
}

func (e *fakeEngine) Generate(_ context.Context, userID int64) []models.Recommendation {
	e.lastID = userID
	return e.out
}

type fakeDirectory struct {
	recs       []models.Recommendation
	findErr    error
	markErr    error
	markedID   int64
	markedUser int64
	allUpdated int64
	deleted    int64

	unviewedCalls int
}

func (d *fakeDirectory) FindByUser(_ context.Context, _ int64) ([]models.Recommendation, error) {
	return d.recs, d.findErr
}

func (d *fakeDirectory) FindUnviewed(_ context.Context, _ int64) ([]models.Recommendation, error) {
	d.unviewedCalls++
	if d.findErr != nil {
		return nil, d.findErr
	}
	unviewed := make([]models.Recommendation, 0, len(d.recs))
	for _, r := range d.recs {
		if !r.Viewed {
			unviewed = append(unviewed, r)
		}
	}
	return unviewed, nil
}

func (d *fakeDirectory) DeleteByUser(_ context.Context, _ int64) (int64, error) {
	if d.markErr != nil {
		return 0, d.markErr
	}
	d.deleted = int64(len(d.recs))
	return d.deleted, nil
}

func (d *fakeDirectory) MarkViewed(_ context.Context, userID, id int64) error {
	d.markedUser, d.markedID = userID, id
	return d.markErr
}

func (d *fakeDirectory) MarkAllViewed(_ context.Context, _ int64) (int64, error) {
	return d.allUpdated, d.markErr
}

type fakeSearcher struct {
	mu         sync.Mutex
	results    []models.TrackDescriptor
	searchErr  error
	details    map[string]models.TrackDescriptor
	detailErr  error
	detailHits int
}

func (s *fakeSearcher) SearchTracks(_ context.Context, _ string, _ int) ([]models.TrackDescriptor, error) {
	return s.results, s.searchErr
}

func (s *fakeSearcher) GetTrackDetails(_ context.Context, artist, title string) (*models.TrackDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailHits++
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	d, ok := s.details[strings.ToLower(artist)+"/"+strings.ToLower(title)]
	if !ok {
		return nil, errors.New("no details")
	}
	return &d, nil
}

type fakeHealth struct {
	err error
}

func (h *fakeHealth) Ping(_ context.Context) error { return h.err }

type fakePrefDirectory struct {
	prefs     []models.UserPreference
	existing  *models.UserPreference
	findErr   error
	upsertErr error
	upserted  []*models.UserPreference
}

func (d *fakePrefDirectory) FindByUser(_ context.Context, _ int64) ([]models.UserPreference, error) {
	return d.prefs, d.findErr
}

func (d *fakePrefDirectory) FindByUserAndTrack(_ context.Context, _, _ int64) (*models.UserPreference, error) {
	if d.existing == nil {
		return nil, models.ErrNotFound
	}
	cp := *d.existing
	return &cp, nil
}

func (d *fakePrefDirectory) Upsert(_ context.Context, p *models.UserPreference) error {
	if d.upsertErr != nil {
		return d.upsertErr
	}
	d.upserted = append(d.upserted, p)
	return nil
}

type fakeTrackFinder struct {
	tracks    map[int64]*models.Track
	matches   []models.Track
	searchErr error
}

func (f *fakeTrackFinder) FindByID(_ context.Context, id int64) (*models.Track, error) {
	tr, ok := f.tracks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return tr, nil
}

func (f *fakeTrackFinder) Search(_ context.Context, _ string, limit int) ([]models.Track, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.matches) > limit {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

// testHandler fills unset dependencies with inert fakes.
func testHandler(d Deps) *Handler {
	if d.Engine == nil {
		d.Engine = &fakeEngine{}
	}
	if d.Recommendations == nil {
		d.Recommendations = &fakeDirectory{}
	}
	if d.Preferences == nil {
		d.Preferences = &fakePrefDirectory{}
	}
	if d.Tracks == nil {
		d.Tracks = &fakeTrackFinder{}
	}
	if d.Searcher == nil {
		d.Searcher = &fakeSearcher{}
	}
	if d.Health == nil {
		d.Health = &fakeHealth{}
	}
	return NewHandler(d)
}

func newTestServer(t *testing.T, handler *Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(handler, NewMiddleware(nil)))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url string) (*http.Response, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body APIResponse
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp, body
}

func TestGenerateRecommendations(t *testing.T) {
	engine := &fakeEngine{out: []models.Recommendation{
		{UserID: 42, TrackID: 1, Source: models.SourceContentBased, Score: 0.9, TrackTitle: "Starlight"},
	}}
	srv := newTestServer(t, testHandler(Deps{Engine: engine}))

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/v1/users/42/recommendations/generate")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !body.Success {
		t.Error("response success = false, want true")
	}
	if engine.lastID != 42 {
		t.Errorf("engine received user %d, want 42", engine.lastID)
	}
	if body.Meta == nil || body.Meta.Count != 1 {
		t.Errorf("meta = %+v, want count 1", body.Meta)
	}
}

func TestGenerateRecommendationsInvalidUser(t *testing.T) {
	srv := newTestServer(t, testHandler(Deps{}))

	tests := []struct {
		name string
		path string
	}{
		{"non-numeric", "/api/v1/users/abc/recommendations/generate"},
		{"zero", "/api/v1/users/0/recommendations/generate"},
		{"negative", "/api/v1/users/-3/recommendations/generate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodPost, srv.URL+tt.path)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if body.Error == nil || body.Error.Code != ErrCodeBadRequest {
				t.Errorf("error = %+v, want BAD_REQUEST", body.Error)
			}
		})
	}
}

func TestListRecommendations(t *testing.T) {
	dir := &fakeDirectory{recs: []models.Recommendation{
		{ID: 1, UserID: 42, TrackID: 10, Score: 0.9, Viewed: false},
		{ID: 2, UserID: 42, TrackID: 11, Score: 0.8, Viewed: true},
	}}
	srv := newTestServer(t, testHandler(Deps{Recommendations: dir}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/users/42/recommendations")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body.Meta.Count != 2 {
		t.Errorf("count = %d, want 2", body.Meta.Count)
	}

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/api/v1/users/42/recommendations?unviewed=true")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body.Meta.Count != 1 {
		t.Errorf("unviewed count = %d, want 1", body.Meta.Count)
	}
	// The filter runs in the store, not the handler.
	if dir.unviewedCalls != 1 {
		t.Errorf("FindUnviewed calls = %d, want 1", dir.unviewedCalls)
	}
}

func TestListRecommendationsDatabaseError(t *testing.T) {
	dir := &fakeDirectory{findErr: errors.New("db down")}
	srv := newTestServer(t, testHandler(Deps{Recommendations: dir}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/users/42/recommendations")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != ErrCodeDatabaseError {
		t.Errorf("error = %+v, want DATABASE_ERROR", body.Error)
	}
}

func TestMarkViewed(t *testing.T) {
	dir := &fakeDirectory{}
	srv := newTestServer(t, testHandler(Deps{Recommendations: dir}))

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/v1/users/42/recommendations/7/viewed")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !body.Success {
		t.Error("response success = false, want true")
	}
	if dir.markedUser != 42 || dir.markedID != 7 {
		t.Errorf("marked user/id = %d/%d, want 42/7", dir.markedUser, dir.markedID)
	}
}

func TestMarkViewedNotFound(t *testing.T) {
	dir := &fakeDirectory{markErr: models.ErrNotFound}
	srv := newTestServer(t, testHandler(Deps{Recommendations: dir}))

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/v1/users/42/recommendations/999/viewed")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", body.Error)
	}
}

func TestMarkAllViewed(t *testing.T) {
	dir := &fakeDirectory{allUpdated: 5}
	srv := newTestServer(t, testHandler(Deps{Recommendations: dir}))

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/v1/users/42/recommendations/viewed")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T, want object", body.Data)
	}
	if updated, _ := data["updated"].(float64); updated != 5 {
		t.Errorf("updated = %v, want 5", data["updated"])
	}
}

func TestClearRecommendations(t *testing.T) {
	dir := &fakeDirectory{recs: []models.Recommendation{
		{ID: 1, UserID: 42, TrackID: 10},
		{ID: 2, UserID: 42, TrackID: 11},
	}}
	srv := newTestServer(t, testHandler(Deps{Recommendations: dir}))

	resp, body := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/users/42/recommendations")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, ok := body.Data.(map[string]interface{})
	if !ok || data["deleted"].(float64) != 2 {
		t.Errorf("data = %+v, want deleted count 2", body.Data)
	}
}

func TestClearRecommendationsDatabaseError(t *testing.T) {
	dir := &fakeDirectory{markErr: errors.New("db down")}
	srv := newTestServer(t, testHandler(Deps{Recommendations: dir}))

	resp, body := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/users/42/recommendations")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != ErrCodeDatabaseError {
		t.Errorf("error = %+v, want DATABASE_ERROR", body.Error)
	}
}

func TestSearchTracks(t *testing.T) {
	searcher := &fakeSearcher{
		results: []models.TrackDescriptor{
			{Title: "Starlight", Artist: "Muse"},
			{Title: "Uprising", Artist: "Muse"},
		},
		details: map[string]models.TrackDescriptor{
			"muse/starlight": {Title: "Starlight", Artist: "Muse", Album: "Black Holes and Revelations", DurationSeconds: 240},
		},
	}
	srv := newTestServer(t, testHandler(Deps{Searcher: searcher}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/tracks/search?q=muse")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body.Meta.Count != 2 {
		t.Errorf("count = %d, want 2", body.Meta.Count)
	}

	raw, err := json.Marshal(body.Data)
	if err != nil {
		t.Fatalf("failed to re-marshal data: %v", err)
	}
	var results []models.TrackDescriptor
	if err := json.Unmarshal(raw, &results); err != nil {
		t.Fatalf("failed to decode results: %v", err)
	}
	if results[0].Album != "Black Holes and Revelations" {
		t.Errorf("first result album = %q, want enrichment applied", results[0].Album)
	}
	// The second result had no details; enrichment failure is silent.
	if results[1].Title != "Uprising" || results[1].Album != "" {
		t.Errorf("second result = %+v, want bare search result", results[1])
	}
	if searcher.detailHits != 2 {
		t.Errorf("detail lookups = %d, want one per result", searcher.detailHits)
	}
}

func TestSearchTracksValidation(t *testing.T) {
	srv := newTestServer(t, testHandler(Deps{}))

	tests := []struct {
		name string
		path string
	}{
		{"missing query", "/api/v1/tracks/search"},
		{"bad limit", "/api/v1/tracks/search?q=x&limit=zero"},
		{"negative limit", "/api/v1/tracks/search?q=x&limit=-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doRequest(t, http.MethodGet, srv.URL+tt.path)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSearchTracksProviderFailure(t *testing.T) {
	searcher := &fakeSearcher{searchErr: errors.New("circuit open")}
	srv := newTestServer(t, testHandler(Deps{Searcher: searcher}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/tracks/search?q=muse")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != ErrCodeExternalServiceFail {
		t.Errorf("error = %+v, want EXTERNAL_SERVICE_FAILED", body.Error)
	}
}

func TestSearchTracksCatalogFirst(t *testing.T) {
	tracks := &fakeTrackFinder{matches: []models.Track{
		{ID: 1, Title: "Starlight", Artist: "Muse", Album: "Black Holes and Revelations", PlayCount: 2_000_000},
	}}
	searcher := &fakeSearcher{results: []models.TrackDescriptor{
		{Title: "Starlight", Artist: "muse"}, // same identity as the catalog row
		{Title: "Uprising", Artist: "Muse"},
	}}
	srv := newTestServer(t, testHandler(Deps{Tracks: tracks, Searcher: searcher}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/tracks/search?q=muse")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body.Meta.Count != 2 {
		t.Fatalf("count = %d, want 2 after identity dedup", body.Meta.Count)
	}

	raw, err := json.Marshal(body.Data)
	if err != nil {
		t.Fatalf("failed to re-marshal data: %v", err)
	}
	var results []models.TrackDescriptor
	if err := json.Unmarshal(raw, &results); err != nil {
		t.Fatalf("failed to decode results: %v", err)
	}
	if results[0].Album != "Black Holes and Revelations" || results[0].PlayCount != 2_000_000 {
		t.Errorf("first result = %+v, want the catalog row ahead of provider hits", results[0])
	}
	if results[1].Title != "Uprising" {
		t.Errorf("second result = %+v, want the non-duplicate provider hit", results[1])
	}
}

func TestSearchTracksServesCatalogWhenProviderDown(t *testing.T) {
	tracks := &fakeTrackFinder{matches: []models.Track{
		{ID: 1, Title: "Starlight", Artist: "Muse"},
	}}
	searcher := &fakeSearcher{searchErr: errors.New("circuit open")}
	srv := newTestServer(t, testHandler(Deps{Tracks: tracks, Searcher: searcher}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/tracks/search?q=muse")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with catalog matches", resp.StatusCode)
	}
	if body.Meta.Count != 1 {
		t.Errorf("count = %d, want 1", body.Meta.Count)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testHandler(Deps{BreakerState: func() string { return "closed" }}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data := body.Data.(map[string]interface{})
	if data["status"] != "ok" || data["provider_breaker"] != "closed" {
		t.Errorf("health payload = %+v", data)
	}
}

func TestHealthDegraded(t *testing.T) {
	srv := newTestServer(t, testHandler(Deps{Health: &fakeHealth{err: errors.New("no connection")}}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	data := body.Data.(map[string]interface{})
	if data["status"] != "degraded" {
		t.Errorf("health payload = %+v, want degraded", data)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t, testHandler(Deps{}))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "test-request-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "test-request-1" {
		t.Errorf("X-Request-ID = %q, want inbound ID echoed", got)
	}

	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Meta.RequestID != "test-request-1" {
		t.Errorf("meta request_id = %q, want test-request-1", body.Meta.RequestID)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testHandler(Deps{}))

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
