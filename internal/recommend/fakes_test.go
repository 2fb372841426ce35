// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package recommend

import (
	"context"
	"strings"
	"sync"

	"github.com/everolfe/resonate/internal/models"
)

// fakeTrackStore is an in-memory TrackStore for generator tests.
type fakeTrackStore struct {
	mu     sync.Mutex
	tracks map[int64]models.Track
	nextID int64

	findAllErr         error
	findByIDErr        error
	saveErr            error
	updatePlayCountErr error
	saveCalls          int
}

func newFakeTrackStore(tracks ...models.Track) *fakeTrackStore {
	s := &fakeTrackStore{tracks: make(map[int64]models.Track), nextID: 1}
	for _, t := range tracks {
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
		s.tracks[t.ID] = t
	}
	return s
}

func (s *fakeTrackStore) FindAll(_ context.Context) ([]models.Track, error) {
	if s.findAllErr != nil {
		return nil, s.findAllErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Track, 0, len(s.tracks))
	for id := int64(1); id < s.nextID; id++ {
		if t, ok := s.tracks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTrackStore) FindByID(_ context.Context, id int64) (*models.Track, error) {
	if s.findByIDErr != nil {
		return nil, s.findByIDErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (s *fakeTrackStore) FindByArtist(_ context.Context, artist string) ([]models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Track
	for _, t := range s.tracks {
		if strings.EqualFold(t.Artist, artist) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTrackStore) FindByTitleAndArtist(_ context.Context, title, artist string) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if strings.EqualFold(t.Title, title) && strings.EqualFold(t.Artist, artist) {
			return &t, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *fakeTrackStore) Save(_ context.Context, t *models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	t.ID = s.nextID
	s.nextID++
	s.tracks[t.ID] = *t
	return nil
}

func (s *fakeTrackStore) UpdatePlayCount(_ context.Context, id, playCount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updatePlayCountErr != nil {
		return s.updatePlayCountErr
	}
	t, ok := s.tracks[id]
	if !ok {
		return models.ErrNotFound
	}
	t.PlayCount = playCount
	s.tracks[id] = t
	return nil
}

// fakePrefStore serves canned preference slices.
type fakePrefStore struct {
	all       []models.UserPreference
	highRated []models.UserPreference
	favorites []models.UserPreference
	recent    []models.UserPreference

	allErr       error
	highRatedErr error
	favoritesErr error
	recentErr    error
}

func (s *fakePrefStore) FindByUser(_ context.Context, _ int64) ([]models.UserPreference, error) {
	return s.all, s.allErr
}

func (s *fakePrefStore) FindHighRated(_ context.Context, _ int64, _ int) ([]models.UserPreference, error) {
	return s.highRated, s.highRatedErr
}

func (s *fakePrefStore) FindFavorites(_ context.Context, _ int64) ([]models.UserPreference, error) {
	return s.favorites, s.favoritesErr
}

func (s *fakePrefStore) FindRecent(_ context.Context, _ int64, limit int) ([]models.UserPreference, error) {
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	if len(s.recent) > limit {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

// fakeRecStore records upserted recommendations.
type fakeRecStore struct {
	mu        sync.Mutex
	upserted  []models.Recommendation
	upsertErr error
}

func (s *fakeRecStore) Upsert(_ context.Context, r *models.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserted = append(s.upserted, *r)
	return nil
}

// fakeProvider serves canned descriptor slices keyed by seed.
type fakeProvider struct {
	similar     map[string][]models.TrackDescriptor
	similarErr  map[string]error
	chart       []models.TrackDescriptor
	chartErr    error
	similarReqs []int
}

func similarKey(artist, title string) string {
	return strings.ToLower(artist) + "\x00" + strings.ToLower(title)
}

func (p *fakeProvider) GetSimilarTracks(_ context.Context, artist, title string, limit int) ([]models.TrackDescriptor, error) {
	p.similarReqs = append(p.similarReqs, limit)
	key := similarKey(artist, title)
	if err, ok := p.similarErr[key]; ok {
		return nil, err
	}
	return p.similar[key], nil
}

func (p *fakeProvider) GetGlobalTopTracks(_ context.Context) ([]models.TrackDescriptor, error) {
	if p.chartErr != nil {
		return nil, p.chartErr
	}
	return p.chart, nil
}

// fakeGenerator returns canned candidates for engine tests.
type fakeGenerator struct {
	name   string
	source models.SourceKind
	out    []models.Recommendation
	err    error
}

func (g *fakeGenerator) Name() string { return g.name }

func (g *fakeGenerator) Source() models.SourceKind { return g.source }

func (g *fakeGenerator) Generate(_ context.Context, _ int64) ([]models.Recommendation, error) {
	return g.out, g.err
}
