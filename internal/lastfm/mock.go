// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package lastfm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/everolfe/resonate/internal/models"
)

// mockCatalog serves a canned, deterministic track catalog so the
// service runs fully offline. Every method returns the same results
// for the same inputs.
type mockCatalog struct {
	tracks []models.TrackDescriptor
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{tracks: []models.TrackDescriptor{
		{Title: "Bohemian Rhapsody", Artist: "Queen", Album: "A Night at the Opera", DurationSeconds: 354, GenreTags: []string{"Rock", "Classic Rock"}, PlayCount: 2_500_000_000},
		{Title: "Blinding Lights", Artist: "The Weeknd", Album: "After Hours", DurationSeconds: 200, GenreTags: []string{"Pop", "Synthpop"}, PlayCount: 3_200_000_000},
		{Title: "Shape of You", Artist: "Ed Sheeran", Album: "Divide", DurationSeconds: 233, GenreTags: []string{"Pop"}, PlayCount: 3_500_000_000},
		{Title: "Hotel California", Artist: "Eagles", Album: "Hotel California", DurationSeconds: 391, GenreTags: []string{"Rock", "Classic Rock"}, PlayCount: 1_800_000_000},
		{Title: "Billie Jean", Artist: "Michael Jackson", Album: "Thriller", DurationSeconds: 294, GenreTags: []string{"Pop", "Funk"}, PlayCount: 1_900_000_000},
		{Title: "Smells Like Teen Spirit", Artist: "Nirvana", Album: "Nevermind", DurationSeconds: 301, GenreTags: []string{"Rock", "Grunge"}, PlayCount: 1_700_000_000},
		{Title: "Stairway to Heaven", Artist: "Led Zeppelin", Album: "Led Zeppelin IV", DurationSeconds: 482, GenreTags: []string{"Rock", "Classic Rock"}, PlayCount: 1_600_000_000},
		{Title: "Rolling in the Deep", Artist: "Adele", Album: "21", DurationSeconds: 228, GenreTags: []string{"Pop", "Soul"}, PlayCount: 2_100_000_000},
		{Title: "Take Five", Artist: "The Dave Brubeck Quartet", Album: "Time Out", DurationSeconds: 324, GenreTags: []string{"Jazz"}, PlayCount: 450_000_000},
		{Title: "So What", Artist: "Miles Davis", Album: "Kind of Blue", DurationSeconds: 562, GenreTags: []string{"Jazz"}, PlayCount: 380_000_000},
		{Title: "One More Time", Artist: "Daft Punk", Album: "Discovery", DurationSeconds: 320, GenreTags: []string{"Electronic", "House"}, PlayCount: 900_000_000},
		{Title: "Get Lucky", Artist: "Daft Punk", Album: "Random Access Memories", DurationSeconds: 369, GenreTags: []string{"Electronic", "Funk"}, PlayCount: 1_100_000_000},
	}}
}

func (m *mockCatalog) search(query string, limit int) []models.TrackDescriptor {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []models.TrackDescriptor
	for _, t := range m.tracks {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Artist), q) {
			out = append(out, t)
		}
	}
	return out
}

func (m *mockCatalog) details(artist, title string) (*models.TrackDescriptor, error) {
	for _, t := range m.tracks {
		if strings.EqualFold(t.Artist, artist) && strings.EqualFold(t.Title, title) {
			d := t
			return &d, nil
		}
	}
	return nil, fmt.Errorf("mock catalog has no entry for %q by %q", title, artist)
}

// similar returns catalog tracks sharing at least one genre with the
// seed, most played first. The seed itself is excluded; unknown seeds
// yield no results.
func (m *mockCatalog) similar(artist, title string, limit int) []models.TrackDescriptor {
	seed, err := m.details(artist, title)
	if err != nil {
		return nil
	}

	seedGenres := make(map[string]bool, len(seed.GenreTags))
	for _, g := range seed.GenreTags {
		seedGenres[strings.ToLower(g)] = true
	}

	var out []models.TrackDescriptor
	for _, t := range m.tracks {
		if strings.EqualFold(t.Title, seed.Title) && strings.EqualFold(t.Artist, seed.Artist) {
			continue
		}
		for _, g := range t.GenreTags {
			if seedGenres[strings.ToLower(g)] {
				out = append(out, t)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlayCount > out[j].PlayCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *mockCatalog) topTracks(limit int) []models.TrackDescriptor {
	out := make([]models.TrackDescriptor, len(m.tracks))
	copy(out, m.tracks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlayCount > out[j].PlayCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
