// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package lastfm

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// The Last.fm JSON API is inconsistent about numeric fields: the same
// field arrives as a number in one method and a quoted string in
// another. wireNumber accepts both.
type wireNumber int64

func (n *wireNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	// Some fields arrive as floats ("match": 0.85 style values share
	// the same decoding path).
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*n = wireNumber(f)
		return nil
	}
	*n = 0
	return nil
}

// wireArtist is an artist that arrives either as a plain string
// (track.search) or as an object with a name (everywhere else).
type wireArtist string

func (a *wireArtist) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = wireArtist(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = wireArtist(obj.Name)
	return nil
}

// errorResponse is Last.fm's application-level error envelope,
// delivered with HTTP 200.
type errorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type searchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []searchTrack `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

type searchTrack struct {
	Name      string     `json:"name"`
	Artist    wireArtist `json:"artist"`
	URL       string     `json:"url"`
	Listeners wireNumber `json:"listeners"`
}

type trackInfoResponse struct {
	Track struct {
		Name   string     `json:"name"`
		URL    string     `json:"url"`
		Artist wireArtist `json:"artist"`
		Album  struct {
			Title string `json:"title"`
		} `json:"album"`
		// Duration is reported in milliseconds by track.getInfo.
		Duration  wireNumber `json:"duration"`
		PlayCount wireNumber `json:"playcount"`
		Listeners wireNumber `json:"listeners"`
		TopTags   struct {
			Tag []struct {
				Name string `json:"name"`
			} `json:"tag"`
		} `json:"toptags"`
	} `json:"track"`
}

type similarResponse struct {
	SimilarTracks struct {
		Track []similarTrack `json:"track"`
	} `json:"similartracks"`
}

type similarTrack struct {
	Name      string     `json:"name"`
	Artist    wireArtist `json:"artist"`
	URL       string     `json:"url"`
	PlayCount wireNumber `json:"playcount"`
	// Duration is reported in seconds by track.getSimilar.
	Duration wireNumber `json:"duration"`
}

type chartResponse struct {
	Tracks struct {
		Track []chartTrack `json:"track"`
	} `json:"tracks"`
}

type chartTrack struct {
	Name      string     `json:"name"`
	Artist    wireArtist `json:"artist"`
	URL       string     `json:"url"`
	Duration  wireNumber `json:"duration"`
	PlayCount wireNumber `json:"playcount"`
	Listeners wireNumber `json:"listeners"`
}
