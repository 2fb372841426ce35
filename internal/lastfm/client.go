// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

// Package lastfm implements the external metadata provider client. It
// talks to the Last.fm JSON API with token-bucket pacing, per-call
// timeouts, and a Badger-backed response cache, or serves a canned
// catalog in mock mode for offline operation.
package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/everolfe/resonate/internal/config"
	"github.com/everolfe/resonate/internal/metrics"
	"github.com/everolfe/resonate/internal/models"
)

// Provider is the metadata surface the recommendation engine and API
// consume. Client implements it directly; BreakerClient wraps it with
// circuit breaker protection.
type Provider interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackDescriptor, error)
	GetTrackDetails(ctx context.Context, artist, title string) (*models.TrackDescriptor, error)
	GetSimilarTracks(ctx context.Context, artist, title string, limit int) ([]models.TrackDescriptor, error)
	GetGlobalTopTracks(ctx context.Context) ([]models.TrackDescriptor, error)
}

// Default request limits. Chart results are fetched wide then trimmed
// because the chart contains non-music entries on occasion.
const (
	defaultSearchLimit = 10
	chartFetchLimit    = 30
	chartReturnLimit   = 20
)

// Client is the live Last.fm API client.
type Client struct {
	cfg        config.LastFMConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *Cache
	logger     zerolog.Logger
	mock       *mockCatalog
}

// New creates a client from configuration. In mock mode no network
// access ever happens. The cache may be nil to disable caching.
func New(cfg config.LastFMConfig, cache *Cache, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}
	if cfg.EnrichWorkers <= 0 {
		cfg.EnrichWorkers = 3
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:      cache,
		logger:     logger,
	}
	if cfg.MockMode {
		c.mock = newMockCatalog()
	}
	return c
}

// SearchTracks searches the catalog by free-text query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackDescriptor, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if c.mock != nil {
		return c.mock.search(query, limit), nil
	}

	params := url.Values{}
	params.Set("track", query)
	params.Set("limit", strconv.Itoa(limit))

	var resp searchResponse
	if err := c.call(ctx, "track.search", params, &resp); err != nil {
		return nil, err
	}

	descriptors := make([]models.TrackDescriptor, 0, len(resp.Results.TrackMatches.Track))
	for _, t := range resp.Results.TrackMatches.Track {
		d := models.TrackDescriptor{
			Title:     t.Name,
			Artist:    string(t.Artist),
			PlayCount: int64(t.Listeners),
			URL:       t.URL,
		}
		if !d.Valid() {
			continue
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// GetTrackDetails fetches full metadata for one track, including album,
// duration, play count, and genre tags. Results are cached.
func (c *Client) GetTrackDetails(ctx context.Context, artist, title string) (*models.TrackDescriptor, error) {
	if c.mock != nil {
		return c.mock.details(artist, title)
	}

	key := cacheKey("detail", artist, title)
	if d, ok := c.cacheGet(key); ok {
		return d, nil
	}

	params := url.Values{}
	params.Set("artist", artist)
	params.Set("track", title)
	params.Set("autocorrect", "1")

	var resp trackInfoResponse
	if err := c.call(ctx, "track.getInfo", params, &resp); err != nil {
		return nil, err
	}

	tr := resp.Track
	d := &models.TrackDescriptor{
		Title:  tr.Name,
		Artist: string(tr.Artist),
		Album:  tr.Album.Title,
		// track.getInfo reports duration in milliseconds.
		DurationSeconds: int(tr.Duration) / 1000,
		PlayCount:       int64(tr.PlayCount),
		URL:             tr.URL,
	}
	for _, tag := range tr.TopTags.Tag {
		if name := strings.TrimSpace(tag.Name); name != "" {
			d.GenreTags = append(d.GenreTags, name)
		}
	}
	if !d.Valid() {
		return nil, fmt.Errorf("track.getInfo returned unusable metadata for %q by %q", title, artist)
	}

	c.cachePut(key, d)
	return d, nil
}

// GetSimilarTracks returns tracks similar to the given one, enriched
// with detail metadata.
func (c *Client) GetSimilarTracks(ctx context.Context, artist, title string, limit int) ([]models.TrackDescriptor, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if c.mock != nil {
		return c.mock.similar(artist, title, limit), nil
	}

	params := url.Values{}
	params.Set("artist", artist)
	params.Set("track", title)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("autocorrect", "1")

	var resp similarResponse
	if err := c.call(ctx, "track.getSimilar", params, &resp); err != nil {
		return nil, err
	}

	descriptors := make([]models.TrackDescriptor, 0, len(resp.SimilarTracks.Track))
	for _, t := range resp.SimilarTracks.Track {
		d := models.TrackDescriptor{
			Title:  t.Name,
			Artist: string(t.Artist),
			// track.getSimilar reports duration in seconds.
			DurationSeconds: int(t.Duration),
			PlayCount:       int64(t.PlayCount),
			URL:             t.URL,
		}
		if !d.Valid() {
			continue
		}
		descriptors = append(descriptors, d)
	}

	return c.enrich(ctx, descriptors), nil
}

// GetGlobalTopTracks returns the current global chart, enriched with
// detail metadata.
func (c *Client) GetGlobalTopTracks(ctx context.Context) ([]models.TrackDescriptor, error) {
	if c.mock != nil {
		return c.mock.topTracks(chartReturnLimit), nil
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(chartFetchLimit))

	var resp chartResponse
	if err := c.call(ctx, "chart.gettoptracks", params, &resp); err != nil {
		return nil, err
	}

	descriptors := make([]models.TrackDescriptor, 0, chartReturnLimit)
	for _, t := range resp.Tracks.Track {
		if len(descriptors) >= chartReturnLimit {
			break
		}
		d := models.TrackDescriptor{
			Title:           t.Name,
			Artist:          string(t.Artist),
			DurationSeconds: int(t.Duration),
			PlayCount:       int64(t.PlayCount),
			URL:             t.URL,
		}
		if !d.Valid() {
			continue
		}
		descriptors = append(descriptors, d)
	}

	return c.enrich(ctx, descriptors), nil
}

// enrich fills album, genre, and duration gaps in descriptors with
// detail lookups, fanned out across a bounded worker group. Enrichment
// is best effort: a failed lookup leaves the descriptor as-is.
func (c *Client) enrich(ctx context.Context, descriptors []models.TrackDescriptor) []models.TrackDescriptor {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.EnrichWorkers)

	for i := range descriptors {
		if descriptors[i].Album != "" && len(descriptors[i].GenreTags) > 0 && descriptors[i].DurationSeconds > 0 {
			continue
		}
		g.Go(func() error {
			detail, err := c.GetTrackDetails(gctx, descriptors[i].Artist, descriptors[i].Title)
			if err != nil {
				c.logger.Debug().Err(err).
					Str("title", descriptors[i].Title).
					Str("artist", descriptors[i].Artist).
					Msg("detail enrichment skipped")
				return nil
			}
			if descriptors[i].Album == "" {
				descriptors[i].Album = detail.Album
			}
			if len(descriptors[i].GenreTags) == 0 {
				descriptors[i].GenreTags = detail.GenreTags
			}
			if descriptors[i].DurationSeconds == 0 {
				descriptors[i].DurationSeconds = detail.DurationSeconds
			}
			if descriptors[i].PlayCount == 0 {
				descriptors[i].PlayCount = detail.PlayCount
			}
			return nil
		})
	}

	// Workers never return errors; Wait only propagates context
	// cancellation, in which case partial enrichment is acceptable.
	_ = g.Wait()
	return descriptors
}

// call performs one paced, time-bounded API request and decodes the
// response into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params.Set("method", method)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("format", "json")

	reqURL := strings.TrimRight(c.cfg.BaseURL, "?") + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "resonate/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordProviderRequest(method, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	// The API signals application errors inside a 200 body.
	var apiErr errorResponse
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != 0 {
		return fmt.Errorf("%s API error %d: %s", method, apiErr.Error, apiErr.Message)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", method, err)
	}
	return nil
}

func (c *Client) cacheGet(key string) (*models.TrackDescriptor, bool) {
	if c.cache == nil {
		return nil, false
	}
	d, ok := c.cache.Get(key)
	if ok {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}
	return d, ok
}

func (c *Client) cachePut(key string, d *models.TrackDescriptor) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Put(key, d); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func cacheKey(kind, artist, title string) string {
	return kind + "\x00" + strings.ToLower(strings.TrimSpace(artist)) + "\x00" + strings.ToLower(strings.TrimSpace(title))
}
