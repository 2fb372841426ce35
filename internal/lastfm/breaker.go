// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package lastfm

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/everolfe/resonate/internal/logging"
	"github.com/everolfe/resonate/internal/metrics"
	"github.com/everolfe/resonate/internal/models"
)

// BreakerClient wraps a Provider with circuit breaker protection so a
// failing metadata API cannot stall recommendation generation.
//
// The breaker uses real time for its interval and timeout windows.
// Tests exercise the wrapped provider directly or drive failures
// through the breaker explicitly.
type BreakerClient struct {
	provider Provider
	cb       *gobreaker.CircuitBreaker[any]
	name     string
}

// NewBreakerClient wraps the provider. Configuration:
//   - max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - opens at >= 60% failure rate with minimum 10 requests
func NewBreakerClient(provider Provider) *BreakerClient {
	cbName := "lastfm-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening metadata provider circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("metadata provider circuit state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{provider: provider, cb: cb, name: cbName}
}

// castSlice type-casts a circuit breaker result to a descriptor slice.
func castSlice(result any, err error) ([]models.TrackDescriptor, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.([]models.TrackDescriptor)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// SearchTracks searches with circuit breaker protection.
func (b *BreakerClient) SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackDescriptor, error) {
	return castSlice(b.cb.Execute(func() (any, error) {
		return b.provider.SearchTracks(ctx, query, limit)
	}))
}

// GetTrackDetails fetches detail metadata with circuit breaker protection.
func (b *BreakerClient) GetTrackDetails(ctx context.Context, artist, title string) (*models.TrackDescriptor, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.provider.GetTrackDetails(ctx, artist, title)
	})
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*models.TrackDescriptor)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// GetSimilarTracks fetches similar tracks with circuit breaker protection.
func (b *BreakerClient) GetSimilarTracks(ctx context.Context, artist, title string, limit int) ([]models.TrackDescriptor, error) {
	return castSlice(b.cb.Execute(func() (any, error) {
		return b.provider.GetSimilarTracks(ctx, artist, title, limit)
	}))
}

// GetGlobalTopTracks fetches the global chart with circuit breaker protection.
func (b *BreakerClient) GetGlobalTopTracks(ctx context.Context) ([]models.TrackDescriptor, error) {
	return castSlice(b.cb.Execute(func() (any, error) {
		return b.provider.GetGlobalTopTracks(ctx)
	}))
}

// State returns the current breaker state for health reporting.
func (b *BreakerClient) State() string {
	return stateToString(b.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
