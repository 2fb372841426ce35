// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the full route tree with the global middleware
// stack.
func NewRouter(handler *Handler, mw *Middleware) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(Recoverer())
	r.Use(RequestLogging())
	r.Use(mw.CORS())

	// Operational endpoints stay outside the rate limit so monitoring
	// probes are never throttled.
	r.Get("/healthz", handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(Metrics())

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Route("/recommendations", func(r chi.Router) {
				r.Get("/", handler.ListRecommendations)
				r.Delete("/", handler.ClearRecommendations)
				r.Post("/generate", handler.GenerateRecommendations)
				r.Post("/viewed", handler.MarkAllViewed)
				r.Post("/{id}/viewed", handler.MarkViewed)
			})

			r.Route("/preferences", func(r chi.Router) {
				r.Get("/", handler.ListPreferences)
				r.Put("/{trackID}", handler.UpsertPreference)
			})
		})

		r.Get("/tracks/search", handler.SearchTracks)
	})

	return r
}
