// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadflowhq/leadflow/internal/auth"
)

// Router assembles the full HTTP surface.
//
// Unauthenticated: health, metrics, and the two webhook receivers, which
// carry their own signature verification. Everything under /api/v1
// requires a Supabase bearer token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)
	r.Use(requestLogger)

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/meta", h.metaVerify)
		r.Post("/meta", h.metaWebhook)
		r.Post("/dodo", h.dodoWebhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		if len(h.cfg.Security.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   h.cfg.Security.CORSOrigins,
				AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		if !h.cfg.Security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow))
		}

		// The websocket feed authenticates via query parameter.
		r.Get("/ws", h.websocketFeed)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.verifier, h.cfg.Security.AuthMode))

			r.Get("/billing/subscription", h.getSubscription)
			r.Get("/usage", h.getUsage)

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", h.listAccounts)
				r.Post("/", h.connectAccount)

				r.Route("/{accountID}", func(r chi.Router) {
					r.Get("/", h.getAccount)
					r.Delete("/", h.disconnectAccount)
					r.Put("/active", h.setAccountActive)
					r.Get("/media", h.listAccountMedia)

					r.Route("/rules", func(r chi.Router) {
						r.Get("/", h.listRules)
						r.Post("/", h.createRule)
						r.Route("/{ruleID}", func(r chi.Router) {
							r.Get("/", h.getRule)
							r.Put("/", h.updateRule)
							r.Delete("/", h.deleteRule)
							r.Put("/active", h.setRuleActive)
						})
					})

					r.Get("/leads", h.listLeads)
					r.Get("/leads/export", h.exportLeads)
					r.Get("/leads/stats", h.leadStats)
					r.Get("/audience", h.listAudience)
					r.Get("/analytics", h.analyticsSummary)
				})
			})
		})
	})

	return r
}
