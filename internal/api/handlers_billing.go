// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/leadflowhq/leadflow/internal/billing"
	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/models"
	"github.com/leadflowhq/leadflow/internal/plans"
)

// getSubscription returns the requester's plan, its limits, and the
// stored subscription row. Users without a subscription row are free tier.
func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "not authenticated")
		return
	}

	tier := models.PlanFree
	var sub *models.Subscription
	stored, err := h.subs.GetByUser(r.Context(), uid)
	switch {
	case err == nil:
		sub = stored
		if stored.Entitled() {
			tier = stored.Tier
		}
	case errors.Is(err, database.ErrNotFound):
		// free tier
	default:
		respondStoreError(w, err, "subscription")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tier":         tier,
		"limits":       plans.ForTier(tier),
		"subscription": sub,
	}, start)
}

// getUsage returns the requester's consumption against their plan caps.
func (h *Handler) getUsage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "not authenticated")
		return
	}

	tier := h.tierFor(r.Context(), uid)
	snapshot, err := h.enforcer.Snapshot(r.Context(), uid)
	if err != nil {
		respondStoreError(w, err, "usage")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tier":   tier,
		"limits": plans.ForTier(tier),
		"usage":  snapshot,
	}, start)
}

// dodoWebhook ingests Dodo Payments subscription lifecycle events.
func (h *Handler) dodoWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unreadable body")
		return
	}

	if !billing.VerifySignature(h.cfg.Dodo.WebhookSecret, body, r.Header.Get(billing.SignatureHeader)) {
		logging.Warn().Msg("billing webhook signature rejected")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid signature")
		return
	}

	var event billing.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed payload")
		return
	}

	if err := h.billing.Process(r.Context(), &event); err != nil {
		logging.Error().Err(err).Str("event_type", sanitizeLogValue(event.Type)).Msg("billing event failed")
		respondError(w, http.StatusInternalServerError, "BILLING_ERROR", "event processing failed")
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
