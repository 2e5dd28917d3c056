// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"net/http"
	"time"
)

// analyticsSummary returns per-kind automation event counts over a
// configurable trailing window (days query parameter, default 30).
func (h *Handler) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}

	days := queryInt(r, "days", 30)
	if days < 1 || days > 365 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	counts, err := h.leads.EventCounts(r.Context(), account.ID, since)
	if err != nil {
		respondStoreError(w, err, "analytics")
		return
	}
	stats, err := h.leads.LeadStats(r.Context(), account.ID)
	if err != nil {
		respondStoreError(w, err, "analytics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"window_days":  days,
		"event_counts": counts,
		"lead_stats":   stats,
	}, start)
}
