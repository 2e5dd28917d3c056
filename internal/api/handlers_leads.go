// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/leadflowhq/leadflow/internal/logging"
)

// listLeads returns a page of captured leads for an owned account.
func (h *Handler) listLeads(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}

	page, pageSize := h.pagination(r)
	leads, total, err := h.leads.ListLeads(r.Context(), account.ID, page, pageSize)
	if err != nil {
		respondStoreError(w, err, "leads")
		return
	}
	respondJSON(w, http.StatusOK, paginated(leads, total, page, pageSize), start)
}

// exportLeads streams every lead of an account as CSV.
func (h *Handler) exportLeads(w http.ResponseWriter, r *http.Request) {
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}

	leads, err := h.leads.AllLeads(r.Context(), account.ID)
	if err != nil {
		respondStoreError(w, err, "leads")
		return
	}

	filename := fmt.Sprintf("leads-%s-%s.csv", account.Username, time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"captured_at", "sender_id", "username", "email", "phone", "source"})
	for _, lead := range leads {
		_ = cw.Write([]string{
			lead.CreatedAt.UTC().Format(time.RFC3339),
			lead.SenderID,
			lead.Username,
			lead.Email,
			lead.Phone,
			lead.Source,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.Error().Err(err).Msg("csv export failed mid-stream")
	}
}

// leadStats returns aggregate capture counters.
func (h *Handler) leadStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}

	stats, err := h.leads.LeadStats(r.Context(), account.ID)
	if err != nil {
		respondStoreError(w, err, "stats")
		return
	}
	respondJSON(w, http.StatusOK, stats, start)
}

// listAudience returns a page of the audience roster.
func (h *Handler) listAudience(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}

	page, pageSize := h.pagination(r)
	members, total, err := h.leads.ListAudience(r.Context(), account.ID, page, pageSize)
	if err != nil {
		respondStoreError(w, err, "audience")
		return
	}
	respondJSON(w, http.StatusOK, paginated(members, total, page, pageSize), start)
}
