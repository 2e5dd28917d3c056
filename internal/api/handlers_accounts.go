// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"net/http"
	"time"

	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/models"
)

type connectAccountRequest struct {
	IGUserID    string `json:"ig_user_id" validate:"required"`
	PageID      string `json:"page_id" validate:"required"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token" validate:"required"`
}

// connectAccount links an Instagram business account.
func (h *Handler) connectAccount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "not authenticated")
		return
	}

	var req connectAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	tier := h.tierFor(r.Context(), uid)
	if err := h.enforcer.CheckAccountConnect(r.Context(), uid, tier); err != nil {
		respondStoreError(w, err, "account")
		return
	}

	account := &models.InstagramAccount{
		UserID:      uid,
		IGUserID:    req.IGUserID,
		PageID:      req.PageID,
		Username:    req.Username,
		AccessToken: req.AccessToken,
		IsActive:    true,
	}
	if err := h.accounts.Create(r.Context(), account); err != nil {
		respondStoreError(w, err, "account")
		return
	}

	logging.Info().
		Str("account_id", account.ID.String()).
		Str("username", sanitizeLogValue(account.Username)).
		Msg("instagram account connected")
	respondJSON(w, http.StatusCreated, account, start)
}

// listAccounts returns the requester's connected accounts.
func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "not authenticated")
		return
	}

	accounts, err := h.accounts.ListByUser(r.Context(), uid)
	if err != nil {
		respondStoreError(w, err, "accounts")
		return
	}
	respondJSON(w, http.StatusOK, accounts, start)
}

// getAccount returns one owned account.
func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}
	respondJSON(w, http.StatusOK, account, start)
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// setAccountActive pauses or resumes automation on an account.
func (h *Handler) setAccountActive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}

	var req setActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.accounts.SetActive(r.Context(), account.ID, req.IsActive); err != nil {
		respondStoreError(w, err, "account")
		return
	}
	account.IsActive = req.IsActive
	respondJSON(w, http.StatusOK, account, start)
}

// disconnectAccount removes an account and everything attached to it.
func (h *Handler) disconnectAccount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}
	if err := h.accounts.Delete(r.Context(), account.ID); err != nil {
		respondStoreError(w, err, "account")
		return
	}
	logging.Info().Str("account_id", account.ID.String()).Msg("instagram account disconnected")
	respondJSON(w, http.StatusOK, map[string]string{"deleted": account.ID.String()}, start)
}

// listAccountMedia proxies the account's recent media for the rule
// editor's post picker.
func (h *Handler) listAccountMedia(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}

	var media interface{}
	switch r.URL.Query().Get("type") {
	case "stories":
		media, err = h.ig.GetStories(r.Context(), account.IGUserID, account.AccessToken)
	case "live":
		media, err = h.ig.GetLiveMedia(r.Context(), account.IGUserID, account.AccessToken)
	default:
		media, err = h.ig.GetMedia(r.Context(), account.IGUserID, account.AccessToken)
	}
	if err != nil {
		logging.Warn().Err(err).Str("account_id", account.ID.String()).Msg("media fetch failed")
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "could not fetch media from Instagram")
		return
	}
	respondJSON(w, http.StatusOK, media, start)
}
