// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"net/http"
	"time"

	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/instagram"
	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/models"
)

type ruleRequest struct {
	Name              string            `json:"name" validate:"required,max=120"`
	Trigger           string            `json:"trigger_type" validate:"required"`
	Keywords          []string          `json:"keywords"`
	MediaIDs          []string          `json:"media_ids"`
	FollowMessage     string            `json:"follow_message"`
	EmailMessage      string            `json:"email_message"`
	EmailRetryMessage string            `json:"email_retry_message"`
	MessageVariations []string          `json:"message_variations" validate:"required,min=1"`
	CommentReplies    []string          `json:"comment_replies"`
	DelayMinutes      int               `json:"delay_minutes" validate:"min=0,max=1440"`
	Config            models.RuleConfig `json:"config"`
	IsActive          bool              `json:"is_active"`
}

// validateRule checks the payload against trigger semantics and platform
// message limits.
func (h *Handler) validateRule(req *ruleRequest) string {
	if err := h.validate.Struct(req); err != nil {
		return err.Error()
	}
	if !models.TriggerType(req.Trigger).Valid() {
		return "unknown trigger_type"
	}
	if err := instagram.ValidateKeywords(req.Keywords); err != nil {
		return err.Error()
	}
	for _, text := range req.MessageVariations {
		if err := instagram.ValidateDMText(text); err != nil {
			return err.Error()
		}
	}
	for _, text := range req.CommentReplies {
		if err := instagram.ValidateCommentText(text); err != nil {
			return err.Error()
		}
	}
	if req.Config.RequireFollow && req.FollowMessage == "" {
		return "follow_message is required when require_follow is set"
	}
	if req.Config.RequireEmail && req.EmailMessage == "" {
		return "email_message is required when require_email is set"
	}
	for _, text := range []string{req.FollowMessage, req.EmailMessage, req.EmailRetryMessage} {
		if text == "" {
			continue
		}
		if err := instagram.ValidateDMText(text); err != nil {
			return err.Error()
		}
	}
	return ""
}

func (req *ruleRequest) apply(rule *models.AutomationRule) {
	rule.Name = req.Name
	rule.Trigger = models.TriggerType(req.Trigger)
	rule.Keywords = req.Keywords
	rule.MediaIDs = req.MediaIDs
	rule.FollowMessage = req.FollowMessage
	rule.EmailMessage = req.EmailMessage
	rule.EmailRetryMessage = req.EmailRetryMessage
	rule.MessageVariations = req.MessageVariations
	rule.CommentReplies = req.CommentReplies
	rule.DelayMinutes = req.DelayMinutes
	rule.Config = req.Config
	rule.IsActive = req.IsActive
}

// createRule adds an automation rule to an owned account.
func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}

	var req ruleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := h.validateRule(&req); msg != "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	if req.IsActive {
		tier := h.tierFor(r.Context(), account.UserID)
		if err := h.enforcer.CheckRuleActivate(r.Context(), account.UserID, tier); err != nil {
			respondStoreError(w, err, "rule")
			return
		}
	}

	rule := &models.AutomationRule{AccountID: account.ID}
	req.apply(rule)
	if err := h.rules.Create(r.Context(), rule); err != nil {
		respondStoreError(w, err, "rule")
		return
	}

	logging.Info().
		Str("rule_id", rule.ID.String()).
		Str("trigger", string(rule.Trigger)).
		Msg("automation rule created")
	respondJSON(w, http.StatusCreated, rule, start)
}

// listRules returns the live rules of an owned account.
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		respondStoreError(w, err, "account")
		return
	}
	rules, err := h.rules.ListByAccount(r.Context(), account.ID)
	if err != nil {
		respondStoreError(w, err, "rules")
		return
	}
	respondJSON(w, http.StatusOK, rules, start)
}

// ownedRule loads a rule and verifies it belongs to an account the
// requester owns.
func (h *Handler) ownedRule(r *http.Request) (*models.AutomationRule, error) {
	account, err := h.ownedAccount(r.Context(), r, "accountID")
	if err != nil {
		return nil, err
	}
	id, err := uuidParam(r, "ruleID")
	if err != nil {
		return nil, database.ErrNotFound
	}
	rule, err := h.rules.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if rule.AccountID != account.ID || rule.Deleted() {
		return nil, database.ErrNotFound
	}
	return rule, nil
}

// getRule returns one rule.
func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rule, err := h.ownedRule(r)
	if err != nil {
		respondStoreError(w, err, "rule")
		return
	}
	respondJSON(w, http.StatusOK, rule, start)
}

// updateRule rewrites a rule.
func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rule, err := h.ownedRule(r)
	if err != nil {
		respondStoreError(w, err, "rule")
		return
	}

	var req ruleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := h.validateRule(&req); msg != "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	if req.IsActive && !rule.IsActive {
		uid, _ := userID(r)
		tier := h.tierFor(r.Context(), uid)
		if err := h.enforcer.CheckRuleActivate(r.Context(), uid, tier); err != nil {
			respondStoreError(w, err, "rule")
			return
		}
	}

	req.apply(rule)
	if err := h.rules.Update(r.Context(), rule); err != nil {
		respondStoreError(w, err, "rule")
		return
	}
	respondJSON(w, http.StatusOK, rule, start)
}

// setRuleActive toggles a rule.
func (h *Handler) setRuleActive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rule, err := h.ownedRule(r)
	if err != nil {
		respondStoreError(w, err, "rule")
		return
	}

	var req setActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.IsActive && !rule.IsActive {
		uid, _ := userID(r)
		tier := h.tierFor(r.Context(), uid)
		if err := h.enforcer.CheckRuleActivate(r.Context(), uid, tier); err != nil {
			respondStoreError(w, err, "rule")
			return
		}
	}

	if err := h.rules.SetActive(r.Context(), rule.ID, req.IsActive); err != nil {
		respondStoreError(w, err, "rule")
		return
	}
	rule.IsActive = req.IsActive
	respondJSON(w, http.StatusOK, rule, start)
}

// deleteRule soft-deletes a rule. Captured leads keep a nullable
// reference to it.
func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rule, err := h.ownedRule(r)
	if err != nil {
		respondStoreError(w, err, "rule")
		return
	}
	if err := h.rules.SoftDelete(r.Context(), rule.ID); err != nil {
		respondStoreError(w, err, "rule")
		return
	}
	logging.Info().Str("rule_id", rule.ID.String()).Msg("automation rule deleted")
	respondJSON(w, http.StatusOK, map[string]string{"deleted": rule.ID.String()}, start)
}
