// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package api exposes the dashboard REST API, the Meta and Dodo webhook
// receivers, and the live websocket feed.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/internal/auth"
	"github.com/leadflowhq/leadflow/internal/billing"
	"github.com/leadflowhq/leadflow/internal/config"
	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/instagram"
	"github.com/leadflowhq/leadflow/internal/models"
	"github.com/leadflowhq/leadflow/internal/plans"
	"github.com/leadflowhq/leadflow/internal/validation"
	"github.com/leadflowhq/leadflow/internal/websocket"
)

// EventPublisher feeds normalized webhook events into the pipeline.
type EventPublisher interface {
	PublishInbound(ev *models.InboundEvent) error
}

// Handler carries the dependencies of every HTTP endpoint.
type Handler struct {
	cfg      *config.Config
	db       *database.DB
	accounts *database.AccountStore
	rules    *database.RuleStore
	leads    *database.LeadStore
	subs     *database.SubscriptionStore
	enforcer *plans.Enforcer
	billing  *billing.Processor
	bus      EventPublisher
	hub      *websocket.Hub
	ig       instagram.API
	verifier *auth.Verifier
	validate *validation.Validator

	startTime time.Time
}

// Deps wires a Handler.
type Deps struct {
	Config   *config.Config
	DB       *database.DB
	Accounts *database.AccountStore
	Rules    *database.RuleStore
	Leads    *database.LeadStore
	Subs     *database.SubscriptionStore
	Enforcer *plans.Enforcer
	Billing  *billing.Processor
	Bus      EventPublisher
	Hub      *websocket.Hub
	IG       instagram.API
	Verifier *auth.Verifier
}

// NewHandler creates the API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		cfg:       d.Config,
		db:        d.DB,
		accounts:  d.Accounts,
		rules:     d.Rules,
		leads:     d.Leads,
		subs:      d.Subs,
		enforcer:  d.Enforcer,
		billing:   d.Billing,
		bus:       d.Bus,
		hub:       d.Hub,
		ig:        d.IG,
		verifier:  d.Verifier,
		validate:  validation.New(),
		startTime: time.Now(),
	}
}

// userID pulls the authenticated user from the request context. The auth
// middleware guarantees it on dashboard routes.
func userID(r *http.Request) (uuid.UUID, bool) {
	return auth.UserIDFromContext(r.Context())
}

// ownedAccount loads an account and verifies the requester owns it.
// Missing and foreign accounts are both reported as not found.
func (h *Handler) ownedAccount(ctx context.Context, r *http.Request, param string) (*models.InstagramAccount, error) {
	uid, ok := userID(r)
	if !ok {
		return nil, database.ErrNotFound
	}
	id, err := uuidParam(r, param)
	if err != nil {
		return nil, database.ErrNotFound
	}
	account, err := h.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.UserID != uid {
		return nil, database.ErrNotFound
	}
	return account, nil
}

// tierFor resolves the requester's effective plan tier.
func (h *Handler) tierFor(ctx context.Context, uid uuid.UUID) models.PlanTier {
	tier, err := h.subs.TierForUser(ctx, uid)
	if err != nil {
		return models.PlanFree
	}
	return tier
}
