// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package billing processes Dodo Payments webhooks and maps them onto
// subscription rows. Checkout sessions carry the Supabase user ID and
// the purchased tier in their metadata; webhooks echo that metadata
// back, which is how provider events correlate to users.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/models"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "webhook-signature"

// fallbackPeriod is used when an activation event carries no next
// billing date.
const fallbackPeriod = 30 * 24 * time.Hour

// VerifySignature checks the webhook-signature header against the raw
// body. The header value is hex, optionally prefixed with "sha256=".
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}

// WebhookEvent is the Dodo Payments webhook envelope.
type WebhookEvent struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the subscription fields the processor consumes.
type EventData struct {
	SubscriptionID  string            `json:"subscription_id"`
	Status          string            `json:"status,omitempty"`
	NextBillingDate time.Time         `json:"next_billing_date,omitzero"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// SubscriptionWriter is the subset of the subscription store the
// processor needs.
type SubscriptionWriter interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
	SetStatus(ctx context.Context, dodoID string, status models.SubscriptionStatus) error
}

// Processor applies webhook events to subscription state.
type Processor struct {
	subs SubscriptionWriter
}

// NewProcessor creates a billing webhook processor.
func NewProcessor(subs SubscriptionWriter) *Processor {
	return &Processor{subs: subs}
}

// Process applies one verified webhook event. Unknown event types are
// ignored; Dodo adds types over time and old deployments must not 500
// on them.
func (p *Processor) Process(ctx context.Context, ev *WebhookEvent) error {
	log := logging.With().
		Str("event_type", ev.Type).
		Str("subscription_id", ev.Data.SubscriptionID).
		Logger()

	switch ev.Type {
	case "subscription.active", "subscription.renewed":
		sub, err := p.activation(ev)
		if err != nil {
			return err
		}
		if err := p.subs.Upsert(ctx, sub); err != nil {
			return fmt.Errorf("billing: upsert subscription: %w", err)
		}
		log.Info().Str("tier", string(sub.Tier)).Msg("subscription activated")
		return nil

	case "subscription.cancelled", "subscription.expired":
		if err := p.subs.SetStatus(ctx, ev.Data.SubscriptionID, models.SubscriptionCancelled); err != nil {
			return fmt.Errorf("billing: cancel subscription: %w", err)
		}
		log.Info().Msg("subscription cancelled")
		return nil

	case "subscription.on_hold", "subscription.failed", "payment.failed":
		if err := p.subs.SetStatus(ctx, ev.Data.SubscriptionID, models.SubscriptionPastDue); err != nil {
			return fmt.Errorf("billing: mark subscription past due: %w", err)
		}
		log.Warn().Msg("subscription past due")
		return nil
	}

	log.Debug().Msg("unhandled billing event type")
	return nil
}

// activation builds the subscription row for an activation or renewal.
func (p *Processor) activation(ev *WebhookEvent) (*models.Subscription, error) {
	userID, err := uuid.Parse(ev.Data.Metadata["user_id"])
	if err != nil {
		return nil, fmt.Errorf("billing: event %s has no usable user_id metadata: %w", ev.Type, err)
	}
	tier := models.PlanTier(ev.Data.Metadata["tier"])
	if !tier.Valid() {
		return nil, fmt.Errorf("billing: event %s has unknown tier %q", ev.Type, ev.Data.Metadata["tier"])
	}

	periodEnd := ev.Data.NextBillingDate
	if periodEnd.IsZero() {
		periodEnd = time.Now().UTC().Add(fallbackPeriod)
	}

	return &models.Subscription{
		UserID:           userID,
		DodoID:           ev.Data.SubscriptionID,
		Tier:             tier,
		Status:           models.SubscriptionActive,
		CurrentPeriodEnd: periodEnd,
	}, nil
}
