// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/internal/models"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"type":"subscription.active"}`)
	valid := sign(secret, body)

	tests := []struct {
		name      string
		signature string
		want      bool
	}{
		{"valid", valid, true},
		{"valid with prefix", "sha256=" + valid, true},
		{"wrong signature", sign("other", body), false},
		{"not hex", "zzzz", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(secret, body, tt.signature))
		})
	}

	assert.False(t, VerifySignature("", body, valid), "empty secret never verifies")
	assert.False(t, VerifySignature(secret, []byte("tampered"), valid))
}

type fakeSubs struct {
	upserted *models.Subscription
	statuses map[string]models.SubscriptionStatus
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{statuses: make(map[string]models.SubscriptionStatus)}
}

func (f *fakeSubs) Upsert(_ context.Context, sub *models.Subscription) error {
	f.upserted = sub
	return nil
}

func (f *fakeSubs) SetStatus(_ context.Context, dodoID string, status models.SubscriptionStatus) error {
	f.statuses[dodoID] = status
	return nil
}

func TestProcessActivation(t *testing.T) {
	subs := newFakeSubs()
	p := NewProcessor(subs)
	userID := uuid.New()
	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)

	err := p.Process(context.Background(), &WebhookEvent{
		Type: "subscription.active",
		Data: EventData{
			SubscriptionID:  "sub_123",
			NextBillingDate: periodEnd,
			Metadata: map[string]string{
				"user_id": userID.String(),
				"tier":    "pro",
			},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, subs.upserted)
	assert.Equal(t, userID, subs.upserted.UserID)
	assert.Equal(t, "sub_123", subs.upserted.DodoID)
	assert.Equal(t, models.PlanPro, subs.upserted.Tier)
	assert.Equal(t, models.SubscriptionActive, subs.upserted.Status)
	assert.Equal(t, periodEnd, subs.upserted.CurrentPeriodEnd)
}

func TestProcessActivationDefaultsPeriodEnd(t *testing.T) {
	subs := newFakeSubs()
	p := NewProcessor(subs)

	err := p.Process(context.Background(), &WebhookEvent{
		Type: "subscription.renewed",
		Data: EventData{
			SubscriptionID: "sub_123",
			Metadata:       map[string]string{"user_id": uuid.New().String(), "tier": "basic"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, subs.upserted)
	assert.True(t, subs.upserted.CurrentPeriodEnd.After(time.Now().Add(29*24*time.Hour)))
}

func TestProcessActivationRejectsBadMetadata(t *testing.T) {
	p := NewProcessor(newFakeSubs())

	err := p.Process(context.Background(), &WebhookEvent{
		Type: "subscription.active",
		Data: EventData{SubscriptionID: "sub_123", Metadata: map[string]string{"tier": "pro"}},
	})
	assert.Error(t, err, "missing user_id")

	err = p.Process(context.Background(), &WebhookEvent{
		Type: "subscription.active",
		Data: EventData{
			SubscriptionID: "sub_123",
			Metadata:       map[string]string{"user_id": uuid.New().String(), "tier": "platinum"},
		},
	})
	assert.Error(t, err, "unknown tier")
}

func TestProcessLifecycleTransitions(t *testing.T) {
	tests := []struct {
		eventType string
		want      models.SubscriptionStatus
	}{
		{"subscription.cancelled", models.SubscriptionCancelled},
		{"subscription.expired", models.SubscriptionCancelled},
		{"subscription.on_hold", models.SubscriptionPastDue},
		{"subscription.failed", models.SubscriptionPastDue},
		{"payment.failed", models.SubscriptionPastDue},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			subs := newFakeSubs()
			p := NewProcessor(subs)
			err := p.Process(context.Background(), &WebhookEvent{
				Type: tt.eventType,
				Data: EventData{SubscriptionID: "sub_123"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, subs.statuses["sub_123"])
		})
	}
}

func TestProcessIgnoresUnknownEventTypes(t *testing.T) {
	subs := newFakeSubs()
	p := NewProcessor(subs)

	err := p.Process(context.Background(), &WebhookEvent{Type: "payment.succeeded"})
	require.NoError(t, err)
	assert.Nil(t, subs.upserted)
	assert.Empty(t, subs.statuses)
}
