// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/internal/billing"
	"github.com/leadflowhq/leadflow/internal/config"
	"github.com/leadflowhq/leadflow/internal/models"
)

type fakeBus struct {
	events []*models.InboundEvent
}

func (f *fakeBus) PublishInbound(ev *models.InboundEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type fakeSubWriter struct {
	upserted *models.Subscription
	statuses map[string]models.SubscriptionStatus
}

func (f *fakeSubWriter) Upsert(_ context.Context, sub *models.Subscription) error {
	f.upserted = sub
	return nil
}

func (f *fakeSubWriter) SetStatus(_ context.Context, id string, status models.SubscriptionStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[string]models.SubscriptionStatus)
	}
	f.statuses[id] = status
	return nil
}

func webhookTestHandler(t *testing.T) (*Handler, *fakeBus, *fakeSubWriter) {
	t.Helper()
	cfg := &config.Config{
		Meta: config.MetaConfig{
			VerifyToken: "verify-me",
			AppSecret:   "app-secret",
		},
		Dodo: config.DodoConfig{WebhookSecret: "whsec_test"},
		Security: config.SecurityConfig{
			AuthMode:          "none",
			RateLimitDisabled: true,
		},
		API: config.APIConfig{DefaultPageSize: 50, MaxPageSize: 200},
	}
	bus := &fakeBus{}
	subs := &fakeSubWriter{}
	h := NewHandler(Deps{
		Config:  cfg,
		Bus:     bus,
		Billing: billing.NewProcessor(subs),
	})
	return h, bus, subs
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestMetaVerify(t *testing.T) {
	h, _, _ := webhookTestHandler(t)
	router := h.Router()

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/meta?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet,
		"/webhooks/meta?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func messagePayload(text string) []byte {
	payload := models.MetaWebhook{
		Object: "instagram",
		Entry: []models.MetaEntry{{
			ID:   "17841400000000001",
			Time: time.Now().UnixMilli(),
			Messaging: []models.MessagingItem{{
				Sender:    models.Participant{ID: "sender-1"},
				Recipient: models.Participant{ID: "17841400000000001"},
				Timestamp: time.Now().UnixMilli(),
				Message:   &models.MessageBody{MID: "mid.1", Text: text},
			}},
		}},
	}
	body, _ := json.Marshal(payload)
	return body
}

func TestMetaWebhookAcceptsSignedPayload(t *testing.T) {
	h, bus, _ := webhookTestHandler(t)
	router := h.Router()

	body := messagePayload("hello")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/meta", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EVENT_RECEIVED", rec.Body.String())
	require.Len(t, bus.events, 1)
	assert.Equal(t, models.EventMessage, bus.events[0].Kind)
	assert.Equal(t, "hello", bus.events[0].Text)
	assert.Equal(t, "sender-1", bus.events[0].SenderID)
}

func TestMetaWebhookRejectsBadSignature(t *testing.T) {
	h, bus, _ := webhookTestHandler(t)
	router := h.Router()

	body := messagePayload("hello")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/meta", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("wrong-secret", body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, bus.events)
}

func TestNormalizeWebhook(t *testing.T) {
	entry := func(items []models.MessagingItem, changes []models.ChangeItem) *models.MetaWebhook {
		return &models.MetaWebhook{
			Object: "instagram",
			Entry:  []models.MetaEntry{{ID: "acct-1", Messaging: items, Changes: changes}},
		}
	}

	t.Run("echo skipped", func(t *testing.T) {
		events := NormalizeWebhook(entry([]models.MessagingItem{{
			Sender:  models.Participant{ID: "acct-1"},
			Message: &models.MessageBody{MID: "mid.1", Text: "our reply", IsEcho: true},
		}}, nil))
		assert.Empty(t, events)
	})

	t.Run("postback", func(t *testing.T) {
		events := NormalizeWebhook(entry([]models.MessagingItem{{
			Sender:   models.Participant{ID: "sender-1"},
			Postback: &models.Postback{MID: "mid.2", Title: "I'm following", Payload: "leadflow_follow_confirmed"},
		}}, nil))
		require.Len(t, events, 1)
		assert.Equal(t, models.EventPostback, events[0].Kind)
		assert.Equal(t, "leadflow_follow_confirmed", events[0].Payload)
	})

	t.Run("quick reply carries payload", func(t *testing.T) {
		events := NormalizeWebhook(entry([]models.MessagingItem{{
			Sender: models.Participant{ID: "sender-1"},
			Message: &models.MessageBody{
				MID:   "mid.3",
				Text:  "I'm following ✅",
				Quick: &models.QuickReply{Payload: "leadflow_follow_confirmed"},
			},
		}}, nil))
		require.Len(t, events, 1)
		assert.Equal(t, models.EventMessage, events[0].Kind)
		assert.Equal(t, "leadflow_follow_confirmed", events[0].Payload)
	})

	t.Run("story reply", func(t *testing.T) {
		events := NormalizeWebhook(entry([]models.MessagingItem{{
			Sender: models.Participant{ID: "sender-1"},
			Message: &models.MessageBody{
				MID:     "mid.4",
				Text:    "love it",
				ReplyTo: &models.ReplyTo{Story: &models.StoryRef{ID: "story-9"}},
			},
		}}, nil))
		require.Len(t, events, 1)
		assert.Equal(t, models.EventStoryReply, events[0].Kind)
		assert.Equal(t, "story-9", events[0].MediaID)
	})

	t.Run("feed comment", func(t *testing.T) {
		events := NormalizeWebhook(entry(nil, []models.ChangeItem{{
			Field: "comments",
			Value: models.CommentBody{
				ID:    "comment-1",
				Text:  "LINK",
				From:  &models.Participant{ID: "sender-2"},
				Media: &models.MediaRef{ID: "media-7", MediaProductType: "FEED"},
			},
		}}))
		require.Len(t, events, 1)
		assert.Equal(t, models.EventComment, events[0].Kind)
		assert.False(t, events[0].IsLive)
		assert.Equal(t, "media-7", events[0].MediaID)
		assert.Equal(t, "comment-1", events[0].DedupKey())
	})

	t.Run("live comment", func(t *testing.T) {
		events := NormalizeWebhook(entry(nil, []models.ChangeItem{{
			Field: "live_comments",
			Value: models.CommentBody{ID: "comment-2", Text: "hi", From: &models.Participant{ID: "sender-3"}},
		}}))
		require.Len(t, events, 1)
		assert.True(t, events[0].IsLive)
	})

	t.Run("unknown change field skipped", func(t *testing.T) {
		events := NormalizeWebhook(entry(nil, []models.ChangeItem{{Field: "mentions"}}))
		assert.Empty(t, events)
	})
}

func TestDodoWebhook(t *testing.T) {
	h, _, subs := webhookTestHandler(t)
	router := h.Router()
	userID := uuid.New()

	event := billing.WebhookEvent{
		Type: "subscription.active",
		Data: billing.EventData{
			SubscriptionID: "sub_9",
			Metadata:       map[string]string{"user_id": userID.String(), "tier": "basic"},
		},
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write(body)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/dodo", bytes.NewReader(body))
	req.Header.Set(billing.SignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, subs.upserted)
	assert.Equal(t, userID, subs.upserted.UserID)
	assert.Equal(t, models.PlanBasic, subs.upserted.Tier)

	// Unsigned requests never reach the processor.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/dodo", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
