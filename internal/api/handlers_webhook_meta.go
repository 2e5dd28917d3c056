// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/models"
)

// maxWebhookBody bounds the webhook payload size.
const maxWebhookBody = 1 << 20

// metaVerify answers the one-time GET subscription handshake by echoing
// hub.challenge back as plain text.
func (h *Handler) metaVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token != h.cfg.Meta.VerifyToken || challenge == "" {
		logging.Warn().
			Str("mode", sanitizeLogValue(mode)).
			Msg("webhook verification rejected")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	logging.Info().Msg("webhook verification succeeded")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// metaWebhook ingests a webhook delivery. The body is verified against
// X-Hub-Signature-256, normalized, and queued; the response returns
// before any event is processed so Meta never sees a slow consumer.
func (h *Handler) metaWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unreadable body")
		return
	}

	if !h.verifyMetaSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		metrics.WebhookSignatureFailures.Inc()
		logging.Warn().Msg("webhook signature rejected")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid signature")
		return
	}

	var payload models.MetaWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		logging.Warn().Err(err).Msg("webhook payload unparseable")
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed payload")
		return
	}

	for _, ev := range NormalizeWebhook(&payload) {
		if err := h.bus.PublishInbound(ev); err != nil {
			logging.Error().Err(err).Msg("event publish failed")
		}
	}

	// Meta retries non-200 responses aggressively; acknowledge receipt
	// even when individual events were dropped.
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("EVENT_RECEIVED"))
}

// verifyMetaSignature checks the X-Hub-Signature-256 header. With no app
// secret configured verification is skipped (development only).
func (h *Handler) verifyMetaSignature(body []byte, header string) bool {
	secret := h.cfg.Meta.AppSecret
	if secret == "" {
		return true
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}

// NormalizeWebhook flattens a webhook envelope into engine events.
// Echoes of our own sends are dropped here; everything else is the
// engine's problem.
func NormalizeWebhook(payload *models.MetaWebhook) []*models.InboundEvent {
	var events []*models.InboundEvent
	for _, entry := range payload.Entry {
		for _, item := range entry.Messaging {
			if ev := normalizeMessaging(entry.ID, &item); ev != nil {
				events = append(events, ev)
			}
		}
		for _, change := range entry.Changes {
			if ev := normalizeChange(entry.ID, &change); ev != nil {
				events = append(events, ev)
			}
		}
	}
	return events
}

func normalizeMessaging(accountID string, item *models.MessagingItem) *models.InboundEvent {
	ev := &models.InboundEvent{
		AccountID: accountID,
		SenderID:  item.Sender.ID,
		Timestamp: item.Timestamp,
	}

	switch {
	case item.Postback != nil:
		ev.Kind = models.EventPostback
		ev.MID = item.Postback.MID
		ev.Payload = item.Postback.Payload
		ev.Text = item.Postback.Title

	case item.Message != nil:
		if item.Message.IsEcho {
			return nil
		}
		ev.MID = item.Message.MID
		ev.Text = item.Message.Text
		if item.Message.Quick != nil {
			ev.Payload = item.Message.Quick.Payload
		}
		if item.Message.ReplyTo != nil && item.Message.ReplyTo.Story != nil {
			ev.Kind = models.EventStoryReply
			ev.MediaID = item.Message.ReplyTo.Story.ID
		} else {
			ev.Kind = models.EventMessage
		}

	default:
		return nil
	}
	return ev
}

func normalizeChange(accountID string, change *models.ChangeItem) *models.InboundEvent {
	if change.Field != "comments" && change.Field != "live_comments" {
		return nil
	}
	comment := change.Value
	ev := &models.InboundEvent{
		Kind:      models.EventComment,
		AccountID: accountID,
		CommentID: comment.ID,
		Text:      comment.Text,
		IsLive:    change.Field == "live_comments",
	}
	if comment.From != nil {
		ev.SenderID = comment.From.ID
	}
	if comment.Media != nil {
		ev.MediaID = comment.Media.ID
		if comment.Media.MediaProductType == "LIVE" {
			ev.IsLive = true
		}
	}
	return ev
}
