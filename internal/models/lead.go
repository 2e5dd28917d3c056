// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package models

import (
	"time"

	"github.com/google/uuid"
)

// CapturedLead is a contact captured from a conversation flow.
// RuleID is nullable: soft-deleting a rule keeps its leads with the
// reference nulled.
type CapturedLead struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	RuleID    *uuid.UUID `json:"rule_id,omitempty"`
	SenderID  string     `json:"sender_id"` // IGSID of the visitor
	Username  string     `json:"username,omitempty"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Source    string     `json:"source"` // dm, post_comment, story_reply
	CreatedAt time.Time  `json:"created_at"`
}

// LeadStats aggregates capture counts for an account.
type LeadStats struct {
	TotalLeads  int `json:"total_leads"`
	WithEmail   int `json:"with_email"`
	WithPhone   int `json:"with_phone"`
	Last30Days  int `json:"last_30_days"`
	Last7Days   int `json:"last_7_days"`
	UniqueUsers int `json:"unique_users"`
}

// AudienceMember is the per-(account, sender) global conversion record.
// A member is converted once it has an email and is following.
type AudienceMember struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	SenderID    string    `json:"sender_id"`
	Username    string    `json:"username,omitempty"`
	IsFollowing bool      `json:"is_following"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Converted reports whether the member completed both conversion gates.
func (m *AudienceMember) Converted() bool {
	return m.Email != "" && m.IsFollowing
}

// DMLog records one outbound message for quota accounting and analytics.
type DMLog struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	RuleID      *uuid.UUID `json:"rule_id,omitempty"`
	RecipientID string     `json:"recipient_id"`
	Kind        string     `json:"kind"` // follow_request, email_request, primary, retry, reminder, comment_reply
	Text        string     `json:"text"`
	SentAt      time.Time  `json:"sent_at"`
}

// AnalyticsEvent is an append-only record of automation activity.
type AnalyticsEvent struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	RuleID    *uuid.UUID `json:"rule_id,omitempty"`
	SenderID  string     `json:"sender_id,omitempty"`
	Kind      string     `json:"kind"` // trigger_matched, dm_sent, lead_captured, flow_completed, ...
	CreatedAt time.Time  `json:"created_at"`
}
