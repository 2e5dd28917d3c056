// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package models

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType identifies which inbound event kind activates a rule.
type TriggerType string

const (
	TriggerPostComment TriggerType = "post_comment"
	TriggerLiveComment TriggerType = "live_comment"
	TriggerNewMessage  TriggerType = "new_message"
	TriggerKeyword     TriggerType = "keyword"
	TriggerPostback    TriggerType = "postback"
	TriggerStoryReply  TriggerType = "story_reply"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerPostComment, TriggerLiveComment, TriggerNewMessage,
		TriggerKeyword, TriggerPostback, TriggerStoryReply:
		return true
	}
	return false
}

// RuleConfig holds the per-rule behavior switches that drive the
// conversation flow. All fields default to the standard multi-step flow.
type RuleConfig struct {
	// RequireFollow gates the reward DM behind a follow request.
	RequireFollow bool `json:"require_follow"`

	// RequireEmail gates the reward DM behind an email (or phone) capture.
	RequireEmail bool `json:"require_email"`

	// SimpleMode collapses the flow into a single loop: every inbound
	// message is answered with the primary DM, no gates.
	SimpleMode bool `json:"simple_mode"`

	// StrictMode ignores inbound text that is not a follow confirmation
	// while the flow is waiting for one.
	StrictMode bool `json:"strict_mode"`

	// VIPShortcut skips the follow and email steps when the sender is
	// already converted (has email and is following).
	VIPShortcut bool `json:"vip_shortcut"`

	// AutoReplyToComments posts a public reply (from CommentReplies)
	// under the triggering comment in addition to the private DM.
	AutoReplyToComments bool `json:"auto_reply_to_comments"`
}

// AutomationRule is a user-configured trigger plus the messages it sends.
//
// Soft delete: DeletedAt is set instead of removing the row so that
// analytics rows referencing the rule survive (their rule reference is
// nulled by the store).
type AutomationRule struct {
	ID        uuid.UUID   `json:"id"`
	AccountID uuid.UUID   `json:"account_id"`
	Name      string      `json:"name"`
	Trigger   TriggerType `json:"trigger_type"`

	// Keywords are matched exactly (case-insensitive) against inbound
	// text. Max 50 per rule, each at most 100 characters.
	Keywords []string `json:"keywords,omitempty"`

	// MediaIDs restricts comment triggers to specific posts/reels.
	// Empty means all media.
	MediaIDs []string `json:"media_ids,omitempty"`

	// FollowMessage asks the visitor to follow the account.
	FollowMessage string `json:"follow_message"`

	// EmailMessage asks the visitor for an email or phone number.
	EmailMessage string `json:"email_message"`

	// EmailRetryMessage is sent when an invalid email arrives.
	EmailRetryMessage string `json:"email_retry_message"`

	// MessageVariations holds the reward DM texts; one is chosen at
	// random per delivery.
	MessageVariations []string `json:"message_variations"`

	// CommentReplies is the public reply pool for AutoReplyToComments.
	CommentReplies []string `json:"comment_replies,omitempty"`

	// DelayMinutes defers the first outbound message after a trigger.
	DelayMinutes int `json:"delay_minutes"`

	Config RuleConfig `json:"config"`

	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the rule has been soft-deleted.
func (r *AutomationRule) Deleted() bool {
	return r.DeletedAt != nil
}

// IsCommentTrigger reports whether the rule fires on comment events.
func (r *AutomationRule) IsCommentTrigger() bool {
	return r.Trigger == TriggerPostComment || r.Trigger == TriggerLiveComment
}
