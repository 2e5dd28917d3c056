// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package automation routes normalized webhook events through the
// conversation flow and delivers the resulting messages.
package automation

import (
	"strings"

	"github.com/leadflowhq/leadflow/internal/models"
)

// Match picks the rule an event should trigger, or nil when nothing
// matches. Rules with keywords win over generic rules for the same
// trigger; among generic rules the oldest active one wins.
func Match(rules []*models.AutomationRule, ev *models.InboundEvent) *models.AutomationRule {
	var generic *models.AutomationRule
	for _, rule := range rules {
		if !rule.IsActive || rule.Deleted() {
			continue
		}
		if !triggerApplies(rule, ev) || !mediaApplies(rule, ev) {
			continue
		}
		if len(rule.Keywords) > 0 {
			if keywordMatches(rule.Keywords, ev.Text) {
				return rule
			}
			continue
		}
		if rule.Trigger == models.TriggerKeyword {
			// A keyword rule without keywords never fires.
			continue
		}
		if generic == nil {
			generic = rule
		}
	}
	return generic
}

func triggerApplies(rule *models.AutomationRule, ev *models.InboundEvent) bool {
	switch rule.Trigger {
	case models.TriggerPostComment:
		return ev.Kind == models.EventComment && !ev.IsLive
	case models.TriggerLiveComment:
		return ev.Kind == models.EventComment && ev.IsLive
	case models.TriggerNewMessage:
		return ev.Kind == models.EventMessage
	case models.TriggerKeyword:
		return ev.Kind == models.EventMessage || ev.Kind == models.EventComment
	case models.TriggerPostback:
		return ev.Kind == models.EventPostback
	case models.TriggerStoryReply:
		return ev.Kind == models.EventStoryReply
	}
	return false
}

// mediaApplies checks the per-post targeting of comment triggers. Rules
// without media IDs apply to all media.
func mediaApplies(rule *models.AutomationRule, ev *models.InboundEvent) bool {
	if len(rule.MediaIDs) == 0 || ev.Kind != models.EventComment {
		return true
	}
	for _, id := range rule.MediaIDs {
		if id == ev.MediaID {
			return true
		}
	}
	return false
}

// keywordMatches reports whether the text equals one of the keywords,
// case-insensitively and ignoring surrounding whitespace.
func keywordMatches(keywords []string, text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}
	for _, kw := range keywords {
		if normalized == strings.ToLower(strings.TrimSpace(kw)) {
			return true
		}
	}
	return false
}
