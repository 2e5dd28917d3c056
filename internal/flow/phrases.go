// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package flow

import (
	"strings"
)

// FollowButtonPayload is the postback payload attached to the "I followed"
// quick-reply button on outbound follow requests.
const FollowButtonPayload = "leadflow_follow_confirmed"

// followPhrases are inbound texts treated as a follow confirmation when
// they match the whole (normalized) message.
var followPhrases = map[string]struct{}{
	"done":               {},
	"ok done":            {},
	"okay done":          {},
	"all done":           {},
	"just did":           {},
	"just followed":      {},
	"followed":           {},
	"followed you":       {},
	"followed u":         {},
	"i followed":         {},
	"i followed you":     {},
	"i follow you":       {},
	"i follow u":         {},
	"im following":       {},
	"i'm following":      {},
	"i am following":     {},
	"im following you":   {},
	"i'm following you":  {},
	"already following":  {},
	"already follow you": {},
	"already followed":   {},
	"following":          {},
	"following you":      {},
	"following now":      {},
	"follow done":        {},
	"yes":                {},
	"yes done":           {},
	"yep":                {},
	"yup":                {},
	"sure":               {},
	"ok":                 {},
	"okay":               {},
	"ready":              {},
	"check":              {},
	"\U0001f44d":         {}, // thumbs up
	"✅":             {}, // check mark
	"\U0001f64c":         {}, // raised hands
}

// followSubstrings match anywhere in the normalized message. Kept short to
// avoid false positives on ordinary conversation.
var followSubstrings = []string{
	"i just followed",
	"just followed you",
	"i am now following",
	"im now following",
	"i'm now following",
}

// normalizeText lowercases and collapses whitespace for phrase matching.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// IsFollowConfirmation reports whether the inbound text reads as the
// visitor confirming they followed the account.
func IsFollowConfirmation(text string) bool {
	norm := normalizeText(text)
	if norm == "" {
		return false
	}
	norm = strings.TrimRight(norm, ".!")
	if _, ok := followPhrases[norm]; ok {
		return true
	}
	for _, sub := range followSubstrings {
		if strings.Contains(norm, sub) {
			return true
		}
	}
	return false
}
