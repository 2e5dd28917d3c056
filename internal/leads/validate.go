// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package leads extracts and validates contact details from free-form
// conversation text.
package leads

import (
	"regexp"
	"strings"
)

// emailPattern matches a practical subset of RFC 5322 addresses. The goal
// is catching addresses typed into a DM, not full RFC validation.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// phonePattern matches phone-looking sequences with optional separators.
var phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-\s().]{5,}[0-9]`)

// nonDigit strips formatting from phone candidates.
var nonDigit = regexp.MustCompile(`[^0-9]`)

// ExtractEmail returns the first email address found in text, lowercased.
// Disposable-domain filtering is the caller's concern (IsDisposable).
func ExtractEmail(text string) (string, bool) {
	match := emailPattern.FindString(text)
	if match == "" {
		return "", false
	}
	email := strings.ToLower(match)
	if !ValidEmail(email) {
		return "", false
	}
	return email, true
}

// ValidEmail applies structural checks beyond the extraction pattern.
func ValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	local, domain := email[:at], email[at+1:]
	if len(local) > 64 {
		return false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}
	if strings.HasPrefix(domain, "-") || strings.Contains(domain, "..") {
		return false
	}
	return strings.Contains(domain, ".")
}

// ExtractPhone returns the first phone number found in text, normalized to
// digits with an optional leading +. Numbers must have 7 to 15 digits.
func ExtractPhone(text string) (string, bool) {
	match := phonePattern.FindString(text)
	if match == "" {
		return "", false
	}
	plus := strings.HasPrefix(strings.TrimSpace(match), "+")
	digits := nonDigit.ReplaceAllString(match, "")
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}
	if plus {
		return "+" + digits, true
	}
	return digits, true
}
