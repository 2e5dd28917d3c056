// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package instagram

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Instagram platform limits, enforced client-side before any Graph API
// call so rule misconfiguration fails fast with a clear error.
const (
	// MaxDMLength is the maximum length of a DM text, in characters.
	MaxDMLength = 1000

	// MaxCommentLength is the maximum length of a public comment reply.
	MaxCommentLength = 2200

	// MaxButtonTitleLength is the maximum quick-reply button title length.
	MaxButtonTitleLength = 20

	// MaxKeywordsPerRule caps the keyword list of a rule.
	MaxKeywordsPerRule = 50

	// MaxKeywordLength caps a single keyword.
	MaxKeywordLength = 100
)

// ErrEmptyMessage is returned for empty outbound texts.
var ErrEmptyMessage = errors.New("instagram: message text is empty")

// ValidateDMText checks a DM body against platform limits.
func ValidateDMText(text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(text); n > MaxDMLength {
		return fmt.Errorf("instagram: dm text is %d chars, limit is %d", n, MaxDMLength)
	}
	return nil
}

// ValidateCommentText checks a public comment reply against platform limits.
func ValidateCommentText(text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(text); n > MaxCommentLength {
		return fmt.Errorf("instagram: comment text is %d chars, limit is %d", n, MaxCommentLength)
	}
	return nil
}

// ValidateButtonTitle checks a quick-reply button title.
func ValidateButtonTitle(title string) error {
	if title == "" {
		return ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(title); n > MaxButtonTitleLength {
		return fmt.Errorf("instagram: button title is %d chars, limit is %d", n, MaxButtonTitleLength)
	}
	return nil
}

// ValidateKeywords checks a rule keyword list against platform limits.
func ValidateKeywords(keywords []string) error {
	if len(keywords) > MaxKeywordsPerRule {
		return fmt.Errorf("instagram: %d keywords, limit is %d", len(keywords), MaxKeywordsPerRule)
	}
	for _, kw := range keywords {
		if kw == "" {
			return errors.New("instagram: empty keyword")
		}
		if n := utf8.RuneCountInString(kw); n > MaxKeywordLength {
			return fmt.Errorf("instagram: keyword %q is %d chars, limit is %d", kw, n, MaxKeywordLength)
		}
	}
	return nil
}
