// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package instagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDMText(t *testing.T) {
	assert.NoError(t, ValidateDMText("hello"))
	assert.NoError(t, ValidateDMText(strings.Repeat("a", MaxDMLength)))
	assert.ErrorIs(t, ValidateDMText(""), ErrEmptyMessage)
	assert.Error(t, ValidateDMText(strings.Repeat("a", MaxDMLength+1)))

	// Limits count runes, not bytes.
	assert.NoError(t, ValidateDMText(strings.Repeat("é", MaxDMLength)))
}

func TestValidateCommentText(t *testing.T) {
	assert.NoError(t, ValidateCommentText(strings.Repeat("a", MaxCommentLength)))
	assert.Error(t, ValidateCommentText(strings.Repeat("a", MaxCommentLength+1)))
	assert.ErrorIs(t, ValidateCommentText(""), ErrEmptyMessage)
}

func TestValidateButtonTitle(t *testing.T) {
	assert.NoError(t, ValidateButtonTitle("I followed!"))
	assert.Error(t, ValidateButtonTitle(strings.Repeat("a", MaxButtonTitleLength+1)))
	assert.ErrorIs(t, ValidateButtonTitle(""), ErrEmptyMessage)
}

func TestValidateKeywords(t *testing.T) {
	assert.NoError(t, ValidateKeywords([]string{"promo", "link"}))
	assert.NoError(t, ValidateKeywords(nil))

	tooMany := make([]string, MaxKeywordsPerRule+1)
	for i := range tooMany {
		tooMany[i] = "kw"
	}
	assert.Error(t, ValidateKeywords(tooMany))

	assert.Error(t, ValidateKeywords([]string{""}))
	assert.Error(t, ValidateKeywords([]string{strings.Repeat("a", MaxKeywordLength+1)}))
}
