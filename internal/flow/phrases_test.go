// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFollowConfirmation(t *testing.T) {
	confirmed := []string{
		"done",
		"Done!",
		"DONE",
		"  done  ",
		"followed",
		"Followed you",
		"i follow you",
		"I'm following",
		"already following",
		"ok done",
		"yes",
		"\U0001f44d",
		"✅",
		"hey i just followed you",
	}
	for _, text := range confirmed {
		assert.True(t, IsFollowConfirmation(text), "expected confirmation: %q", text)
	}

	notConfirmed := []string{
		"",
		"what is this",
		"how do i get the link",
		"my email is me@example.com",
		"can you follow me back",
		"i will follow later",
	}
	for _, text := range notConfirmed {
		assert.False(t, IsFollowConfirmation(text), "expected no confirmation: %q", text)
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "done", normalizeText("  DoNe \n"))
	assert.Equal(t, "i follow you", normalizeText("I   Follow\tYou"))
	assert.Equal(t, "", normalizeText("   "))
}
