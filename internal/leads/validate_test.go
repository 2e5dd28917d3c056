// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"bare address", "me@example.com", "me@example.com", true},
		{"embedded in sentence", "sure! my email is Jane.Doe@Example.COM thanks", "jane.doe@example.com", true},
		{"plus addressing", "team+promo@sub.example.co.uk", "team+promo@sub.example.co.uk", true},
		{"no address", "no thanks", "", false},
		{"missing tld", "me@localhost", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractEmail(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("a@b.co"))
	assert.False(t, ValidEmail("a..b@example.com"))
	assert.False(t, ValidEmail(".a@example.com"))
	assert.False(t, ValidEmail("a.@example.com"))
	assert.False(t, ValidEmail("a@-example.com"))
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"international", "+1 (415) 555-0134", "+14155550134", true},
		{"plain digits", "call me on 4155550134", "4155550134", true},
		{"dashed", "415-555-0134", "4155550134", true},
		{"too short", "12345", "", false},
		{"too long", "12345678901234567890", "", false},
		{"no number", "no thanks", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPhone(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsDisposable(t *testing.T) {
	assert.True(t, IsDisposable("x@mailinator.com"))
	assert.True(t, IsDisposable("x@mail.mailinator.com"))
	assert.True(t, IsDisposable("x@YOPMAIL.com"))
	assert.False(t, IsDisposable("x@example.com"))
	assert.False(t, IsDisposable("not-an-email"))
}
