// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package models

import (
	"time"

	"github.com/google/uuid"
)

// InstagramAccount is a connected Instagram business account owned by a
// dashboard user. The page access token is stored encrypted at rest; the
// decrypted token is only materialized in memory for Graph API calls and
// never serialized to JSON.
type InstagramAccount struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	IGUserID    string    `json:"ig_user_id"` // Instagram-scoped account ID
	PageID      string    `json:"page_id"`    // linked Facebook page ID
	Username    string    `json:"username"`
	AccessToken string    `json:"-"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Connected reports whether the account has a usable access token.
func (a *InstagramAccount) Connected() bool {
	return a.AccessToken != ""
}
