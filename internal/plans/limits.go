// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package plans defines subscription tier limits and enforces them against
// recorded usage.
package plans

import (
	"github.com/leadflowhq/leadflow/internal/models"
)

// Unlimited marks a cap that is not enforced.
const Unlimited = -1

// Limits are the caps attached to a plan tier.
type Limits struct {
	// MaxAccounts caps connected Instagram accounts per user.
	MaxAccounts int

	// MaxActiveRules caps concurrently active automation rules per user.
	MaxActiveRules int

	// MaxDMsPerPeriod caps outbound DMs. For the free tier the cap is
	// lifetime; paid tiers reset on a 30-day window.
	MaxDMsPerPeriod int
}

// tierLimits is the pricing table.
var tierLimits = map[models.PlanTier]Limits{
	models.PlanFree:       {MaxAccounts: 1, MaxActiveRules: 2, MaxDMsPerPeriod: 100},
	models.PlanBasic:      {MaxAccounts: 1, MaxActiveRules: 10, MaxDMsPerPeriod: 2000},
	models.PlanPro:        {MaxAccounts: 3, MaxActiveRules: 50, MaxDMsPerPeriod: 20000},
	models.PlanEnterprise: {MaxAccounts: Unlimited, MaxActiveRules: Unlimited, MaxDMsPerPeriod: Unlimited},
}

// ForTier returns the limits for a tier. Unknown tiers fall back to free.
func ForTier(tier models.PlanTier) Limits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[models.PlanFree]
}

// WindowResets reports whether the tier's DM cap resets on a rolling
// 30-day window. The free tier cap is lifetime.
func WindowResets(tier models.PlanTier) bool {
	return tier != models.PlanFree
}
