// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package plans

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/models"
)

// dmWindow is the usage window for paid tiers.
const dmWindow = 30 * 24 * time.Hour

// LimitError is returned when an operation would exceed a plan cap.
type LimitError struct {
	Limit   string // accounts, rules, dms
	Current int
	Max     int
	Tier    models.PlanTier
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("plan limit exceeded: %s (%d/%d on %s tier)", e.Limit, e.Current, e.Max, e.Tier)
}

// Usage is the per-user DM usage counter. WindowStart anchors the rolling
// window for paid tiers; the free tier ignores it (lifetime count).
type Usage struct {
	DMsSent     int
	WindowStart time.Time
}

// UsageStore provides the counts the enforcer needs. Implemented by the
// database layer.
type UsageStore interface {
	// GetUsage returns the DM usage for a user, zero-valued if none.
	GetUsage(ctx context.Context, userID uuid.UUID) (Usage, error)

	// IncrementDMs adds n to the user's DM counter, initializing the
	// window on first use.
	IncrementDMs(ctx context.Context, userID uuid.UUID, n int) error

	// ResetWindow restarts the user's usage window at now with a zero
	// counter.
	ResetWindow(ctx context.Context, userID uuid.UUID, now time.Time) error

	// CountAccounts returns the user's connected account count.
	CountAccounts(ctx context.Context, userID uuid.UUID) (int, error)

	// CountActiveRules returns the user's active (non-deleted) rule count.
	CountActiveRules(ctx context.Context, userID uuid.UUID) (int, error)
}

// Enforcer checks operations against plan limits.
type Enforcer struct {
	store UsageStore
}

// NewEnforcer creates a plan limit enforcer.
func NewEnforcer(store UsageStore) *Enforcer {
	return &Enforcer{store: store}
}

// CheckAccountConnect returns a LimitError when connecting one more
// account would exceed the tier cap.
func (e *Enforcer) CheckAccountConnect(ctx context.Context, userID uuid.UUID, tier models.PlanTier) error {
	limits := ForTier(tier)
	if limits.MaxAccounts == Unlimited {
		return nil
	}
	count, err := e.store.CountAccounts(ctx, userID)
	if err != nil {
		return fmt.Errorf("plans: count accounts: %w", err)
	}
	if count >= limits.MaxAccounts {
		metrics.PlanLimitDenials.WithLabelValues("accounts").Inc()
		return &LimitError{Limit: "accounts", Current: count, Max: limits.MaxAccounts, Tier: tier}
	}
	return nil
}

// CheckRuleActivate returns a LimitError when activating one more rule
// would exceed the tier cap.
func (e *Enforcer) CheckRuleActivate(ctx context.Context, userID uuid.UUID, tier models.PlanTier) error {
	limits := ForTier(tier)
	if limits.MaxActiveRules == Unlimited {
		return nil
	}
	count, err := e.store.CountActiveRules(ctx, userID)
	if err != nil {
		return fmt.Errorf("plans: count rules: %w", err)
	}
	if count >= limits.MaxActiveRules {
		metrics.PlanLimitDenials.WithLabelValues("rules").Inc()
		return &LimitError{Limit: "rules", Current: count, Max: limits.MaxActiveRules, Tier: tier}
	}
	return nil
}

// CheckDMSend returns a LimitError when sending one more DM would exceed
// the tier cap. Paid tiers roll their window forward lazily: an expired
// window is reset here before the check.
func (e *Enforcer) CheckDMSend(ctx context.Context, userID uuid.UUID, tier models.PlanTier) error {
	limits := ForTier(tier)
	if limits.MaxDMsPerPeriod == Unlimited {
		return nil
	}

	usage, err := e.store.GetUsage(ctx, userID)
	if err != nil {
		return fmt.Errorf("plans: get usage: %w", err)
	}

	if WindowResets(tier) && !usage.WindowStart.IsZero() && time.Since(usage.WindowStart) >= dmWindow {
		if err := e.store.ResetWindow(ctx, userID, time.Now().UTC()); err != nil {
			return fmt.Errorf("plans: reset window: %w", err)
		}
		usage.DMsSent = 0
	}

	if usage.DMsSent >= limits.MaxDMsPerPeriod {
		metrics.PlanLimitDenials.WithLabelValues("dms").Inc()
		return &LimitError{Limit: "dms", Current: usage.DMsSent, Max: limits.MaxDMsPerPeriod, Tier: tier}
	}
	return nil
}

// UsageSnapshot is the current consumption against a user's plan caps.
type UsageSnapshot struct {
	Accounts    int       `json:"accounts"`
	ActiveRules int       `json:"active_rules"`
	DMsSent     int       `json:"dms_sent"`
	WindowStart time.Time `json:"window_start,omitzero"`
}

// Snapshot collects the user's current usage counters.
func (e *Enforcer) Snapshot(ctx context.Context, userID uuid.UUID) (UsageSnapshot, error) {
	accounts, err := e.store.CountAccounts(ctx, userID)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("plans: count accounts: %w", err)
	}
	rules, err := e.store.CountActiveRules(ctx, userID)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("plans: count rules: %w", err)
	}
	usage, err := e.store.GetUsage(ctx, userID)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("plans: get usage: %w", err)
	}
	return UsageSnapshot{
		Accounts:    accounts,
		ActiveRules: rules,
		DMsSent:     usage.DMsSent,
		WindowStart: usage.WindowStart,
	}, nil
}

// RecordDM counts one sent DM against the user's quota.
func (e *Enforcer) RecordDM(ctx context.Context, userID uuid.UUID) error {
	if err := e.store.IncrementDMs(ctx, userID, 1); err != nil {
		return fmt.Errorf("plans: increment dms: %w", err)
	}
	return nil
}
