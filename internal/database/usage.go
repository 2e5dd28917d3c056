// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/plans"
)

// UsageStore implements plans.UsageStore on top of the usage_counters
// table plus the account and rule tables.
type UsageStore struct {
	db       *DB
	accounts *AccountStore
	rules    *RuleStore
}

func NewUsageStore(db *DB, accounts *AccountStore, rules *RuleStore) *UsageStore {
	return &UsageStore{db: db, accounts: accounts, rules: rules}
}

var _ plans.UsageStore = (*UsageStore)(nil)

// GetUsage returns the DM counter for a user, zero-valued when the user
// has never sent one.
func (s *UsageStore) GetUsage(ctx context.Context, userID uuid.UUID) (plans.Usage, error) {
	var usage plans.Usage
	start := time.Now()
	err := s.db.pool.QueryRow(ctx,
		`SELECT dms_sent, window_start FROM usage_counters WHERE user_id = $1`, userID,
	).Scan(&usage.DMsSent, &usage.WindowStart)
	metrics.RecordDBQuery("select", "usage_counters", time.Since(start), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return plans.Usage{}, nil
		}
		return plans.Usage{}, fmt.Errorf("database: get usage: %w", err)
	}
	return usage, nil
}

// IncrementDMs adds n to the counter, creating the row on first use.
func (s *UsageStore) IncrementDMs(ctx context.Context, userID uuid.UUID, n int) error {
	start := time.Now()
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO usage_counters (user_id, dms_sent, window_start)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			dms_sent = usage_counters.dms_sent + EXCLUDED.dms_sent`,
		userID, n)
	metrics.RecordDBQuery("upsert", "usage_counters", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: increment dms: %w", err)
	}
	return nil
}

// ResetWindow restarts the window with a zero counter.
func (s *UsageStore) ResetWindow(ctx context.Context, userID uuid.UUID, now time.Time) error {
	start := time.Now()
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO usage_counters (user_id, dms_sent, window_start)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			dms_sent = 0, window_start = EXCLUDED.window_start`,
		userID, now)
	metrics.RecordDBQuery("upsert", "usage_counters", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: reset usage window: %w", err)
	}
	return nil
}

// CountAccounts delegates to the account store.
func (s *UsageStore) CountAccounts(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.accounts.CountByUser(ctx, userID)
}

// CountActiveRules delegates to the rule store.
func (s *UsageStore) CountActiveRules(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.rules.CountActiveByUser(ctx, userID)
}
