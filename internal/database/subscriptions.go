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

	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/models"
)

// SubscriptionStore persists billing state. Every user has at most one
// row; users without one are on the free tier.
type SubscriptionStore struct {
	db *DB
}

func NewSubscriptionStore(db *DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, user_id, dodo_subscription_id, tier, status, current_period_end, created_at, updated_at`

// GetByUser returns the user's subscription, or ErrNotFound for free
// tier users who never subscribed.
func (s *SubscriptionStore) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	start := time.Now()
	row := s.db.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	sub, err := scanSubscription(row)
	metrics.RecordDBQuery("select", "subscriptions", time.Since(start), err)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return sub, nil
}

// GetByDodoID correlates a provider webhook to a subscription row.
func (s *SubscriptionStore) GetByDodoID(ctx context.Context, dodoID string) (*models.Subscription, error) {
	start := time.Now()
	row := s.db.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE dodo_subscription_id = $1`, dodoID)
	sub, err := scanSubscription(row)
	metrics.RecordDBQuery("select", "subscriptions", time.Since(start), err)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return sub, nil
}

// Upsert writes the current billing state for a user. Provider webhooks
// can arrive out of order, so the row always reflects the latest write.
func (s *SubscriptionStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	start := time.Now()
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, dodo_subscription_id, tier, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			dodo_subscription_id = EXCLUDED.dodo_subscription_id,
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		sub.UserID, sub.DodoID, sub.Tier, sub.Status, sub.CurrentPeriodEnd,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	metrics.RecordDBQuery("upsert", "subscriptions", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: upsert subscription: %w", err)
	}
	return nil
}

// SetStatus updates only the lifecycle status, keyed by the provider ID.
func (s *SubscriptionStore) SetStatus(ctx context.Context, dodoID string, status models.SubscriptionStatus) error {
	start := time.Now()
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE subscriptions SET status = $2, updated_at = now()
		WHERE dodo_subscription_id = $1`, dodoID, status)
	metrics.RecordDBQuery("update", "subscriptions", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: set subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TierForUser resolves the effective plan tier for a user. Missing,
// lapsed, or cancelled subscriptions fall back to free.
func (s *SubscriptionStore) TierForUser(ctx context.Context, userID uuid.UUID) (models.PlanTier, error) {
	sub, err := s.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.PlanFree, nil
		}
		return models.PlanFree, err
	}
	if !sub.Entitled() {
		return models.PlanFree, nil
	}
	return sub.Tier, nil
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	if err := row.Scan(
		&sub.ID, &sub.UserID, &sub.DodoID, &sub.Tier, &sub.Status,
		&sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sub, nil
}
