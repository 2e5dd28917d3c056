// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/models"
)

// RuleStore persists automation rules. Deletes are soft so captured
// leads keep a resolvable rule reference until the row is purged.
type RuleStore struct {
	db *DB
}

func NewRuleStore(db *DB) *RuleStore {
	return &RuleStore{db: db}
}

const ruleColumns = `id, account_id, name, trigger_type, keywords, media_ids,
	follow_message, email_message, email_retry_message, message_variations,
	comment_replies, delay_minutes, config, is_active, created_at, updated_at, deleted_at`

// Create inserts a rule.
func (s *RuleStore) Create(ctx context.Context, rule *models.AutomationRule) error {
	start := time.Now()
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO automation_rules (
			account_id, name, trigger_type, keywords, media_ids,
			follow_message, email_message, email_retry_message,
			message_variations, comment_replies, delay_minutes, config, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		rule.AccountID, rule.Name, rule.Trigger, rule.Keywords, rule.MediaIDs,
		rule.FollowMessage, rule.EmailMessage, rule.EmailRetryMessage,
		rule.MessageVariations, rule.CommentReplies, rule.DelayMinutes, rule.Config, rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	metrics.RecordDBQuery("insert", "automation_rules", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: create rule: %w", err)
	}
	return nil
}

// GetByID returns a rule, including soft-deleted ones. Callers that must
// not see deleted rules check rule.Deleted().
func (s *RuleStore) GetByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	start := time.Now()
	row := s.db.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM automation_rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	metrics.RecordDBQuery("select", "automation_rules", time.Since(start), err)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return rule, nil
}

// ListByAccount returns all live rules for an account, newest first.
func (s *RuleStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.AutomationRule, error) {
	return s.list(ctx, `
		SELECT `+ruleColumns+` FROM automation_rules
		WHERE account_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`, accountID)
}

// ListActiveByAccount returns rules the engine should evaluate for
// inbound events on the account.
func (s *RuleStore) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.AutomationRule, error) {
	return s.list(ctx, `
		SELECT `+ruleColumns+` FROM automation_rules
		WHERE account_id = $1 AND is_active AND deleted_at IS NULL
		ORDER BY created_at`, accountID)
}

func (s *RuleStore) list(ctx context.Context, query string, args ...any) ([]*models.AutomationRule, error) {
	start := time.Now()
	rows, err := s.db.pool.Query(ctx, query, args...)
	metrics.RecordDBQuery("select", "automation_rules", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("database: list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*models.AutomationRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("database: scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: iterate rules: %w", err)
	}
	return rules, nil
}

// Update rewrites every editable field of a live rule.
func (s *RuleStore) Update(ctx context.Context, rule *models.AutomationRule) error {
	start := time.Now()
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE automation_rules SET
			name = $2, trigger_type = $3, keywords = $4, media_ids = $5,
			follow_message = $6, email_message = $7, email_retry_message = $8,
			message_variations = $9, comment_replies = $10, delay_minutes = $11,
			config = $12, is_active = $13, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`,
		rule.ID, rule.Name, rule.Trigger, rule.Keywords, rule.MediaIDs,
		rule.FollowMessage, rule.EmailMessage, rule.EmailRetryMessage,
		rule.MessageVariations, rule.CommentReplies, rule.DelayMinutes,
		rule.Config, rule.IsActive)
	metrics.RecordDBQuery("update", "automation_rules", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive toggles a rule without touching its content.
func (s *RuleStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	start := time.Now()
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE automation_rules SET is_active = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, active)
	metrics.RecordDBQuery("update", "automation_rules", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: set rule active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a rule deleted and deactivates it. The row stays so
// lead attribution keeps working until the reference is cleared.
func (s *RuleStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE automation_rules SET deleted_at = now(), is_active = FALSE, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	metrics.RecordDBQuery("update", "automation_rules", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: soft delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveByUser counts active rules across every account the user
// owns. Used by plan enforcement.
func (s *RuleStore) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.pool.QueryRow(ctx, `
		SELECT count(*) FROM automation_rules r
		JOIN instagram_accounts a ON a.id = r.account_id
		WHERE a.user_id = $1 AND r.is_active AND r.deleted_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database: count active rules: %w", err)
	}
	return count, nil
}

func scanRule(row rowScanner) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	if err := row.Scan(
		&rule.ID, &rule.AccountID, &rule.Name, &rule.Trigger, &rule.Keywords, &rule.MediaIDs,
		&rule.FollowMessage, &rule.EmailMessage, &rule.EmailRetryMessage, &rule.MessageVariations,
		&rule.CommentReplies, &rule.DelayMinutes, &rule.Config, &rule.IsActive,
		&rule.CreatedAt, &rule.UpdatedAt, &rule.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &rule, nil
}
