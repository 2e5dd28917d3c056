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

// LeadStore persists captured leads, the audience roster, the DM audit
// log, and raw analytics events.
type LeadStore struct {
	db *DB
}

func NewLeadStore(db *DB) *LeadStore {
	return &LeadStore{db: db}
}

// CreateLead records a captured lead.
func (s *LeadStore) CreateLead(ctx context.Context, lead *models.CapturedLead) error {
	start := time.Now()
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO captured_leads (account_id, rule_id, sender_id, username, email, phone, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		lead.AccountID, lead.RuleID, lead.SenderID, lead.Username, lead.Email, lead.Phone, lead.Source,
	).Scan(&lead.ID, &lead.CreatedAt)
	metrics.RecordDBQuery("insert", "captured_leads", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: create lead: %w", err)
	}
	metrics.LeadsCapturedTotal.Inc()
	return nil
}

// ListLeads returns a page of leads for an account, newest first, plus
// the total row count for pagination.
func (s *LeadStore) ListLeads(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]*models.CapturedLead, int, error) {
	var total int
	if err := s.db.pool.QueryRow(ctx,
		`SELECT count(*) FROM captured_leads WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: count leads: %w", err)
	}

	offset := (page - 1) * pageSize
	start := time.Now()
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, account_id, rule_id, sender_id, username, email, phone, source, created_at
		FROM captured_leads
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, accountID, pageSize, offset)
	metrics.RecordDBQuery("select", "captured_leads", time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("database: list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*models.CapturedLead, 0, pageSize)
	for rows.Next() {
		var lead models.CapturedLead
		if err := rows.Scan(
			&lead.ID, &lead.AccountID, &lead.RuleID, &lead.SenderID,
			&lead.Username, &lead.Email, &lead.Phone, &lead.Source, &lead.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("database: scan lead: %w", err)
		}
		leads = append(leads, &lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: iterate leads: %w", err)
	}
	return leads, total, nil
}

// AllLeads returns every lead for an account, oldest first, for export.
// No limit is applied; the export must never silently truncate.
func (s *LeadStore) AllLeads(ctx context.Context, accountID uuid.UUID) ([]*models.CapturedLead, error) {
	start := time.Now()
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, account_id, rule_id, sender_id, username, email, phone, source, created_at
		FROM captured_leads
		WHERE account_id = $1
		ORDER BY created_at ASC`, accountID)
	metrics.RecordDBQuery("select", "captured_leads", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("database: export leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.CapturedLead
	for rows.Next() {
		var lead models.CapturedLead
		if err := rows.Scan(
			&lead.ID, &lead.AccountID, &lead.RuleID, &lead.SenderID,
			&lead.Username, &lead.Email, &lead.Phone, &lead.Source, &lead.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("database: scan lead: %w", err)
		}
		leads = append(leads, &lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: iterate leads: %w", err)
	}
	return leads, nil
}

// LeadStats aggregates counters for the dashboard.
func (s *LeadStore) LeadStats(ctx context.Context, accountID uuid.UUID) (*models.LeadStats, error) {
	var stats models.LeadStats
	start := time.Now()
	err := s.db.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE email <> ''),
			count(*) FILTER (WHERE phone <> ''),
			count(*) FILTER (WHERE created_at >= now() - interval '30 days'),
			count(*) FILTER (WHERE created_at >= now() - interval '7 days'),
			count(DISTINCT sender_id)
		FROM captured_leads WHERE account_id = $1`,
		accountID,
	).Scan(&stats.TotalLeads, &stats.WithEmail, &stats.WithPhone,
		&stats.Last30Days, &stats.Last7Days, &stats.UniqueUsers)
	metrics.RecordDBQuery("select", "captured_leads", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("database: lead stats: %w", err)
	}
	return &stats, nil
}

// UpsertAudienceMember records contact with a sender. Existing rows keep
// their first_seen_at and only overwrite fields the update actually
// carries, so a later event without an email does not erase one we have.
func (s *LeadStore) UpsertAudienceMember(ctx context.Context, m *models.AudienceMember) error {
	start := time.Now()
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO audience_members (account_id, sender_id, username, is_following, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, sender_id) DO UPDATE SET
			username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE audience_members.username END,
			is_following = audience_members.is_following OR EXCLUDED.is_following,
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE audience_members.email END,
			phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE audience_members.phone END,
			last_seen_at = now()
		RETURNING id, is_following, email, phone, first_seen_at, last_seen_at`,
		m.AccountID, m.SenderID, m.Username, m.IsFollowing, m.Email, m.Phone,
	).Scan(&m.ID, &m.IsFollowing, &m.Email, &m.Phone, &m.FirstSeenAt, &m.LastSeenAt)
	metrics.RecordDBQuery("upsert", "audience_members", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: upsert audience member: %w", err)
	}
	return nil
}

// GetAudienceMember returns the roster entry for a sender, or ErrNotFound
// on first contact.
func (s *LeadStore) GetAudienceMember(ctx context.Context, accountID uuid.UUID, senderID string) (*models.AudienceMember, error) {
	var m models.AudienceMember
	start := time.Now()
	err := s.db.pool.QueryRow(ctx, `
		SELECT id, account_id, sender_id, username, is_following, email, phone, first_seen_at, last_seen_at
		FROM audience_members
		WHERE account_id = $1 AND sender_id = $2`, accountID, senderID,
	).Scan(&m.ID, &m.AccountID, &m.SenderID, &m.Username, &m.IsFollowing,
		&m.Email, &m.Phone, &m.FirstSeenAt, &m.LastSeenAt)
	metrics.RecordDBQuery("select", "audience_members", time.Since(start), err)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

// ListAudience returns a page of the roster, most recently seen first.
func (s *LeadStore) ListAudience(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]*models.AudienceMember, int, error) {
	var total int
	if err := s.db.pool.QueryRow(ctx,
		`SELECT count(*) FROM audience_members WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: count audience: %w", err)
	}

	offset := (page - 1) * pageSize
	start := time.Now()
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, account_id, sender_id, username, is_following, email, phone, first_seen_at, last_seen_at
		FROM audience_members
		WHERE account_id = $1
		ORDER BY last_seen_at DESC
		LIMIT $2 OFFSET $3`, accountID, pageSize, offset)
	metrics.RecordDBQuery("select", "audience_members", time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("database: list audience: %w", err)
	}
	defer rows.Close()

	members := make([]*models.AudienceMember, 0, pageSize)
	for rows.Next() {
		var m models.AudienceMember
		if err := rows.Scan(
			&m.ID, &m.AccountID, &m.SenderID, &m.Username, &m.IsFollowing,
			&m.Email, &m.Phone, &m.FirstSeenAt, &m.LastSeenAt,
		); err != nil {
			return nil, 0, fmt.Errorf("database: scan audience member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: iterate audience: %w", err)
	}
	return members, total, nil
}

// LogDM appends to the DM audit log.
func (s *LeadStore) LogDM(ctx context.Context, log *models.DMLog) error {
	start := time.Now()
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO dm_logs (account_id, rule_id, recipient_id, kind, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sent_at`,
		log.AccountID, log.RuleID, log.RecipientID, log.Kind, log.Text,
	).Scan(&log.ID, &log.SentAt)
	metrics.RecordDBQuery("insert", "dm_logs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: log dm: %w", err)
	}
	return nil
}

// RecordEvent appends a raw analytics event.
func (s *LeadStore) RecordEvent(ctx context.Context, ev *models.AnalyticsEvent) error {
	start := time.Now()
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO analytics_events (account_id, rule_id, sender_id, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		ev.AccountID, ev.RuleID, ev.SenderID, ev.Kind,
	).Scan(&ev.ID, &ev.CreatedAt)
	metrics.RecordDBQuery("insert", "analytics_events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: record analytics event: %w", err)
	}
	return nil
}

// EventCounts returns per-kind event totals for an account since a
// point in time.
func (s *LeadStore) EventCounts(ctx context.Context, accountID uuid.UUID, since time.Time) (map[string]int, error) {
	start := time.Now()
	rows, err := s.db.pool.Query(ctx, `
		SELECT kind, count(*) FROM analytics_events
		WHERE account_id = $1 AND created_at >= $2
		GROUP BY kind`, accountID, since)
	metrics.RecordDBQuery("select", "analytics_events", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("database: event counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("database: scan event count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: iterate event counts: %w", err)
	}
	return counts, nil
}
