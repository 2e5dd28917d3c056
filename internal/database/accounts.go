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
	"github.com/leadflowhq/leadflow/internal/secrets"
)

// AccountStore persists connected Instagram accounts. Access tokens are
// sealed with the secrets box before hitting the table and opened on read.
type AccountStore struct {
	db  *DB
	box *secrets.Box
}

// NewAccountStore creates an account store. box may be nil in development;
// tokens are then stored in the clear and a warning is logged by the
// caller during startup wiring.
func NewAccountStore(db *DB, box *secrets.Box) *AccountStore {
	return &AccountStore{db: db, box: box}
}

const accountColumns = `id, user_id, ig_user_id, page_id, username, access_token_enc, is_active, created_at, updated_at`

// Create inserts a new connected account.
func (s *AccountStore) Create(ctx context.Context, account *models.InstagramAccount) error {
	tokenEnc, err := s.sealToken(account.AccessToken)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.db.pool.QueryRow(ctx, `
		INSERT INTO instagram_accounts (user_id, ig_user_id, page_id, username, access_token_enc, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		account.UserID, account.IGUserID, account.PageID, account.Username, tokenEnc, account.IsActive,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	metrics.RecordDBQuery("insert", "instagram_accounts", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: create account: %w", err)
	}
	return nil
}

// GetByID returns one account with its token decrypted.
func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*models.InstagramAccount, error) {
	start := time.Now()
	row := s.db.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM instagram_accounts WHERE id = $1`, id)
	account, err := s.scanAccount(row)
	metrics.RecordDBQuery("select", "instagram_accounts", time.Since(start), err)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return account, nil
}

// GetByIGUserID resolves the account that owns an Instagram-scoped ID.
// This is the lookup on the webhook hot path.
func (s *AccountStore) GetByIGUserID(ctx context.Context, igUserID string) (*models.InstagramAccount, error) {
	start := time.Now()
	row := s.db.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM instagram_accounts WHERE ig_user_id = $1 AND is_active`, igUserID)
	account, err := s.scanAccount(row)
	metrics.RecordDBQuery("select", "instagram_accounts", time.Since(start), err)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return account, nil
}

// ListByUser returns all accounts connected by a user.
func (s *AccountStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.InstagramAccount, error) {
	start := time.Now()
	rows, err := s.db.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM instagram_accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	metrics.RecordDBQuery("select", "instagram_accounts", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("database: list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.InstagramAccount, 0)
	for rows.Next() {
		account, err := s.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("database: scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: iterate accounts: %w", err)
	}
	return accounts, nil
}

// UpdateToken replaces the stored access token.
func (s *AccountStore) UpdateToken(ctx context.Context, id uuid.UUID, accessToken string) error {
	tokenEnc, err := s.sealToken(accessToken)
	if err != nil {
		return err
	}
	start := time.Now()
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE instagram_accounts SET access_token_enc = $2, updated_at = now() WHERE id = $1`,
		id, tokenEnc)
	metrics.RecordDBQuery("update", "instagram_accounts", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive toggles an account on or off.
func (s *AccountStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	start := time.Now()
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE instagram_accounts SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	metrics.RecordDBQuery("update", "instagram_accounts", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: set account active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account and everything cascading from it.
func (s *AccountStore) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	tag, err := s.db.pool.Exec(ctx, `DELETE FROM instagram_accounts WHERE id = $1`, id)
	metrics.RecordDBQuery("delete", "instagram_accounts", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("database: delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByUser returns the number of accounts a user has connected.
// Used by plan enforcement.
func (s *AccountStore) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.pool.QueryRow(ctx,
		`SELECT count(*) FROM instagram_accounts WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database: count accounts: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *AccountStore) scanAccount(row rowScanner) (*models.InstagramAccount, error) {
	var account models.InstagramAccount
	var tokenEnc string
	if err := row.Scan(
		&account.ID, &account.UserID, &account.IGUserID, &account.PageID, &account.Username,
		&tokenEnc, &account.IsActive, &account.CreatedAt, &account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	token, err := s.openToken(tokenEnc)
	if err != nil {
		return nil, err
	}
	account.AccessToken = token
	return &account, nil
}

func (s *AccountStore) sealToken(token string) (string, error) {
	if token == "" || s.box == nil {
		return token, nil
	}
	sealed, err := s.box.Seal(token)
	if err != nil {
		return "", fmt.Errorf("database: seal access token: %w", err)
	}
	return sealed, nil
}

func (s *AccountStore) openToken(sealed string) (string, error) {
	if sealed == "" || s.box == nil {
		return sealed, nil
	}
	token, err := s.box.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("database: open access token: %w", err)
	}
	return token, nil
}
