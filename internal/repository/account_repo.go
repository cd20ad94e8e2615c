package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailsweep/internal/model"
)

type AccountRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAccountRepository(db *pgxpool.Pool, logger *zap.Logger) *AccountRepository {
	return &AccountRepository{db: db, logger: logger}
}

const accountColumns = `id, user_id, email, access_token_enc, refresh_token_enc, token_expires_at, is_primary`

func scanAccount(row interface{ Scan(...any) error }) (*model.MailboxAccount, error) {
	var a model.MailboxAccount
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Email,
		&a.AccessTokenEnc,
		&a.RefreshTokenEnc,
		&a.TokenExpiresAt,
		&a.IsPrimary,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Upsert inserts a connected account or refreshes its tokens when the user
// reconnects the same address. The provider omits the refresh token on
// re-consent, so an empty one never overwrites a stored one.
func (r *AccountRepository) Upsert(ctx context.Context, a *model.MailboxAccount) (string, error) {
	query := `
        INSERT INTO mailbox_accounts (user_id, email, access_token_enc, refresh_token_enc, token_expires_at, is_primary)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, email) DO UPDATE SET
            access_token_enc = EXCLUDED.access_token_enc,
            refresh_token_enc = CASE WHEN EXCLUDED.refresh_token_enc <> ''
                THEN EXCLUDED.refresh_token_enc
                ELSE mailbox_accounts.refresh_token_enc END,
            token_expires_at = EXCLUDED.token_expires_at
        RETURNING id
    `
	var id string
	err := r.db.QueryRow(ctx, query,
		a.UserID,
		a.Email,
		a.AccessTokenEnc,
		a.RefreshTokenEnc,
		a.TokenExpiresAt,
		a.IsPrimary,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to upsert mailbox account",
			zap.String("user_id", a.UserID),
			zap.Error(err),
		)
		return "", err
	}
	return id, nil
}

// FindByID returns one of the user's accounts by id.
func (r *AccountRepository) FindByID(ctx context.Context, userID, accountID string) (*model.MailboxAccount, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM mailbox_accounts
        WHERE user_id = $1 AND id = $2
    `
	return scanAccount(r.db.QueryRow(ctx, query, userID, accountID))
}

// FindPrimary returns the user's primary account.
func (r *AccountRepository) FindPrimary(ctx context.Context, userID string) (*model.MailboxAccount, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM mailbox_accounts
        WHERE user_id = $1 AND is_primary = true
    `
	return scanAccount(r.db.QueryRow(ctx, query, userID))
}

// FindAnyConnected returns any account that still holds an access token.
func (r *AccountRepository) FindAnyConnected(ctx context.Context, userID string) (*model.MailboxAccount, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM mailbox_accounts
        WHERE user_id = $1 AND access_token_enc <> ''
        ORDER BY is_primary DESC
        LIMIT 1
    `
	return scanAccount(r.db.QueryRow(ctx, query, userID))
}

// ListConnected returns every connected account, primary first.
func (r *AccountRepository) ListConnected(ctx context.Context, userID string) ([]model.MailboxAccount, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM mailbox_accounts
        WHERE user_id = $1 AND access_token_enc <> ''
        ORDER BY is_primary DESC, email
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []model.MailboxAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// HasConnected reports whether the user has any connected account.
func (r *AccountRepository) HasConnected(ctx context.Context, userID string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM mailbox_accounts
            WHERE user_id = $1 AND access_token_enc <> ''
        )
    `
	var exists bool
	err := r.db.QueryRow(ctx, query, userID).Scan(&exists)
	return exists, err
}

// UpdateAccessToken persists a refreshed (already encrypted) access token.
func (r *AccountRepository) UpdateAccessToken(ctx context.Context, accountID, accessTokenEnc string, expiresAt time.Time) error {
	query := `
        UPDATE mailbox_accounts
        SET access_token_enc = $1, token_expires_at = $2
        WHERE id = $3
    `
	_, err := r.db.Exec(ctx, query, accessTokenEnc, expiresAt, accountID)
	if err != nil {
		r.logger.Error("Failed to update access token",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
	return err
}

// Delete removes an account on explicit user disconnect.
func (r *AccountRepository) Delete(ctx context.Context, userID, accountID string) error {
	query := `
        DELETE FROM mailbox_accounts
        WHERE user_id = $1 AND id = $2
    `
	_, err := r.db.Exec(ctx, query, userID, accountID)
	return err
}
