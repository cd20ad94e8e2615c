package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailsweep/internal/model"
	"mailsweep/internal/vault"
	"mailsweep/pkg/metrics"
)

// refreshMargin is the safety window before expiry within which a token is
// refreshed instead of used.
const refreshMargin = 5 * time.Minute

// TokenAccount pairs a plaintext access token with the account it belongs to.
// The plaintext only ever lives in memory for the duration of a run.
type TokenAccount struct {
	Token   string
	Account model.MailboxAccount
}

// CredentialService resolves usable access tokens for a user's accounts.
// Every failure mode (disconnected, refresh failed, decrypt failed) resolves
// to "account unusable this run" rather than an error the caller must handle.
type CredentialService struct {
	accounts AccountStore
	vault    *vault.Vault
	tokens   TokenExchanger
	logger   *zap.Logger
}

func NewCredentialService(accounts AccountStore, v *vault.Vault, tokens TokenExchanger, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		accounts: accounts,
		vault:    v,
		tokens:   tokens,
		logger:   logger,
	}
}

// GetValidAccessToken returns a usable token for one account: the named one,
// else the user's primary, else any connected account. Returns nil when no
// account is usable.
func (s *CredentialService) GetValidAccessToken(ctx context.Context, userID, accountID string) *TokenAccount {
	var account *model.MailboxAccount
	var err error

	if accountID != "" {
		account, err = s.accounts.FindByID(ctx, userID, accountID)
	} else {
		account, err = s.accounts.FindPrimary(ctx, userID)
		if err != nil || account == nil || !account.IsConnected() {
			account, err = s.accounts.FindAnyConnected(ctx, userID)
		}
	}
	if err != nil || account == nil {
		return nil
	}

	return s.resolve(ctx, account)
}

// GetAllValidAccessTokens resolves every connected account of the user.
// Accounts whose refresh fails are silently omitted.
func (s *CredentialService) GetAllValidAccessTokens(ctx context.Context, userID string) []TokenAccount {
	accounts, err := s.accounts.ListConnected(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to list connected accounts",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}

	var result []TokenAccount
	for i := range accounts {
		if ta := s.resolve(ctx, &accounts[i]); ta != nil {
			result = append(result, *ta)
		}
	}
	return result
}

// resolve turns one stored account into a usable plaintext token, refreshing
// first when the stored token is inside the expiry margin.
func (s *CredentialService) resolve(ctx context.Context, account *model.MailboxAccount) *TokenAccount {
	if !account.IsConnected() {
		return nil
	}

	expiresAt := time.Time{}
	if account.TokenExpiresAt != nil {
		expiresAt = *account.TokenExpiresAt
	}

	if time.Until(expiresAt) < refreshMargin {
		token := s.Refresh(ctx, account)
		if token == "" {
			return nil
		}
		return &TokenAccount{Token: token, Account: *account}
	}

	token, err := s.vault.Decrypt(account.AccessTokenEnc)
	if err != nil {
		// A token we cannot decrypt is the same as no token.
		s.logger.Warn("Failed to decrypt stored access token",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
		return nil
	}
	return &TokenAccount{Token: token, Account: *account}
}

// Refresh exchanges the stored refresh token for a new access token,
// persists the re-encrypted result, and returns the plaintext. Returns ""
// on any failure; refresh failure is never fatal to a run.
func (s *CredentialService) Refresh(ctx context.Context, account *model.MailboxAccount) string {
	if account.RefreshTokenEnc == "" {
		return ""
	}

	refreshToken, err := s.vault.Decrypt(account.RefreshTokenEnc)
	if err != nil {
		s.logger.Warn("Failed to decrypt refresh token",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
		return ""
	}

	grant, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		metrics.IncrementTokenRefresh("failed")
		s.logger.Warn("Token refresh failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
		return ""
	}

	enc, err := s.vault.Encrypt(grant.AccessToken)
	if err != nil {
		metrics.IncrementTokenRefresh("failed")
		return ""
	}

	expiresAt := grant.ExpiresAt(time.Now())
	if err := s.accounts.UpdateAccessToken(ctx, account.ID, enc, expiresAt); err != nil {
		metrics.IncrementTokenRefresh("failed")
		return ""
	}

	metrics.IncrementTokenRefresh("success")
	account.AccessTokenEnc = enc
	account.TokenExpiresAt = &expiresAt
	return grant.AccessToken
}
