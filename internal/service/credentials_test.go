package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"mailsweep/internal/model"
)

type countingExchanger struct {
	fakeExchanger
	calls int
}

func (c *countingExchanger) Refresh(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	c.calls++
	return c.fakeExchanger.Refresh(ctx, refreshToken)
}

func TestGetValidAccessTokenFreshTokenNotRefreshed(t *testing.T) {
	v := testVault(t)
	accounts := &fakeAccounts{accounts: []model.MailboxAccount{connectedAccount(t, v, "acct-1")}}
	exchanger := &countingExchanger{fakeExchanger: fakeExchanger{err: errors.New("should not be called")}}
	creds := NewCredentialService(accounts, v, exchanger, zap.NewNop())

	ta := creds.GetValidAccessToken(context.Background(), testUser, "acct-1")
	if ta == nil {
		t.Fatal("expected a token")
	}
	if ta.Token != "token-acct-1" {
		t.Errorf("token = %q", ta.Token)
	}
	if exchanger.calls != 0 {
		t.Errorf("refresh calls = %d, want 0 for a fresh token", exchanger.calls)
	}
}

func TestGetValidAccessTokenRefreshesNearExpiry(t *testing.T) {
	v := testVault(t)
	account := connectedAccount(t, v, "acct-1")
	soon := time.Now().Add(2 * time.Minute) // inside the 5 minute margin
	account.TokenExpiresAt = &soon
	accounts := &fakeAccounts{accounts: []model.MailboxAccount{account}}

	exchanger := &countingExchanger{fakeExchanger: fakeExchanger{grant: &model.TokenGrant{
		AccessToken: "fresh-token",
		ExpiresIn:   3600,
	}}}
	creds := NewCredentialService(accounts, v, exchanger, zap.NewNop())

	ta := creds.GetValidAccessToken(context.Background(), testUser, "acct-1")
	if ta == nil {
		t.Fatal("expected a token")
	}
	if ta.Token != "fresh-token" {
		t.Errorf("token = %q, want the refreshed one", ta.Token)
	}
	if exchanger.calls != 1 {
		t.Errorf("refresh calls = %d", exchanger.calls)
	}

	// The stored account must now carry the re-encrypted fresh token.
	stored := accounts.accounts[0]
	dec, err := v.Decrypt(stored.AccessTokenEnc)
	if err != nil || dec != "fresh-token" {
		t.Errorf("stored token = %q, %v", dec, err)
	}
	if stored.TokenExpiresAt == nil || time.Until(*stored.TokenExpiresAt) < 50*time.Minute {
		t.Errorf("expiry not advanced: %v", stored.TokenExpiresAt)
	}
}

func TestGetValidAccessTokenRefreshFailure(t *testing.T) {
	v := testVault(t)
	account := connectedAccount(t, v, "acct-1")
	account.TokenExpiresAt = nil // treated as expired
	accounts := &fakeAccounts{accounts: []model.MailboxAccount{account}}

	exchanger := &countingExchanger{fakeExchanger: fakeExchanger{err: errors.New("invalid_grant")}}
	creds := NewCredentialService(accounts, v, exchanger, zap.NewNop())

	if ta := creds.GetValidAccessToken(context.Background(), testUser, "acct-1"); ta != nil {
		t.Errorf("expected nil for a failed refresh, got %+v", ta)
	}
}

func TestGetValidAccessTokenFallsBackToPrimary(t *testing.T) {
	v := testVault(t)
	primary := connectedAccount(t, v, "primary")
	primary.IsPrimary = true
	other := connectedAccount(t, v, "other")
	accounts := &fakeAccounts{accounts: []model.MailboxAccount{other, primary}}
	creds := NewCredentialService(accounts, v, &fakeExchanger{}, zap.NewNop())

	ta := creds.GetValidAccessToken(context.Background(), testUser, "")
	if ta == nil || ta.Account.ID != "primary" {
		t.Errorf("expected the primary account, got %+v", ta)
	}
}

func TestGetValidAccessTokenFallsBackToAnyConnected(t *testing.T) {
	v := testVault(t)
	disconnectedPrimary := model.MailboxAccount{
		ID:        "primary",
		UserID:    testUser,
		Email:     "primary@example.com",
		IsPrimary: true,
	}
	connected := connectedAccount(t, v, "other")
	accounts := &fakeAccounts{accounts: []model.MailboxAccount{disconnectedPrimary, connected}}
	creds := NewCredentialService(accounts, v, &fakeExchanger{}, zap.NewNop())

	ta := creds.GetValidAccessToken(context.Background(), testUser, "")
	if ta == nil || ta.Account.ID != "other" {
		t.Errorf("expected fallback to any connected account, got %+v", ta)
	}
}

func TestGetAllValidAccessTokensOmitsFailures(t *testing.T) {
	v := testVault(t)
	good := connectedAccount(t, v, "good")
	bad := connectedAccount(t, v, "bad")
	bad.AccessTokenEnc = "not-a-ciphertext"
	bad.RefreshTokenEnc = ""
	future := time.Now().Add(time.Hour)
	bad.TokenExpiresAt = &future
	accounts := &fakeAccounts{accounts: []model.MailboxAccount{good, bad}}
	creds := NewCredentialService(accounts, v, &fakeExchanger{}, zap.NewNop())

	tokens := creds.GetAllValidAccessTokens(context.Background(), testUser)
	if len(tokens) != 1 || tokens[0].Account.ID != "good" {
		t.Errorf("tokens = %+v, want only the decryptable account", tokens)
	}
}
