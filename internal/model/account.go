package model

import "time"

// MailboxAccount is one connected Gmail account for a user. Tokens are stored
// encrypted; an account without an access token is considered disconnected.
type MailboxAccount struct {
	ID              string
	UserID          string
	Email           string
	AccessTokenEnc  string
	RefreshTokenEnc string
	TokenExpiresAt  *time.Time
	IsPrimary       bool
}

// IsConnected reports whether the account still holds an access token.
func (a *MailboxAccount) IsConnected() bool {
	return a.AccessTokenEnc != ""
}

// TokenGrant is the parsed body of a token-endpoint response.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// ExpiresAt converts the relative expiry to a wall-clock timestamp.
func (t *TokenGrant) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}
