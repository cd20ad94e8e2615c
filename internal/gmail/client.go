// Package gmail is a thin client for the Gmail REST API surface the cleanup
// engine consumes: list-by-label with pagination, message detail, delete, and
// the OAuth token endpoint.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mailsweep/internal/model"
	"mailsweep/pkg/circuitbreaker"
	"mailsweep/pkg/metrics"
)

const (
	defaultBaseURL  = "https://gmail.googleapis.com/gmail/v1"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"

	// One scan collects at most this many message ids per label.
	maxMessagesPerScan = 500
	// Page size requested from the list endpoint (the API maximum).
	listPageSize = 500
	// Detail fetches run in bounded batches to respect rate limits.
	detailBatchSize = 50

	oauthScope = "https://www.googleapis.com/auth/gmail.modify"
)

// Config holds OAuth credentials and optional endpoint overrides (used by
// tests).
type Config struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	AuthURL      string `yaml:"auth_url"`
}

type Client struct {
	cfg    Config
	http   *http.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		cb:     circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger: logger,
	}
}

// do executes a request under circuit-breaker protection. Only transport
// failures count against the breaker; HTTP error statuses are the caller's
// business.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := c.cb.Execute(func() error {
		var doErr error
		resp, doErr = c.http.Do(req)
		return doErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// AuthCodeURL builds the provider consent URL; state carries the user id
// through the redirect.
func (c *Client) AuthCodeURL(state string) string {
	q := url.Values{
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURL},
		"response_type": {"code"},
		"scope":         {oauthScope},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
		"state":         {state},
	}
	return c.cfg.AuthURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*model.TokenGrant, error) {
	return c.tokenRequest(ctx, url.Values{
		"code":          {code},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURL},
		"grant_type":    {"authorization_code"},
	})
}

// Refresh trades a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	return c.tokenRequest(ctx, url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	})
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*model.TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var te tokenError
		_ = json.Unmarshal(body, &te)
		if te.Error != "" {
			return nil, fmt.Errorf("token endpoint %d: %s (%s)", resp.StatusCode, te.Error, te.ErrorDescription)
		}
		return nil, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var grant model.TokenGrant
	if err := json.Unmarshal(body, &grant); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if grant.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}
	return &grant, nil
}

// Profile returns the email address of the authenticated account.
func (c *Client) Profile(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/users/me/profile", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile request returned %d", resp.StatusCode)
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", err
	}
	return profile.EmailAddress, nil
}

// ListAllMessageIDs pages through one label's message list until exhausted or
// the per-scan cap is hit. A failed page stops pagination early; whatever was
// collected so far is returned. Partial results are acceptable for a scan.
func (c *Client) ListAllMessageIDs(ctx context.Context, accessToken, label string) []string {
	var ids []string
	pageToken := ""

	for {
		q := url.Values{
			"labelIds":   {label},
			"maxResults": {fmt.Sprintf("%d", listPageSize)},
		}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		start := time.Now()
		page, err := c.listPage(ctx, accessToken, q)
		if err != nil {
			metrics.RecordProviderCall("list", "failed", time.Since(start))
			c.logger.Warn("Message list page failed, stopping pagination",
				zap.String("label", label),
				zap.Int("collected", len(ids)),
				zap.Error(err),
			)
			break
		}
		metrics.RecordProviderCall("list", "success", time.Since(start))

		for _, m := range page.Messages {
			ids = append(ids, m.ID)
		}
		pageToken = page.NextPageToken
		if pageToken == "" || len(ids) >= maxMessagesPerScan {
			break
		}
	}

	if len(ids) > maxMessagesPerScan {
		ids = ids[:maxMessagesPerScan]
	}
	return ids
}

func (c *Client) listPage(ctx context.Context, accessToken string, q url.Values) (*listResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/users/me/messages?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list returned %d: %s", resp.StatusCode, readReason(resp.Body))
	}

	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	return &page, nil
}

// FetchDetails fetches message details in batches of bounded concurrency, one
// batch fully awaited before the next. Per-message failures are dropped.
func (c *Client) FetchDetails(ctx context.Context, accessToken string, ids []string, accountID, sourceLabel string) []model.MessageSummary {
	summaries := make([]model.MessageSummary, 0, len(ids))

	for start := 0; start < len(ids); start += detailBatchSize {
		end := start + detailBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		results := make([]*model.MessageSummary, len(batch))
		var wg sync.WaitGroup
		for i, id := range batch {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				msg, err := c.getMessage(ctx, accessToken, id)
				if err != nil {
					c.logger.Debug("Message detail fetch failed",
						zap.String("message_id", id),
						zap.Error(err),
					)
					return
				}
				s := summarize(msg, accountID, sourceLabel)
				results[i] = &s
			}(i, id)
		}
		wg.Wait()

		for _, r := range results {
			if r != nil {
				summaries = append(summaries, *r)
			}
		}
	}

	return summaries
}

func (c *Client) getMessage(ctx context.Context, accessToken, id string) (*messageDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/users/me/messages/"+id+"?format=full", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		metrics.RecordProviderCall("get", "failed", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordProviderCall("get", "failed", time.Since(start))
		return nil, fmt.Errorf("get message returned %d", resp.StatusCode)
	}
	metrics.RecordProviderCall("get", "success", time.Since(start))

	var msg messageDetail
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", id, err)
	}
	return &msg, nil
}

// DeleteMessage permanently deletes a message. A 404 means the message is
// already gone and is reported as a successful outcome.
func (c *Client) DeleteMessage(ctx context.Context, accessToken, id string) model.DeleteResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.cfg.BaseURL+"/users/me/messages/"+id, nil)
	if err != nil {
		return model.DeleteResult{Reason: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		metrics.RecordProviderCall("delete", "failed", time.Since(start))
		return model.DeleteResult{Reason: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordProviderCall("delete", "not_found", time.Since(start))
		return model.DeleteResult{Success: true, NotFound: true}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.RecordProviderCall("delete", "success", time.Since(start))
		return model.DeleteResult{Success: true}
	default:
		metrics.RecordProviderCall("delete", "failed", time.Since(start))
		reason := readReason(resp.Body)
		if reason == "" {
			reason = fmt.Sprintf("delete returned %d", resp.StatusCode)
		}
		c.logger.Warn("Gmail delete failed",
			zap.String("message_id", id),
			zap.Int("status", resp.StatusCode),
			zap.String("reason", reason),
		)
		return model.DeleteResult{Reason: reason}
	}
}

// readReason extracts the provider error message from an error body, so
// callers can distinguish permission problems from transient failures.
func readReason(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
		if ae.Error.Status != "" {
			return ae.Error.Status + ": " + ae.Error.Message
		}
		return ae.Error.Message
	}
	return strings.TrimSpace(string(body))
}
