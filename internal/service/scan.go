package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"mailsweep/internal/model"
)

// ErrNoConnectedAccount is returned from interactive flows when the user has
// no usable mailbox account.
var ErrNoConnectedAccount = errors.New("no connected mailbox account")

// ScanItem is one scanned message with its verdict, as shown to the user for
// review before anything is deleted.
type ScanItem struct {
	model.MessageSummary
	SpamConfidence model.SpamConfidence `json:"spamConfidence"`
	Reasoning      string               `json:"reasoning"`
	KnownSafe      bool                 `json:"knownSafe"`
}

// ScanResult is the response of an interactive scan.
type ScanResult struct {
	Items    []ScanItem `json:"items"`
	Scanned  int        `json:"scanned"`
	Analyzed int        `json:"analyzed"`
}

// Scan runs the sync and classify stages across every connected account and
// returns the verdicts without acting on them. Messages from senders the
// user marked safe are flagged so the UI can warn before deletion.
func (s *CleanupService) Scan(ctx context.Context, userID string) (*ScanResult, error) {
	accounts := s.creds.GetAllValidAccessTokens(ctx, userID)
	if len(accounts) == 0 {
		return nil, ErrNoConnectedAccount
	}

	var messages []model.MessageSummary
	for _, ta := range accounts {
		messages = append(messages, s.scanAccount(ctx, ta.Token, ta.Account.ID)...)
	}

	verdicts, safeSenders, err := s.classifyWithFeedback(ctx, userID, messages)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		Items:    make([]ScanItem, 0, len(messages)),
		Scanned:  len(messages),
		Analyzed: len(verdicts),
	}
	for _, msg := range messages {
		verdict, classified := verdicts[msg.ID]
		if !classified {
			continue
		}
		result.Items = append(result.Items, ScanItem{
			MessageSummary: msg,
			SpamConfidence: verdict.SpamConfidence,
			Reasoning:      verdict.Reasoning,
			KnownSafe:      safeSenders[strings.ToLower(msg.SenderEmail)],
		})
	}
	return result, nil
}

// UnsubscribeRequest is one user-approved message to act on. The message
// fields echo what the scan returned; the service does not re-fetch them.
type UnsubscribeRequest struct {
	ID                 string               `json:"id" binding:"required"`
	AccountID          string               `json:"accountId"`
	Sender             string               `json:"sender"`
	SenderEmail        string               `json:"senderEmail"`
	Subject            string               `json:"subject"`
	HasListUnsubscribe bool                 `json:"hasListUnsubscribe"`
	UnsubscribeLink    string               `json:"unsubscribeLink"`
	SpamConfidence     model.SpamConfidence `json:"spamConfidence"`
	Reasoning          string               `json:"reasoning"`
}

// UnsubscribeReport is the per-message outcome of an interactive unsubscribe.
type UnsubscribeReport struct {
	ID              string `json:"id"`
	Method          string `json:"method"`
	Status          string `json:"status"`
	Deleted         bool   `json:"deleted"`
	UnsubscribeLink string `json:"unsubscribeLink,omitempty"`
}

// Unsubscribe processes user-approved messages sequentially, recording one
// history row each. Web-only unsubscribe links are echoed back for the
// client to open.
func (s *CleanupService) Unsubscribe(ctx context.Context, userID string, requests []UnsubscribeRequest) ([]UnsubscribeReport, error) {
	tokens := make(map[string]string)
	for _, ta := range s.creds.GetAllValidAccessTokens(ctx, userID) {
		tokens[ta.Account.ID] = ta.Token
	}
	if len(tokens) == 0 {
		return nil, ErrNoConnectedAccount
	}

	reports := make([]UnsubscribeReport, 0, len(requests))
	for _, req := range requests {
		token, ok := tokens[req.AccountID]
		if !ok {
			// Fall back to any account; the message id is globally scoped
			// within the provider for the authenticated user.
			for _, t := range tokens {
				token = t
				break
			}
		}

		msg := model.MessageSummary{
			ID:                 req.ID,
			Sender:             req.Sender,
			SenderEmail:        req.SenderEmail,
			Subject:            req.Subject,
			HasListUnsubscribe: req.HasListUnsubscribe,
			UnsubscribeLink:    req.UnsubscribeLink,
		}
		out := s.executor.UnsubscribeAndDelete(ctx, token, msg)

		report := UnsubscribeReport{
			ID:      req.ID,
			Method:  string(out.Method),
			Status:  out.Status,
			Deleted: out.Delete.Success,
		}
		if out.Method == model.MethodWebLink {
			report.UnsubscribeLink = req.UnsubscribeLink
		}
		reports = append(reports, report)

		if _, err := s.history.Insert(ctx, &model.CleanupHistoryEntry{
			UserID:            userID,
			EmailID:           req.ID,
			Sender:            req.SenderEmail,
			Subject:           req.Subject,
			SpamConfidence:    req.SpamConfidence,
			AIReasoning:       req.Reasoning,
			UnsubscribeMethod: out.Method,
			UnsubscribeStatus: out.Status,
			Deleted:           out.Delete.Success,
		}); err != nil {
			s.logger.Error("Failed to record history row",
				zap.String("user_id", userID),
				zap.String("email_id", req.ID),
				zap.Error(err),
			)
		}
	}
	return reports, nil
}
