package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailsweep/internal/classifier"
	"mailsweep/internal/model"
	"mailsweep/pkg/metrics"
)

// feedbackReasoning is the fixed reasoning attached to messages pre-labeled
// from stored sender feedback.
const feedbackReasoning = "previously marked as spam by you"

const topSenderLimit = 5

// CleanupService runs the sync -> classify -> execute -> ledger pipeline,
// both for scheduled runs and for interactive scans.
type CleanupService struct {
	creds      *CredentialService
	provider   MailProvider
	classifier SpamClassifier
	feedback   FeedbackStore
	history    HistoryStore
	runs       RunStore
	executor   *Executor
	logger     *zap.Logger
}

func NewCleanupService(
	creds *CredentialService,
	provider MailProvider,
	spam SpamClassifier,
	feedback FeedbackStore,
	history HistoryStore,
	runs RunStore,
	executor *Executor,
	logger *zap.Logger,
) *CleanupService {
	return &CleanupService{
		creds:      creds,
		provider:   provider,
		classifier: spam,
		feedback:   feedback,
		history:    history,
		runs:       runs,
		executor:   executor,
		logger:     logger,
	}
}

// RunStats is the per-user result reported back from one scheduled run.
type RunStats struct {
	UserID       string `json:"user_id"`
	Scanned      int    `json:"scanned"`
	Analyzed     int    `json:"analyzed"`
	Deleted      int    `json:"deleted"`
	Unsubscribed int    `json:"unsubscribed"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// scanAccount collects message summaries from the spam and trash labels of
// one account, deduplicated by message id (a message can carry both labels).
func (s *CleanupService) scanAccount(ctx context.Context, token, accountID string) []model.MessageSummary {
	spamIDs := s.provider.ListAllMessageIDs(ctx, token, model.LabelSpam)
	trashIDs := s.provider.ListAllMessageIDs(ctx, token, model.LabelTrash)

	seen := make(map[string]struct{}, len(spamIDs))
	for _, id := range spamIDs {
		seen[id] = struct{}{}
	}
	uniqueTrash := make([]string, 0, len(trashIDs))
	for _, id := range trashIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		uniqueTrash = append(uniqueTrash, id)
	}

	summaries := s.provider.FetchDetails(ctx, token, spamIDs, accountID, model.LabelSpam)
	summaries = append(summaries, s.provider.FetchDetails(ctx, token, uniqueTrash, accountID, model.LabelTrash)...)

	s.logger.Info("Mailbox scan collected messages",
		zap.String("account_id", accountID),
		zap.Int("spam_ids", len(spamIDs)),
		zap.Int("trash_ids", len(trashIDs)),
		zap.Int("unique", len(seen)),
		zap.Int("fetched", len(summaries)),
	)
	return summaries
}

// classifyWithFeedback labels messages, letting stored sender feedback
// short-circuit the AI call. Returns verdicts keyed by message id plus the
// set of senders the user has marked as not spam. A rate or quota error
// from the classifier leaves later messages unclassified but keeps every
// verdict already obtained.
func (s *CleanupService) classifyWithFeedback(ctx context.Context, userID string, messages []model.MessageSummary) (map[string]model.ClassificationResult, map[string]bool, error) {
	feedback, err := s.feedback.GetMap(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load sender feedback: %w", err)
	}

	verdicts := make(map[string]model.ClassificationResult, len(messages))
	safeSenders := make(map[string]bool)
	var toClassify []model.MessageSummary

	for _, msg := range messages {
		sender := strings.ToLower(msg.SenderEmail)
		markedAsSpam, known := feedback[sender]
		if known && markedAsSpam {
			verdicts[msg.ID] = model.ClassificationResult{
				ID:             msg.ID,
				SpamConfidence: model.DefinitelySpam,
				Reasoning:      feedbackReasoning,
			}
			continue
		}
		if known && !markedAsSpam {
			safeSenders[sender] = true
		}
		toClassify = append(toClassify, msg)
	}

	results, err := s.classifier.Classify(ctx, toClassify)
	for _, r := range results {
		verdicts[r.ID] = r
	}
	if err != nil {
		if errors.Is(err, classifier.ErrRateLimited) || errors.Is(err, classifier.ErrQuotaExhausted) {
			s.logger.Warn("Classifier stopped early, continuing with partial verdicts",
				zap.Int("classified", len(verdicts)),
				zap.Int("total", len(messages)),
				zap.Error(err),
			)
			return verdicts, safeSenders, nil
		}
		return nil, nil, err
	}

	return verdicts, safeSenders, nil
}

// RunForUser executes one scheduled cleanup for one user across every
// connected account. It always writes a run summary, even when nothing was
// found, and never lets one account's failure abort the others.
func (s *CleanupService) RunForUser(ctx context.Context, schedule model.ScheduleConfig) (RunStats, error) {
	stats := RunStats{UserID: schedule.UserID, Success: true}

	accounts := s.creds.GetAllValidAccessTokens(ctx, schedule.UserID)
	if len(accounts) == 0 {
		s.logger.Info("No usable mailbox account, recording empty run",
			zap.String("user_id", schedule.UserID),
		)
		return stats, s.writeSummary(ctx, schedule.UserID, &stats, nil)
	}

	alreadyDeleted, err := s.history.DeletedEmailIDs(ctx, schedule.UserID)
	if err != nil {
		return stats, fmt.Errorf("failed to load processed history: %w", err)
	}

	var messages []model.MessageSummary
	tokenByAccount := make(map[string]string, len(accounts))
	for _, ta := range accounts {
		tokenByAccount[ta.Account.ID] = ta.Token
		for _, msg := range s.scanAccount(ctx, ta.Token, ta.Account.ID) {
			stats.Scanned++
			if _, done := alreadyDeleted[msg.ID]; done {
				continue
			}
			messages = append(messages, msg)
		}
	}

	verdicts, safeSenders, err := s.classifyWithFeedback(ctx, schedule.UserID, messages)
	if err != nil {
		return stats, err
	}
	stats.Analyzed = len(verdicts)

	senderDeletes := make(map[string]int)
	for _, msg := range messages {
		verdict, classified := verdicts[msg.ID]
		if !classified || verdict.SpamConfidence != model.DefinitelySpam {
			continue
		}
		if !schedule.AutoApprove {
			continue
		}
		if safeSenders[strings.ToLower(msg.SenderEmail)] {
			metrics.IncrementMessageProcessed("skipped")
			continue
		}

		res := s.executor.Delete(ctx, tokenByAccount[msg.AccountID], msg.ID)

		// The header action is counted as attempted whether or not the
		// delete succeeds; the two are independent.
		if msg.HasListUnsubscribe {
			stats.Unsubscribed++
		}

		status := model.StatusFailed
		if res.Success {
			status = model.StatusSuccess
			stats.Deleted++
			sender := strings.ToLower(msg.SenderEmail)
			if sender != "" {
				senderDeletes[sender]++
			}
			if res.NotFound {
				metrics.IncrementMessageProcessed("already_gone")
			} else {
				metrics.IncrementMessageProcessed("deleted")
			}
		} else {
			metrics.IncrementMessageProcessed("failed")
		}

		if _, err := s.history.Insert(ctx, &model.CleanupHistoryEntry{
			UserID:            schedule.UserID,
			EmailID:           msg.ID,
			Sender:            msg.SenderEmail,
			Subject:           msg.Subject,
			SpamConfidence:    verdict.SpamConfidence,
			AIReasoning:       verdict.Reasoning,
			UnsubscribeMethod: model.MethodScheduledAuto,
			UnsubscribeStatus: status,
			Deleted:           res.Success,
		}); err != nil {
			s.logger.Error("Failed to record history row",
				zap.String("user_id", schedule.UserID),
				zap.String("email_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return stats, s.writeSummary(ctx, schedule.UserID, &stats, senderDeletes)
}

func (s *CleanupService) writeSummary(ctx context.Context, userID string, stats *RunStats, senderDeletes map[string]int) error {
	_, err := s.runs.Insert(ctx, &model.CleanupRunSummary{
		UserID:             userID,
		RunAt:              time.Now(),
		EmailsScanned:      stats.Scanned,
		EmailsDeleted:      stats.Deleted,
		EmailsUnsubscribed: stats.Unsubscribed,
		TopSenders:         topSenders(senderDeletes, topSenderLimit),
	})
	if err != nil {
		return fmt.Errorf("failed to record run summary: %w", err)
	}
	return nil
}
