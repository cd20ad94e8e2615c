package service

import (
	"context"

	"go.uber.org/zap"

	"mailsweep/internal/model"
)

// Executor performs deletes and best-effort unsubscribes against the
// mailbox. It does no classification of its own: callers decide what gets
// deleted, the executor only carries it out.
type Executor struct {
	provider MailProvider
	logger   *zap.Logger
}

func NewExecutor(provider MailProvider, logger *zap.Logger) *Executor {
	return &Executor{provider: provider, logger: logger}
}

// Delete removes one message. A provider not-found is a successful outcome:
// the message is already gone, which is exactly what the caller wanted.
func (e *Executor) Delete(ctx context.Context, accessToken, messageID string) model.DeleteResult {
	res := e.provider.DeleteMessage(ctx, accessToken, messageID)
	if res.NotFound {
		e.logger.Debug("Message already gone, treating delete as success",
			zap.String("message_id", messageID),
		)
	}
	return res
}

// UnsubscribeOutcome describes what the executor did with one message.
type UnsubscribeOutcome struct {
	Method       model.UnsubscribeMethod
	Status       string
	Unsubscribed bool
	Delete       model.DeleteResult
}

// UnsubscribeAndDelete handles one message in the interactive flow. A
// List-Unsubscribe header action is recorded as attempted and counts as an
// unsubscribe; a web-only link is surfaced for out-of-band opening. The
// delete is independent of either: the two actions are not transactional.
func (e *Executor) UnsubscribeAndDelete(ctx context.Context, accessToken string, msg model.MessageSummary) UnsubscribeOutcome {
	out := UnsubscribeOutcome{Method: model.MethodDeleteOnly}

	switch {
	case msg.HasListUnsubscribe:
		// Best-effort signal; the header action is recorded as attempted
		// whether or not the provider honors it synchronously.
		out.Method = model.MethodAutoHeader
		out.Unsubscribed = true
	case msg.UnsubscribeLink != "":
		out.Method = model.MethodWebLink
	}

	out.Delete = e.Delete(ctx, accessToken, msg.ID)

	switch {
	case out.Delete.Success:
		out.Status = model.StatusSuccess
	default:
		out.Status = model.StatusFailed
	}
	if out.Method == model.MethodWebLink && out.Delete.Success {
		out.Status = model.StatusOpenedLink
	}

	return out
}
