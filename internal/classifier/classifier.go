// Package classifier labels message batches by calling a chat-completion
// model, degrading to a deterministic heuristic whenever the model response
// cannot be used. A malformed AI response never blocks the pipeline.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"mailsweep/internal/model"
	"mailsweep/pkg/metrics"
)

// Rate and quota conditions are surfaced to the caller instead of being
// retried; the run keeps the classifications already obtained.
var (
	ErrRateLimited    = errors.New("classifier: rate limited")
	ErrQuotaExhausted = errors.New("classifier: quota exhausted")
)

// chunkSize caps how many messages go into one external call.
const chunkSize = 20

const systemPrompt = `You are an email spam classifier. Analyze emails and classify each as:
- "definitely_spam": Obvious spam, scams, phishing, or aggressive marketing
- "likely_spam": Marketing newsletters or promotional emails the user probably doesn't want
- "might_be_important": Could be legitimate, needs user review

For each email, provide a brief reasoning (max 15 words) explaining your classification.

Respond with a JSON array where each item has:
- id: the email id
- spamConfidence: one of the three categories above
- reasoning: brief explanation`

var jsonArrayRe = regexp.MustCompile(`\[[\s\S]*\]`)

// Config holds the completion endpoint settings.
type Config struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

type Classifier struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Classifier {
	return &Classifier{
		cfg: cfg,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify labels the given messages, at most chunkSize per external call.
// Chunks run sequentially to bound the load on the model endpoint. On a rate
// or quota error the results obtained so far are returned along with the
// error; any other per-chunk failure degrades that chunk to the heuristic.
func (c *Classifier) Classify(ctx context.Context, messages []model.MessageSummary) ([]model.ClassificationResult, error) {
	results := make([]model.ClassificationResult, 0, len(messages))

	for start := 0; start < len(messages); start += chunkSize {
		end := start + chunkSize
		if end > len(messages) {
			end = len(messages)
		}
		chunk := messages[start:end]

		chunkResults, err := c.classifyChunk(ctx, chunk)
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExhausted) {
			return results, err
		}
		if err != nil {
			c.logger.Warn("Classifier call failed, falling back to heuristic",
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			chunkResults = Heuristic(chunk)
		}
		results = append(results, chunkResults...)
	}

	return results, nil
}

func (c *Classifier) classifyChunk(ctx context.Context, chunk []model.MessageSummary) ([]model.ClassificationResult, error) {
	summaries, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze these emails:\n" + string(summaries)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordClassifierCall("failed", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		metrics.RecordClassifierCall("rate_limited", time.Since(start))
		return nil, ErrRateLimited
	case http.StatusPaymentRequired:
		metrics.RecordClassifierCall("quota_exhausted", time.Since(start))
		return nil, ErrQuotaExhausted
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordClassifierCall("failed", time.Since(start))
		return nil, fmt.Errorf("classifier endpoint returned %d", resp.StatusCode)
	}
	metrics.RecordClassifierCall("success", time.Since(start))

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	content := ""
	if len(chat.Choices) > 0 {
		content = chat.Choices[0].Message.Content
	}

	return parseResults(content, chunk), nil
}

// parseResults extracts the first JSON array from the model output and joins
// it to the chunk by message id. Missing or invalid entries get the
// heuristic label so every message in the chunk comes back classified.
func parseResults(content string, chunk []model.MessageSummary) []model.ClassificationResult {
	byID := make(map[string]model.ClassificationResult)

	if m := jsonArrayRe.FindString(content); m != "" {
		var parsed []model.ClassificationResult
		if err := json.Unmarshal([]byte(m), &parsed); err == nil {
			for _, r := range parsed {
				if r.SpamConfidence.Valid() {
					byID[r.ID] = r
				}
			}
		}
	}

	results := make([]model.ClassificationResult, 0, len(chunk))
	for _, msg := range chunk {
		if r, ok := byID[msg.ID]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, heuristicFor(msg))
	}
	return results
}

// Heuristic labels messages without the model: a List-Unsubscribe header
// suggests bulk mail, everything else needs user review.
func Heuristic(messages []model.MessageSummary) []model.ClassificationResult {
	results := make([]model.ClassificationResult, 0, len(messages))
	for _, msg := range messages {
		results = append(results, heuristicFor(msg))
	}
	return results
}

func heuristicFor(msg model.MessageSummary) model.ClassificationResult {
	if msg.HasListUnsubscribe {
		return model.ClassificationResult{
			ID:             msg.ID,
			SpamConfidence: model.LikelySpam,
			Reasoning:      "Classification based on email headers",
		}
	}
	return model.ClassificationResult{
		ID:             msg.ID,
		SpamConfidence: model.MightBeImportant,
		Reasoning:      "Classification based on email headers",
	}
}
