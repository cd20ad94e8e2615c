package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsweep/internal/model"
	"mailsweep/internal/repository"
)

const defaultHistoryLimit = 50

type HistoryHandler struct {
	history *repository.HistoryRepository
	runs    *repository.RunRepository
	logger  *zap.Logger
}

func NewHistoryHandler(history *repository.HistoryRepository, runs *repository.RunRepository, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, runs: runs, logger: logger}
}

func parseLimit(c *gin.Context) int {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}

func (h *HistoryHandler) List(c *gin.Context) {
	userID := currentUserID(c)

	entries, err := h.history.ListByUser(c.Request.Context(), userID, parseLimit(c))
	if err != nil {
		h.logger.Error("Failed to fetch history", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}

	type view struct {
		ID             string `json:"id"`
		EmailID        string `json:"emailId"`
		Sender         string `json:"sender"`
		Subject        string `json:"subject"`
		SpamConfidence string `json:"spamConfidence"`
		Reasoning      string `json:"reasoning"`
		Method         string `json:"method"`
		Status         string `json:"status"`
		Deleted        bool   `json:"deleted"`
		ProcessedAt    string `json:"processedAt"`
	}
	views := make([]view, 0, len(entries))
	for _, e := range entries {
		views = append(views, view{
			ID:             e.ID,
			EmailID:        e.EmailID,
			Sender:         e.Sender,
			Subject:        e.Subject,
			SpamConfidence: string(e.SpamConfidence),
			Reasoning:      e.AIReasoning,
			Method:         string(e.UnsubscribeMethod),
			Status:         e.UnsubscribeStatus,
			Deleted:        e.Deleted,
			ProcessedAt:    e.ProcessedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": views})
}

func (h *HistoryHandler) ListRuns(c *gin.Context) {
	userID := currentUserID(c)

	runs, err := h.runs.ListByUser(c.Request.Context(), userID, parseLimit(c))
	if err != nil {
		h.logger.Error("Failed to fetch runs", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch runs"})
		return
	}

	type view struct {
		ID                 string            `json:"id"`
		RunAt              string            `json:"runAt"`
		EmailsScanned      int               `json:"emailsScanned"`
		EmailsDeleted      int               `json:"emailsDeleted"`
		EmailsUnsubscribed int               `json:"emailsUnsubscribed"`
		TopSenders         []model.TopSender `json:"topSenders"`
		IsDismissed        bool              `json:"isDismissed"`
	}
	views := make([]view, 0, len(runs))
	for _, r := range runs {
		views = append(views, view{
			ID:                 r.ID,
			RunAt:              r.RunAt.UTC().Format(time.RFC3339),
			EmailsScanned:      r.EmailsScanned,
			EmailsDeleted:      r.EmailsDeleted,
			EmailsUnsubscribed: r.EmailsUnsubscribed,
			TopSenders:         r.TopSenders,
			IsDismissed:        r.IsDismissed,
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": views})
}

func (h *HistoryHandler) DismissRun(c *gin.Context) {
	userID := currentUserID(c)
	runID := c.Param("id")

	if err := h.runs.Dismiss(c.Request.Context(), userID, runID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to dismiss run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HistoryHandler) Stats(c *gin.Context) {
	userID := currentUserID(c)

	stats, err := h.history.GetStats(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to fetch stats", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalProcessed": stats.TotalProcessed,
		"deleted":        stats.Deleted,
		"unsubscribed":   stats.Unsubscribed,
		"failed":         stats.Failed,
	})
}
