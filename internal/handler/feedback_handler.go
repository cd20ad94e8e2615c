package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsweep/internal/repository"
)

type FeedbackHandler struct {
	feedback *repository.FeedbackRepository
	logger   *zap.Logger
}

func NewFeedbackHandler(feedback *repository.FeedbackRepository, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback, logger: logger}
}

type feedbackBody struct {
	SenderEmail  string `json:"senderEmail" binding:"required"`
	SenderName   string `json:"senderName"`
	MarkedAsSpam *bool  `json:"markedAsSpam" binding:"required"`
}

func (h *FeedbackHandler) Submit(c *gin.Context) {
	userID := currentUserID(c)

	var body feedbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "senderEmail and markedAsSpam required"})
		return
	}

	if err := h.feedback.Upsert(c.Request.Context(), userID, body.SenderEmail, body.SenderName, *body.MarkedAsSpam); err != nil {
		h.logger.Error("Failed to store sender feedback",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store feedback"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *FeedbackHandler) List(c *gin.Context) {
	userID := currentUserID(c)

	entries, err := h.feedback.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch feedback"})
		return
	}

	type view struct {
		SenderEmail   string `json:"senderEmail"`
		SenderName    string `json:"senderName"`
		MarkedAsSpam  bool   `json:"markedAsSpam"`
		FeedbackCount int    `json:"feedbackCount"`
	}
	views := make([]view, 0, len(entries))
	for _, e := range entries {
		views = append(views, view{
			SenderEmail:   e.SenderEmail,
			SenderName:    e.SenderName,
			MarkedAsSpam:  e.MarkedAsSpam,
			FeedbackCount: e.FeedbackCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"feedback": views})
}

func (h *FeedbackHandler) Remove(c *gin.Context) {
	userID := currentUserID(c)
	sender := c.Param("sender")
	if sender == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender required"})
		return
	}

	if err := h.feedback.Delete(c.Request.Context(), userID, sender); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete feedback"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
