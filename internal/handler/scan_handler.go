package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsweep/internal/service"
)

// ScanHandler exposes the interactive scan and unsubscribe flows.
type ScanHandler struct {
	cleanup *service.CleanupService
	logger  *zap.Logger
}

func NewScanHandler(cleanup *service.CleanupService, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{cleanup: cleanup, logger: logger}
}

func (h *ScanHandler) Scan(c *gin.Context) {
	userID := currentUserID(c)
	h.logger.Info("Scan request received", zap.String("user_id", userID))

	result, err := h.cleanup.Scan(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoConnectedAccount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no connected mailbox account"})
			return
		}
		h.logger.Error("Scan failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

type unsubscribeBody struct {
	Messages []service.UnsubscribeRequest `json:"messages" binding:"required,min=1"`
}

func (h *ScanHandler) Unsubscribe(c *gin.Context) {
	userID := currentUserID(c)

	var body unsubscribeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages required"})
		return
	}

	reports, err := h.cleanup.Unsubscribe(c.Request.Context(), userID, body.Messages)
	if err != nil {
		if errors.Is(err, service.ErrNoConnectedAccount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no connected mailbox account"})
			return
		}
		h.logger.Error("Unsubscribe failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unsubscribe failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": reports})
}
