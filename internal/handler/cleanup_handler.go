package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsweep/internal/service"
)

// CleanupHandler exposes the scheduler trigger for the external cron.
type CleanupHandler struct {
	scheduler *service.Scheduler
	logger    *zap.Logger
}

func NewCleanupHandler(scheduler *service.Scheduler, logger *zap.Logger) *CleanupHandler {
	return &CleanupHandler{scheduler: scheduler, logger: logger}
}

// Trigger drains all due schedules. Safe to call more often than schedules
// come due; an empty cycle returns processed=0.
func (h *CleanupHandler) Trigger(c *gin.Context) {
	h.logger.Info("Scheduled cleanup triggered", zap.String("client_ip", c.ClientIP()))

	resp, err := h.scheduler.RunDue(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
			return
		}
		h.logger.Error("Scheduled cleanup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
