package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"mailsweep/internal/model"
	"mailsweep/internal/repository"
)

type ScheduleHandler struct {
	schedules *repository.ScheduleRepository
	logger    *zap.Logger
}

func NewScheduleHandler(schedules *repository.ScheduleRepository, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, logger: logger}
}

type scheduleView struct {
	Frequency   model.Frequency `json:"frequency"`
	AutoApprove bool            `json:"autoApprove"`
	IsActive    bool            `json:"isActive"`
	LastRunAt   *time.Time      `json:"lastRunAt,omitempty"`
	NextRunAt   *time.Time      `json:"nextRunAt,omitempty"`
}

func (h *ScheduleHandler) Get(c *gin.Context) {
	userID := currentUserID(c)

	s, err := h.schedules.GetByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No saved schedule yet; report the inactive defaults.
			c.JSON(http.StatusOK, scheduleView{Frequency: model.FrequencyWeekly})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch schedule"})
		return
	}

	c.JSON(http.StatusOK, scheduleView{
		Frequency:   s.Frequency,
		AutoApprove: s.AutoApprove,
		IsActive:    s.IsActive,
		LastRunAt:   s.LastRunAt,
		NextRunAt:   s.NextRunAt,
	})
}

type scheduleBody struct {
	Frequency   model.Frequency `json:"frequency" binding:"required"`
	AutoApprove bool            `json:"autoApprove"`
	IsActive    bool            `json:"isActive"`
}

// Put saves the schedule. Activating (or re-activating) sets the next run one
// interval out from now; the scheduler alone advances it afterwards.
func (h *ScheduleHandler) Put(c *gin.Context) {
	userID := currentUserID(c)

	var body scheduleBody
	if err := c.ShouldBindJSON(&body); err != nil || !body.Frequency.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frequency must be daily, weekly or monthly"})
		return
	}

	s := &model.ScheduleConfig{
		UserID:      userID,
		Frequency:   body.Frequency,
		AutoApprove: body.AutoApprove,
		IsActive:    body.IsActive,
	}
	if body.IsActive {
		next := body.Frequency.NextRun(time.Now())
		s.NextRunAt = &next
	}

	if _, err := h.schedules.Upsert(c.Request.Context(), s); err != nil {
		h.logger.Error("Failed to save schedule",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save schedule"})
		return
	}

	h.logger.Info("Schedule saved",
		zap.String("user_id", userID),
		zap.String("frequency", string(body.Frequency)),
		zap.Bool("is_active", body.IsActive),
		zap.Bool("auto_approve", body.AutoApprove),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
