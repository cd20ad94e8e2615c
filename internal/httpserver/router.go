package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailsweep/internal/handler"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Accounts *handler.AccountHandler
	Scan     *handler.ScanHandler
	Feedback *handler.FeedbackHandler
	Schedule *handler.ScheduleHandler
	History  *handler.HistoryHandler
	Cleanup  *handler.CleanupHandler
}

func NewRouter(h Handlers, jwtSecret, cronSecret string, logger *zap.Logger, db *pgxpool.Pool, rdb *redislib.Client) *gin.Engine {
	r := gin.Default()

	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	})

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				c.JSON(500, gin.H{"status": "redis_not_ready", "error": err.Error()})
				return
			}
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// OAuth callback has no bearer token; the state carries the user id.
	r.GET("/auth/google/callback", h.Accounts.Callback)

	// External cron trigger, guarded by a shared secret.
	cron := r.Group("/cron", handler.RequireCronSecret(cronSecret))
	cron.POST("/cleanup", h.Cleanup.Trigger)

	api := r.Group("/", handler.RequireAuth(jwtSecret))
	{
		api.GET("/auth/google/url", h.Accounts.AuthURL)
		api.GET("/accounts", h.Accounts.List)
		api.DELETE("/accounts/:id", h.Accounts.Disconnect)

		api.POST("/scan", h.Scan.Scan)
		api.POST("/unsubscribe", h.Scan.Unsubscribe)

		api.POST("/feedback", h.Feedback.Submit)
		api.GET("/feedback", h.Feedback.List)
		api.DELETE("/feedback/:sender", h.Feedback.Remove)

		api.GET("/schedule", h.Schedule.Get)
		api.PUT("/schedule", h.Schedule.Put)

		api.GET("/history", h.History.List)
		api.GET("/runs", h.History.ListRuns)
		api.POST("/runs/:id/dismiss", h.History.DismissRun)
		api.GET("/stats", h.History.Stats)
	}

	return r
}
