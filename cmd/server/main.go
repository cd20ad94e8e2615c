package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mailsweep/internal/classifier"
	"mailsweep/internal/config"
	"mailsweep/internal/gmail"
	"mailsweep/internal/handler"
	"mailsweep/internal/httpserver"
	"mailsweep/internal/repository"
	"mailsweep/internal/service"
	"mailsweep/internal/vault"
	"mailsweep/pkg/db"
	"mailsweep/pkg/logger"
	"mailsweep/pkg/mq"
	"mailsweep/pkg/redis"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting mailsweep...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("mq_url", cfg.MQ.URL),
	)

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established successfully")

	// Redis
	rdb := redis.NewClient(cfg.Redis)
	defer rdb.Close()

	// MQ publisher is optional: run events are best-effort.
	var publisher *mq.Publisher
	if cfg.MQ.URL != "" {
		publisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Warn("Failed to init MQ publisher, run events disabled", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
			log.Info("MQ publisher initialized")
		}
	}

	// Token vault
	v, err := vault.New(cfg.Vault.Secret)
	if err != nil {
		log.Fatal("Failed to init token vault", zap.Error(err))
	}

	// External clients
	gmailClient := gmail.NewClient(cfg.Google, log)
	spamClassifier := classifier.New(cfg.AI, log)

	// Repositories
	accountRepo := repository.NewAccountRepository(dbConn, log)
	scheduleRepo := repository.NewScheduleRepository(dbConn, log)
	feedbackRepo := repository.NewFeedbackRepository(dbConn)
	historyRepo := repository.NewHistoryRepository(dbConn)
	runRepo := repository.NewRunRepository(dbConn)

	// Services
	creds := service.NewCredentialService(accountRepo, v, gmailClient, log)
	executor := service.NewExecutor(gmailClient, log)
	cleanup := service.NewCleanupService(creds, gmailClient, spamClassifier, feedbackRepo, historyRepo, runRepo, executor, log)
	runLock := service.NewRunLock(rdb, log)

	var events service.EventPublisher
	if publisher != nil {
		events = publisher
	}
	scheduler := service.NewScheduler(scheduleRepo, cleanup, runLock, events, log)

	// HTTP server
	handlers := httpserver.Handlers{
		Accounts: handler.NewAccountHandler(accountRepo, gmailClient, v, log),
		Scan:     handler.NewScanHandler(cleanup, log),
		Feedback: handler.NewFeedbackHandler(feedbackRepo, log),
		Schedule: handler.NewScheduleHandler(scheduleRepo, log),
		History:  handler.NewHistoryHandler(historyRepo, runRepo, log),
		Cleanup:  handler.NewCleanupHandler(scheduler, log),
	}
	router := httpserver.NewRouter(handlers, cfg.JWT.Secret, cfg.Cron.Secret, log, dbConn, rdb)

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("mailsweep is fully initialized and running",
		zap.String("http_port", port),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down mailsweep gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Closing database connection...")
	dbConn.Close()

	log.Info("mailsweep shutdown complete")
}
