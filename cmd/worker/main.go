// Package main runs the background job worker (booking notification email).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/omninet-app/backend/config"
	"github.com/omninet-app/backend/internal/auth"
	"github.com/omninet-app/backend/internal/bookings"
	"github.com/omninet-app/backend/internal/emaillogs"
	"github.com/omninet-app/backend/internal/notifications"
	"github.com/omninet-app/backend/internal/tags"
	"github.com/omninet-app/backend/internal/worker"
	"github.com/omninet-app/backend/pkg/database"
	"github.com/omninet-app/backend/pkg/mailer"
	"github.com/omninet-app/backend/pkg/queue"
	"github.com/omninet-app/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	if cfg.Email.APIKey == "" {
		logger.Fatal("EMAIL_API_KEY is required for the notification worker")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	mail := mailer.NewClient(cfg.Email.APIBaseURL, cfg.Email.APIKey, cfg.Email.FromName, cfg.Email.FromAddress, logger)
	bookingRepo := bookings.NewRepository(pool)
	tagRepo := tags.NewRepository(pool)
	authRepo := auth.NewRepository(pool)
	emailLogsRepo := emaillogs.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	dispatcher := notifications.NewDispatcher(mail, bookingRepo, tagRepo, authRepo, emailLogsRepo, cfg.App.BaseURL, logger)
	processor := worker.NewNotificationProcessor(dispatcher, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
