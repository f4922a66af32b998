// Package main runs the OmniNet HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/omninet-app/backend/config"
	"github.com/omninet-app/backend/internal/auth"
	"github.com/omninet-app/backend/internal/availability"
	"github.com/omninet-app/backend/internal/bookings"
	"github.com/omninet-app/backend/internal/donations"
	"github.com/omninet-app/backend/internal/emaillogs"
	"github.com/omninet-app/backend/internal/events"
	"github.com/omninet-app/backend/internal/feedback"
	"github.com/omninet-app/backend/internal/middleware"
	"github.com/omninet-app/backend/internal/notifications"
	"github.com/omninet-app/backend/internal/realtime"
	"github.com/omninet-app/backend/internal/tags"
	"github.com/omninet-app/backend/internal/worker"
	"github.com/omninet-app/backend/pkg/database"
	"github.com/omninet-app/backend/pkg/mailer"
	"github.com/omninet-app/backend/pkg/queue"
	"github.com/omninet-app/backend/pkg/redis"
	"github.com/omninet-app/backend/pkg/response"
	"github.com/omninet-app/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Tags
	tagRepo := tags.NewRepository(pool)
	tagHandler := tags.NewHandler(tagRepo, s3Client, cfg.App.BaseURL, logger)

	// Analytics events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, tagRepo, logger)

	// Bookings
	bookingRepo := bookings.NewRepository(pool)
	bookingEvents := bookings.NewEvents(jobQueue, tagRepo, hub, logger)
	bookingService := bookings.NewService(bookingRepo, tagRepo, bookingEvents, logger)
	bookingHandler := bookings.NewHandler(bookingService, bookingRepo, tagRepo, logger)

	// Availability ledger
	blockRepo := availability.NewRepository(pool)
	availabilityService := availability.NewService(blockRepo, tagRepo, eventRepo, logger)
	availabilityHandler := availability.NewHandler(availabilityService, tagRepo, logger)

	// Feedback and donations
	feedbackRepo := feedback.NewRepository(pool)
	feedbackHandler := feedback.NewHandler(feedbackRepo, tagRepo, logger)
	donationRepo := donations.NewRepository(pool)
	donationHandler := donations.NewHandler(donationRepo, tagRepo, cfg.Payments.WebhookSecret, logger)

	// Email logs
	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, tagRepo)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public: tag pages, booking submission, availability, feedback, funnel events.
	// OptionalJWT lets owners see their own hidden tags and full block listings
	// through the same routes visitors use.
	router.GET("/t/:slug", tagHandler.GetBySlug)
	router.GET("/tags", tagHandler.List)
	router.GET("/tags/:id", middleware.OptionalJWT(jwtService), tagHandler.GetByID)
	router.GET("/tags/:id/blocks", middleware.OptionalJWT(jwtService), availabilityHandler.List)
	router.POST("/blocks/:id/claim", availabilityHandler.Claim)
	router.POST("/tags/:id/bookings", bookingHandler.Submit)
	router.POST("/tags/:id/feedback", feedbackHandler.Create)
	router.GET("/tags/:id/feedback", feedbackHandler.ListByTag)
	router.POST("/events", eventHandler.Track)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Tags
		api.POST("/tags", tagHandler.Create)
		api.GET("/tags/mine", tagHandler.ListMine)
		api.PATCH("/tags/:id", tagHandler.Update)
		api.DELETE("/tags/:id", tagHandler.Delete)
		api.POST("/tags/:id/image", tagHandler.UploadImage)

		// Bookings
		api.GET("/tags/:id/bookings", bookingHandler.ListByTag)
		api.GET("/tags/:id/bookings/action", bookingHandler.DeepLinkAction)
		api.GET("/bookings/:id", bookingHandler.GetByID)
		api.PATCH("/bookings/:id", bookingHandler.Transition)

		// Availability blocks
		api.POST("/tags/:id/blocks", availabilityHandler.Create)
		api.PATCH("/blocks/:id", availabilityHandler.Update)
		api.PATCH("/blocks/:id/status", availabilityHandler.SetStatus)
		api.POST("/blocks/:id/duplicate", availabilityHandler.Duplicate)
		api.DELETE("/blocks/:id", availabilityHandler.Delete)

		// Owner dashboards
		api.GET("/tags/:id/emails", emailLogsHandler.ListByTag)
		api.GET("/tags/:id/donations", donationHandler.ListByTag)
		api.GET("/tags/:id/analytics", eventHandler.Summary)
	}

	// Webhooks (no JWT; signature or payload validation in handlers)
	router.POST("/webhooks/payments", donationHandler.Webhook)
	router.POST("/webhooks/email", eventHandler.EmailWebhook)

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (booking notification email)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Email.APIKey != "" {
		mail := mailer.NewClient(cfg.Email.APIBaseURL, cfg.Email.APIKey, cfg.Email.FromName, cfg.Email.FromAddress, logger)
		dispatcher := notifications.NewDispatcher(mail, bookingRepo, tagRepo, authRepo, emailLogsRepo, cfg.App.BaseURL, logger)
		processor := worker.NewNotificationProcessor(dispatcher, jobQueue, logger)
		go processor.Run(workerCtx)
		logger.Info("notification worker started")
	} else {
		logger.Warn("email not configured, notification worker disabled")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
