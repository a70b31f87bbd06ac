package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"travelwild_backend/internal/cache"
	"travelwild_backend/internal/config"
	"travelwild_backend/internal/database"
	"travelwild_backend/internal/email"
	"travelwild_backend/internal/events"
	"travelwild_backend/internal/finance"
	"travelwild_backend/internal/handlers"
	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/middleware"
	"travelwild_backend/internal/notifications"
	"travelwild_backend/internal/routes"
	"travelwild_backend/internal/services"
	"travelwild_backend/internal/storage"
	"travelwild_backend/internal/validator"
	"travelwild_backend/internal/workers"
	"travelwild_backend/pkg/apperrors"
)

// lockPrefix - пространство ключей блокировок в Redis.
const lockPrefix = "travelwild:lock:"

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env, cfg.Server.LogLevel)
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	apperrors.SetDebug(!cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to database...")
	gormDB, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(gormDB); err != nil {
			logger.Fatal("AutoMigrate failed", "error", err)
		}
		logger.Info("AutoMigrate completed")
	}

	deps, closeDeps := initializeDependencies(ctx, cfg)
	defer closeDeps()

	serviceContainer := services.NewServiceContainer(deps)

	workers.NewOutboxWorker(gormDB, serviceContainer.SettlementService,
		time.Duration(cfg.Workers.OutboxInterval)*time.Second,
		cfg.Workers.OutboxBatchSize, cfg.Workers.OutboxMaxAttempts,
	).Start(ctx)
	workers.NewSubscriptionWorker(gormDB, serviceContainer.SubscriptionService,
		time.Duration(cfg.Workers.SubscriptionInterval)*time.Second,
	).Start(ctx)

	ginRouter := SetupRouter(cfg, gormDB, serviceContainer)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              address,
		Handler:           ginRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(fmt.Sprintf("Server starting on %s", address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
}

// SetupRouter собирает gin с middleware и всеми маршрутами.
func SetupRouter(cfg *config.Config, gormDB *gorm.DB, serviceContainer *services.ServiceContainer) *gin.Engine {
	appHandlers := handlers.NewAppHandlers(serviceContainer, validator.New())

	ginRouter := initializeGinRouter(gormDB, cfg.Server.AllowedOrigins)
	routes.RegisterRoutes(ginRouter, appHandlers, cfg.JWT.Secret)
	return ginRouter
}

// initializeDependencies поднимает внешние зависимости. Redis и RabbitMQ необязательны:
// без них работают NoopLocker и NoopPublisher.
func initializeDependencies(ctx context.Context, cfg *config.Config) (services.Dependencies, func()) {
	var closers []func() error

	fees, err := finance.NewFeeTable(cfg.Finance.FeeRates, cfg.Finance.DefaultFeeRate)
	if err != nil {
		logger.Fatal("Invalid fee table in config", "error", err)
	}

	composer, err := notifications.NewComposer(cfg.Finance.FinanceTeamEmail)
	if err != nil {
		logger.Fatal("Failed to load notification templates", "error", err)
	}

	var emailProvider email.Provider
	if cfg.Email.Enabled {
		emailProvider = email.NewSMTPProvider(email.ConfigFromApp(cfg), email.NewTemplateManager())
		if err := emailProvider.Validate(); err != nil {
			logger.Fatal("Invalid SMTP configuration", "error", err)
		}
		logger.Info("SMTP email provider initialized", "host", cfg.Email.SMTPHost)
	} else {
		logger.Warn("Email disabled, messages are only logged")
		emailProvider = &LogEmailProvider{}
	}
	closers = append(closers, emailProvider.Close)

	var locker cache.Locker = cache.NoopLocker{}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Warn("Redis unavailable, webhook event claims disabled", "error", err)
		} else {
			locker = cache.NewRedisLocker(rdb, lockPrefix)
			closers = append(closers, rdb.Close)
			logger.Info("Redis connected", "addr", cfg.Redis.Addr)
		}
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		p, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, domain events are not published", "error", err)
		} else {
			publisher = p
			logger.Info("RabbitMQ publisher ready", "exchange", cfg.RabbitMQ.Exchange)
		}
	}
	closers = append(closers, publisher.Close)

	var archive storage.Storage
	if cfg.Storage.Type != "" {
		archive, err = storage.NewStorage(storage.Config{
			Type:      cfg.Storage.Type,
			BasePath:  cfg.Storage.BasePath,
			BaseURL:   cfg.Storage.BaseURL,
			Bucket:    cfg.Storage.Bucket,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Endpoint:  cfg.Storage.Endpoint,
		})
		if err != nil {
			logger.Fatal("Failed to initialize statement storage", "error", err)
		}
		logger.Info("Statement storage initialized", "type", cfg.Storage.Type)
	}

	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is not set, every webhook will be rejected")
	}

	deps := services.Dependencies{
		Fees:      fees,
		Currency:  cfg.Finance.Currency,
		Composer:  composer,
		Mailer:    notifications.NewEmailMailer(emailProvider),
		Publisher: publisher,
		Locker:    locker,
		Archive:   archive,
		Webhook: services.WebhookConfig{
			Secret:        cfg.Stripe.WebhookSecret,
			Tolerance:     cfg.StripeTolerance(),
			ClaimTTL:      cfg.EventClaimTTL(),
			PlanByPriceID: cfg.PlanByPriceID,
		},
	}

	return deps, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Failed to close dependency", "error", err)
			}
		}
	}
}

func initializeGinRouter(db *gorm.DB, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(allowedOrigins...))
	router.Use(middleware.DBMiddleware(db))
	return router
}
