package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sweepstar/service-booking/internal/application"
	"github.com/sweepstar/service-booking/internal/config"
	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	catalogDomain "github.com/sweepstar/service-booking/internal/domain/catalog"
	bookingEvents "github.com/sweepstar/service-booking/internal/events"
	"github.com/sweepstar/service-booking/internal/handler"
	"github.com/sweepstar/service-booking/internal/pkg/auth"
	"github.com/sweepstar/service-booking/internal/pkg/database"
	"github.com/sweepstar/service-booking/internal/pkg/health"
	"github.com/sweepstar/service-booking/internal/pkg/kafka"
	"github.com/sweepstar/service-booking/internal/pkg/logger"
	"github.com/sweepstar/service-booking/internal/pkg/middleware"
	"github.com/sweepstar/service-booking/internal/repository"
	"github.com/sweepstar/service-booking/internal/scheduler"
	"github.com/sweepstar/service-booking/migrations"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.URL(), migrations.FS, ".", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT verifier
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, cfg.JWTConfig.Issuer)

	// Initialize event publisher
	var publisher application.EventPublisher
	if cfg.KafkaConfig.Enabled {
		producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		log.Warn("kafka disabled, booking events will not be published")
		publisher = kafka.NewNopProducer(log)
	}

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	var serviceRepo catalogDomain.ServiceRepository = repository.NewGormServiceRepository(db)

	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = redisClient.Close() }()
		serviceRepo = repository.NewCachedServiceRepository(serviceRepo, redisClient, cfg.RedisConfig.CatalogTTL, log)
		log.Info("catalog cache enabled", zap.String("addr", cfg.RedisConfig.Addr))
	}

	// Initialize domain policies
	pricingStrategy := bookingDomain.NewStandardPricingStrategy(bookingDomain.MultiplierBounds{
		Min: cfg.PricingConfig.MultiplierMin,
		Max: cfg.PricingConfig.MultiplierMax,
	})
	lifecycle := bookingDomain.NewLifecycleEngine(bookingDomain.LifecyclePolicy{
		CancellationCutoff: cfg.LifecycleConfig.CancellationCutoff,
	})

	// Initialize application services
	claimCoordinator := application.NewClaimCoordinator(bookingRepo, publisher, log)
	bookingService := application.NewBookingService(
		bookingRepo,
		serviceRepo,
		pricingStrategy,
		lifecycle,
		claimCoordinator,
		publisher,
		log,
	)
	catalogService := application.NewCatalogService(serviceRepo, bookingRepo, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start provider event consumer in a goroutine
	if cfg.KafkaConfig.Enabled {
		providerConsumer := bookingEvents.NewProviderEventConsumer(
			cfg.KafkaConfig.Brokers,
			cfg.KafkaConfig.GroupID,
			claimCoordinator,
			log,
		)
		defer func() { _ = providerConsumer.Close() }()

		go func() {
			log.Info("starting provider event consumer")
			if err := providerConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("provider event consumer error", zap.Error(err))
			}
		}()
	}

	// Start expiry scheduler
	expiry := scheduler.New(bookingService, cfg.LifecycleConfig.ExpiryInterval, cfg.LifecycleConfig.ExpiryBatchSize, log)
	go expiry.Start(ctx)

	// Initialize HTTP handlers
	claimLimiter := middleware.RateLimitPerUser(cfg.RateLimitConfig.ClaimsPerSecond, cfg.RateLimitConfig.ClaimBurst, log)
	bookingHandler := handler.NewBookingHandler(bookingService, claimCoordinator, claimLimiter)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService)
	catalogHandler := handler.NewCatalogHandler(catalogService)

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, redisClient, serviceName)
	healthHandler.RegisterRoutes(router)

	// Register routes
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	catalogHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Stop the consumer and scheduler
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
