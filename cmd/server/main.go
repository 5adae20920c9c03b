// @title           Image Transform Backend API
// @version         1.0.0
// @description     Backend API for paid AI image transformations. Users upload an image, pay a fixed fee through Stripe Checkout and receive the transformed image.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the Supabase access token.

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"image-transform-backend/internal/config"
	"image-transform-backend/internal/database"
	"image-transform-backend/internal/events"
	"image-transform-backend/internal/handlers"
	"image-transform-backend/internal/middleware"
	"image-transform-backend/internal/objectstore"
	"image-transform-backend/internal/observability"
	"image-transform-backend/internal/payments"
	"image-transform-backend/internal/records"
	"image-transform-backend/internal/redisclient"
	"image-transform-backend/internal/replicate"
	"image-transform-backend/internal/services"
	"image-transform-backend/internal/supabase"
)

const serviceName = "image-transform-backend"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	if cfg.JaegerEndpoint != "" {
		tp, err := observability.InitTracer(serviceName, cfg.JaegerEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	recordProvider, closeRecords := buildRecords(ctx, cfg, logger)
	defer closeRecords()

	blobs := buildBlobStore(ctx, cfg, logger)

	var generator services.Generator
	if cfg.ReplicateMock {
		logger.Warn("generation running in mock mode")
		generator = &replicate.MockInvoker{Delay: cfg.ReplicateMockDelay}
	} else {
		generator = replicate.NewClient(cfg.ReplicateAPIBaseURL, cfg.ReplicateAPIToken,
			replicate.WithPolling(cfg.ReplicatePollAttempts, time.Second, 500*time.Millisecond, 10*time.Second),
			replicate.WithLogger(logger.Named("replicate")),
		)
	}

	gateway := payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PublicURL:     cfg.PublicURL,
		APIURL:        cfg.StripeAPIURL,
	})

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("publishing project events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	var ledger services.EventLedger
	if cfg.RedisAddr != "" {
		redisClient, err := redisclient.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 72*time.Hour)
		if err != nil {
			logger.Warn("payment event ledger disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			ledger = redisClient
		}
	}

	coordinator := services.NewCoordinator(services.Dependencies{
		Records:   recordProvider,
		Blobs:     blobs,
		Payments:  gateway,
		Generator: generator,
		Events:    publisher,
		Ledger:    ledger,
		Logger:    logger.Named("coordinator"),
		Pricing: services.Pricing{
			AmountCents: cfg.PriceCents,
			Currency:    cfg.Currency,
			ProductName: cfg.ProductName,
		},
		Buckets: services.Buckets{Input: cfg.InputBucket, Output: cfg.OutputBucket},
		Model:   cfg.ReplicateModel,

		GenerationTimeout: cfg.GenerationTimeout,
	})

	router := handlers.NewRouter(handlers.RouterConfig{
		Coordinator:        coordinator,
		Verifier:           middleware.NewJWTVerifier(cfg.SupabaseJWTSecret, cfg.JWTAudience),
		Logger:             logger.Named("http"),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
		// Generation holds the request open while the model runs.
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
}

func buildRecords(ctx context.Context, cfg *config.Config, logger *zap.Logger) (records.Provider, func()) {
	switch cfg.RecordBackend {
	case config.RecordBackendPostgres:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := database.NewMigrator(db, logger.Named("migrator")).Run(ctx); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		logger.Info("migrations completed successfully")
		return database.NewProjectStore(db), func() { _ = db.Close() }

	case config.RecordBackendMemory:
		logger.Warn("using in-memory record store; data is lost on restart")
		return records.NewMemoryStore(), func() {}

	default:
		provider, err := supabase.NewRecordProvider(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceRoleKey)
		if err != nil {
			logger.Fatal("failed to initialize supabase records", zap.Error(err))
		}
		return provider, func() {}
	}
}

func buildBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) services.BlobStore {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		store, err := objectstore.NewS3Store(ctx, objectstore.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			logger.Fatal("failed to initialize s3 storage", zap.Error(err))
		}
		return store

	case config.BlobBackendMinio:
		store, err := objectstore.NewMinioStore(objectstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			logger.Fatal("failed to initialize minio storage", zap.Error(err))
		}
		if err := store.EnsureBuckets(ctx, cfg.InputBucket, cfg.OutputBucket); err != nil {
			logger.Fatal("failed to prepare minio buckets", zap.Error(err))
		}
		return store

	default:
		store, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
		if err != nil {
			logger.Fatal("failed to initialize supabase storage", zap.Error(err))
		}
		return store
	}
}
