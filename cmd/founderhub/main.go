package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gartstein/founderhub/internal/company/auth"
	"github.com/gartstein/founderhub/internal/company/config"
	"github.com/gartstein/founderhub/internal/company/controller"
	gorm "github.com/gartstein/founderhub/internal/company/db"
	"github.com/gartstein/founderhub/internal/company/events"
	"github.com/gartstein/founderhub/internal/company/handlers"
	"github.com/gartstein/founderhub/internal/company/ingest"
	"github.com/gartstein/founderhub/internal/company/oauthstate"
	"github.com/gartstein/founderhub/internal/company/reconcile"
	"github.com/gartstein/founderhub/internal/company/storage"
	"github.com/gartstein/founderhub/internal/company/validation"
	"github.com/gartstein/founderhub/internal/pkg/cache"
	"github.com/gartstein/founderhub/internal/pkg/logging"
	"github.com/gartstein/founderhub/internal/pkg/ratelimit"
	"github.com/gartstein/founderhub/internal/pkg/telemetry"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		// The logger level comes from the config, so fall back to defaults.
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := initLogger(cfg)
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := gorm.NewRepository(initDatabase(cfg))
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	redisClient, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
	if err != nil {
		logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	files, err := storage.New(ctx, storage.Config{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize file store", zap.Error(err))
	}

	metrics := telemetry.New()
	validator := validation.New()

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	guard := auth.NewGuard(issuer, repo, logger)

	engine := reconcile.NewEngine(reconcile.NewRepositoryStore(repo), guard, validator, cfg.ReconcileStepTimeout, logger)
	listingCache := controller.NewRedisListingCache(redisClient, cfg.ListingCacheTTL, logger)
	companySvc := controller.NewCompanyService(repo, engine, files, listingCache, validator, producer, metrics, logger)

	adapter := ingest.NewAdapter(repo, guard, producer, ingest.Options{SyncTimeout: cfg.MetricsSyncTimeout}, logger,
		ingest.NewStripeProvider(ingest.NewStripeAPI(cfg.StripeSecretKey, nil), cfg.StripeClientID),
		ingest.NewGA4Provider(ingest.GA4Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			TokenURL:     cfg.GoogleTokenURL,
			AdminURL:     cfg.GA4AdminURL,
			DataURL:      cfg.GA4DataURL,
		}, nil),
	)
	states := oauthstate.NewStore(redisClient, adapter, cfg.JWTSecret, cfg.OAuthRedirectURI, cfg.OAuthStateTTL, logger)

	// Listing pages are invalidated from the event stream so every replica
	// drops its cached pages, not just the one that made the change.
	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.Topic, logger)
	consumer.RegisterHandler(companySvc.HandleEvent)
	consumer.Start(ctx)
	defer consumer.Close()

	limiter := ratelimit.New(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	if err := limiter.TrustProxies(cfg.TrustedProxies...); err != nil {
		logger.Fatal("invalid TRUSTED_PROXIES", zap.Error(err))
	}
	go limiter.Cleanup(ctx, 5*time.Minute)

	companyHandler := handlers.NewCompanyHandler(companySvc, adapter, states, guard, metrics, logger)

	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger, grpc.UnaryInterceptor(handlers.UnaryLoggingInterceptor(logger)))
	if err := server.RegisterHTTPGateway(
		ctx,
		[]grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
		companyHandler,
		guard,
		limiter,
	); err != nil {
		logger.Fatal("Failed to register HTTP gateway", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start servers", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
	cancel()
}

// initLogger builds the service logger from the configured level and file.
func initLogger(cfg *config.Config) *zap.Logger {
	return logging.New(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxBackups: 5,
		MaxAgeDays: 28,
	})
}

// initDatabase initializes the database connection settings.
func initDatabase(cfg *config.Config) *gorm.Config {
	return &gorm.Config{
		Driver:       cfg.DBDriver,
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		User:         cfg.DBUser,
		Password:     cfg.DBPassword,
		DBName:       cfg.DBName,
		SSLMode:      cfg.DBSSLMode,
		Path:         cfg.DBPath,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	}
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, then shuts down servers.
func waitForShutdown(server *handlers.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	server.Stop()
	logger.Info("Servers stopped properly")
}
