package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/xaenox/guest-sentry/internal/alerts"
	"github.com/xaenox/guest-sentry/internal/cache"
	"github.com/xaenox/guest-sentry/internal/classifier"
	"github.com/xaenox/guest-sentry/internal/gateway"
	"github.com/xaenox/guest-sentry/internal/jobs"
	"github.com/xaenox/guest-sentry/internal/models"
	"github.com/xaenox/guest-sentry/internal/notify"
	"github.com/xaenox/guest-sentry/internal/pipeline"
	"github.com/xaenox/guest-sentry/internal/rules"
	"github.com/xaenox/guest-sentry/internal/storage"
	"github.com/xaenox/guest-sentry/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize redis and the response cache
	var redisClient *redis.Client
	var responseCache cache.Cache
	if cfg.Redis.UseInMemory {
		logger.Info("Using in-memory response cache")
		responseCache = cache.NewMemoryCache(cfg.Redis.CacheTTL)
	} else {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to parse redis url", zap.Error(err))
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
		logger.Info("Using redis response cache")
		responseCache = cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL, logger)
	}

	// One limiter and breaker instance per external dependency, shared by
	// all concurrent callers.
	limiter := gateway.NewRateLimiter(cfg.Gateway.MaxRequestsPerMinute, cfg.Gateway.MaxTokensPerMinute)
	breaker := gateway.NewCircuitBreaker("openai", cfg.Gateway.BreakerMaxFailures, cfg.Gateway.BreakerResetTimeout, logger)
	upstream := gateway.NewOpenAIUpstream(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature)
	gw := gateway.New(upstream, limiter, breaker, responseCache, gateway.Options{
		Model:           cfg.OpenAI.Model,
		UpstreamTimeout: cfg.Gateway.UpstreamTimeout,
		MaxAcquireTries: cfg.Gateway.MaxAcquireTries,
	}, logger)

	clf := classifier.NewSentimentClassifier(gw, responseCache,
		cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.Classifier.AttentionThreshold, logger)

	thresholds := rules.NewManager(store, models.DefaultThresholds(), logger)
	engine := rules.NewEngine(thresholds, store, logger)

	// Notification channels: telegram carries chat-ops, everything else is
	// logged until a real transport is wired in.
	mux := notify.NewMuxSender(notify.NewLogSender(logger))
	if cfg.Notify.TelegramToken != "" {
		telegram, err := notify.NewTelegramSender(cfg.Notify.TelegramToken, logger)
		if err != nil {
			logger.Fatal("Failed to create telegram sender", zap.Error(err))
		}
		mux.Register(models.ChannelChatOps, telegram)
		mux.Register(models.ChannelChatOps2, telegram)
	}

	recipients := alerts.Recipients{}
	for channel, recipientSet := range cfg.Notify.Recipients {
		recipients[models.Channel(channel)] = recipientSet
	}

	router := alerts.NewRouter(mux, recipients, logger)
	lifecycle := alerts.NewLifecycle(store, thresholds, router, logger)
	p := pipeline.New(clf, engine, lifecycle, router, store, logger)

	runner := jobs.NewRunner(redisClient, p, lifecycle,
		cfg.Jobs.Queue, cfg.Jobs.Concurrency, cfg.Jobs.OverdueCheckInterval, logger)

	logger.Info("Guest sentry started",
		zap.String("model", cfg.OpenAI.Model),
		zap.String("queue", cfg.Jobs.Queue),
		zap.Int("max_requests_per_minute", cfg.Gateway.MaxRequestsPerMinute))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner.Run(ctx)
	logger.Info("Shutting down")
}
