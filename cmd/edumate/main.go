package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/EduMate/internal/api"
	"github.com/MikeSquared-Agency/EduMate/internal/assistant"
	"github.com/MikeSquared-Agency/EduMate/internal/auth"
	"github.com/MikeSquared-Agency/EduMate/internal/config"
	"github.com/MikeSquared-Agency/EduMate/internal/gemini"
	"github.com/MikeSquared-Agency/EduMate/internal/hermes"
	"github.com/MikeSquared-Agency/EduMate/internal/mailer"
	"github.com/MikeSquared-Agency/EduMate/internal/notifier"
	"github.com/MikeSquared-Agency/EduMate/internal/scoring"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Reminder cache (optional)
	var cache assistant.Cache = assistant.NopCache{}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Warn("invalid redis url, running without reminder cache", "error", err)
		} else {
			rc := redis.NewClient(opts)
			if err := rc.Ping(ctx).Err(); err != nil {
				logger.Warn("failed to connect to redis, running without reminder cache", "error", err)
				_ = rc.Close()
			} else {
				cache = assistant.NewRedisCache(rc)
				defer rc.Close()
				logger.Info("connected to redis")
			}
		}
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := api.NewMetrics(reg)

	// Generative AI
	if cfg.Gemini.APIKey == "" {
		logger.Warn("gemini api key not set, chat is disabled and reminders use the fallback")
	}
	geminiClient := gemini.NewHTTPClient(gemini.Options{
		APIKey:           cfg.Gemini.APIKey,
		Model:            cfg.Gemini.Model,
		BaseURL:          cfg.Gemini.BaseURL,
		Timeout:          cfg.GeminiTimeout(),
		FailureThreshold: uint32(cfg.Gemini.BreakerFailureThreshold),
		BreakerTimeout:   cfg.BreakerTimeout(),
	}, logger)
	chat := assistant.NewChat(geminiClient, assistant.ChatOptions{
		MaxTokens:   cfg.Gemini.ChatMaxTokens,
		Temperature: cfg.Gemini.ChatTemperature,
	})
	reminders := assistant.NewReminders(geminiClient, cache, assistant.ReminderOptions{
		CacheTTL: cfg.ReminderCacheTTL(),
		Observe:  func(outcome string) { metrics.ObserveAI("reminders", outcome) },
	}, logger)

	// Scoring
	engine, err := scoring.NewEngine(scoring.Config{
		Weights: scoring.Weights{
			Deadline: cfg.Scoring.DeadlineWeight,
			Priority: cfg.Scoring.PriorityWeight,
		},
		TieTolerance: cfg.Scoring.TieTolerance,
	}, scoring.SystemClock{})
	if err != nil {
		logger.Error("invalid scoring config", "error", err)
		os.Exit(1)
	}

	// Auth
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("auth.jwt_secret not set, using an ephemeral secret; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenManager(secret, cfg.Auth.Issuer, cfg.TokenTTL())
	if err != nil {
		logger.Error("failed to create token manager", "error", err)
		os.Exit(1)
	}

	// Deadline notifier
	if cfg.Notifier.Enabled {
		var m mailer.Mailer
		if cfg.Mail.SendgridAPIKey != "" {
			m = mailer.NewSendgridMailer(cfg.Mail.SendgridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
		} else {
			logger.Warn("sendgrid api key not set, reminder e-mails are only logged")
			m = mailer.NewLogMailer(logger)
		}
		n := notifier.New(db, m, hermesClient, notifier.Options{
			TickInterval: cfg.NotifierTick(),
			Lead:         cfg.NotifierLead(),
			BatchSize:    cfg.Notifier.BatchSize,
			MaxAttempts:  cfg.Notifier.MaxAttempts,
			OnOutcome:    metrics.ObserveReminderEmail,
		}, logger)
		n.Start(ctx)
		defer n.Stop()
		logger.Info("notifier started", "tick_interval", cfg.NotifierTick(), "lead", cfg.NotifierLead())
	}

	// API server
	router := api.NewRouter(api.Services{
		Store:     db,
		Tokens:    tokens,
		Engine:    engine,
		Chat:      chat,
		Reminders: reminders,
		Hermes:    hermesClient,
		Metrics:   metrics,
		Clock:     scoring.SystemClock{},
	}, api.RouterConfig{
		FrontendURL:  cfg.Server.FrontendURL,
		RateLimit:    cfg.Server.RateLimitPerWindow,
		RateWindow:   cfg.RateLimitWindow(),
		BcryptCost:   cfg.Auth.BcryptCost,
		FocusCompact: cfg.Scoring.FocusCompact,
		FocusFull:    cfg.Scoring.FocusFull,
	}, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(reg),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
