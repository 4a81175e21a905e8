// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-studio/internal/config"
	"github.com/unclebandit/campaign-studio/internal/controller"
	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/generation"
	"github.com/unclebandit/campaign-studio/internal/handler"
	"github.com/unclebandit/campaign-studio/internal/logging"
	"github.com/unclebandit/campaign-studio/internal/metrics"
	"github.com/unclebandit/campaign-studio/internal/queue"
	"github.com/unclebandit/campaign-studio/internal/repository"
	"github.com/unclebandit/campaign-studio/internal/scheduler"
	"github.com/unclebandit/campaign-studio/internal/service"
	"github.com/unclebandit/campaign-studio/internal/session"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Console: cfg.LogConsole})
	if err != nil {
		logger.Fatal().Err(err).Msg("server: invalid configuration")
	}
	if envErr != nil {
		logger.Info().Msg("server: no .env file found, relying on OS environment variables")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server: exited with error")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	log := logging.Component(logger, "server")

	var warnings []string
	for _, w := range cfg.Warnings() {
		log.Warn().Err(w).Msg("server: feature disabled")
		warnings = append(warnings, w.Error())
	}

	// Metrics
	var sink metrics.Sink = metrics.NewNoopSink()
	var registry *prometheus.Registry
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		sink = metrics.NewPrometheusSink(registry, logger)
	}

	// Vault
	var vault repository.VaultRepository
	v, err := repository.Open(ctx, cfg)
	switch {
	case errors.Is(err, appErrors.ErrVaultDisabled):
	case err != nil:
		// A down database is treated like a missing one: the studio still
		// generates, saves are disabled inline.
		log.Error().Err(err).Str("backend", cfg.VaultBackend).Msg("server: vault unavailable")
		warnings = append(warnings, "vault unavailable: "+err.Error())
	default:
		defer v.Close()
		if migrated, err := repository.MigrateIfSupported(ctx, v); err != nil {
			return err
		} else if migrated {
			log.Info().Str("backend", cfg.VaultBackend).Msg("server: schema up to date")
		}
		vault = v.VaultRepository
	}

	// Generation
	var generator service.Generator
	if cfg.GenerationEnabled() {
		provider, err := generation.NewGeminiProvider(ctx, cfg.GeminiKey, cfg.ImageModel, cfg.TextModel)
		if err != nil {
			log.Error().Err(err).Msg("server: gemini client unavailable")
			warnings = append(warnings, "generation unavailable: "+err.Error())
		} else {
			generator = generation.NewOrchestrator(
				generation.Config{Timeout: cfg.ProviderTimeout},
				provider,
				logger,
			)
		}
	}

	// Scheduler
	var lookup scheduler.LatestLookup
	if vault != nil {
		lookup = vault
	}
	planner := scheduler.NewPlanner(scheduler.Config{
		Location:          cfg.Location,
		AnchorAllStatuses: cfg.AnchorAllStatuses,
		LookupTimeout:     cfg.VaultTimeout,
	}, lookup, logger)

	// Events
	var q queue.Queue
	if cfg.AMQPURL != "" {
		aq, err := queue.DialAMQP(cfg.AMQPURL, logger)
		if err != nil {
			return err
		}
		defer aq.Close()
		q = aq
		log.Info().Msg("server: publishing scheduled posts to amqp")
	} else {
		mq := queue.NewInMemoryQueue(logger)
		if err := queue.StartScheduledPostSubscriber(mq, logger); err != nil {
			return err
		}
		q = mq
	}

	// Sessions
	var store session.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		store = session.NewRedisStore(client, cfg.SessionTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("server: sessions in redis")
	} else {
		store = session.NewMemoryStore(cfg.SessionTTL)
	}

	campaignService := &service.CampaignService{
		Vault:        vault,
		Generator:    generator,
		Planner:      planner,
		Queue:        q,
		Metrics:      sink,
		Logger:       logging.Component(logger, "service"),
		VaultTimeout: cfg.VaultTimeout,
	}
	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		QueueLimit:      cfg.QueueLimit,
	}

	campaignHandler := &handler.CampaignHandler{
		Service:       campaignService,
		Sessions:      store,
		Gate:          session.NewGate(cfg.AppPassword),
		Brand:         cfg.Brand,
		Warnings:      warnings,
		DashboardSize: cfg.DashboardSize,
		QueueLimit:    cfg.QueueLimit,
		Location:      cfg.Location,
		Logger:        logging.Component(logger, "handler"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/healthz", campaignController.Health)
	if registry != nil {
		r.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Mount("/", campaignHandler.Router(func(r chi.Router) {
		r.Route("/api", func(r chi.Router) {
			r.Get("/next-slot", campaignController.NextSlot)
			r.Get("/queue", campaignController.ListQueue)
			r.Post("/posts", campaignController.CreatePost)
		})
	}))

	recovery := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           recovery(handlers.CompressHandler(r)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server: listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case received := <-sig:
		log.Info().Str("signal", received.String()).Msg("server: shutting down")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server: shutdown incomplete")
	}
	if mq, ok := q.(*queue.InMemoryQueue); ok {
		mq.Drain()
	}
	log.Info().Msg("server: stopped")
	return nil
}
