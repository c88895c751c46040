package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mbellec/diocese-newsletter/internal/api"
	"github.com/mbellec/diocese-newsletter/internal/auth"
	"github.com/mbellec/diocese-newsletter/internal/compose"
	"github.com/mbellec/diocese-newsletter/internal/config"
	"github.com/mbellec/diocese-newsletter/internal/dispatch"
	"github.com/mbellec/diocese-newsletter/internal/logger"
	"github.com/mbellec/diocese-newsletter/internal/queue"
	"github.com/mbellec/diocese-newsletter/internal/storage"
	"github.com/mbellec/diocese-newsletter/internal/token"
	"github.com/mbellec/diocese-newsletter/internal/transport"
	"github.com/mbellec/diocese-newsletter/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromConfig(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting newsletter API server")

	// Connect to database
	ctx := context.Background()
	db, err := storage.NewDB(
		ctx,
		cfg.Database.URL,
		cfg.Database.PoolMin,
		cfg.Database.PoolMax,
		cfg.Database.ConnectTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	log.Info().Msg("database connection established")

	store := storage.NewSubscriberStore(db)

	// Delivery transport for confirmation emails and sync dispatch
	if err := cfg.Transport.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid transport configuration")
	}
	mail, err := transport.New(cfg.Transport, transport.NewHTTPClient(cfg.Transport.Timeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create transport")
	}
	log.Info().Str("transport", mail.Name()).Msg("delivery transport ready")

	composer := compose.NewComposer(cfg.Links.BaseURL, cfg.Links.SiteName)
	issuer := token.NewIssuer()
	wf := workflow.New(store, issuer, composer, mail, log)
	engine := dispatch.NewEngine(store, composer, mail, cfg.Dispatch, log)

	// Admin API key
	verifier, err := auth.NewAPIKeyVerifier(cfg.Admin.APIKeyHash)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid admin API key configuration")
	}

	// Redis backs the publish queue and the subscribe rate limiter. The API
	// degrades to sync-only dispatch and no rate limiting without it.
	var (
		producer *queue.Producer
		dlq      *queue.DLQ
		limiter  *auth.RateLimiter
	)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; async dispatch and rate limiting disabled")
		redisClient.Close()
		limiter = auth.NewRateLimiter(nil, cfg.RateLimit)
	} else {
		defer redisClient.Close()
		producer = queue.NewProducer(redisClient)
		dlq = queue.NewDLQ(redisClient, producer)
		limiter = auth.NewRateLimiter(redisClient, cfg.RateLimit)
	}

	router := api.NewRouter(api.RouterDeps{
		Workflow: wf,
		Engine:   engine,
		Producer: producer,
		DLQ:      dlq,
		DB:       db,
		Limiter:  limiter,
		Verifier: verifier,
		SiteName: cfg.Links.SiteName,
	}, log)

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down server")

	// Graceful shutdown with 30-second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
