package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mbellec/diocese-newsletter/internal/compose"
	"github.com/mbellec/diocese-newsletter/internal/config"
	"github.com/mbellec/diocese-newsletter/internal/dispatch"
	"github.com/mbellec/diocese-newsletter/internal/logger"
	"github.com/mbellec/diocese-newsletter/internal/queue"
	"github.com/mbellec/diocese-newsletter/internal/storage"
	"github.com/mbellec/diocese-newsletter/internal/transport"
)

// dispatchEventHandler turns a publish event into one dispatch batch.
type dispatchEventHandler struct {
	engine *dispatch.Engine
	log    zerolog.Logger
}

func (h *dispatchEventHandler) HandleEvent(ctx context.Context, evt *queue.PublishEvent) error {
	content := compose.Content{
		ID:      evt.ContentID,
		Title:   evt.Title,
		URL:     evt.URL,
		Excerpt: evt.Excerpt,
	}

	report, err := h.engine.SendBatch(ctx, content, evt.Languages)
	if err != nil {
		return fmt.Errorf("dispatch batch for content %s: %w", evt.ContentID, err)
	}

	h.log.Info().
		Str("event_id", evt.ID).
		Str("content_id", report.ContentID).
		Int("recipients", report.Recipients).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Msg("publish event dispatched")

	return nil
}

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting dispatch worker")

	// Initialize database connection pool.
	ctx := context.Background()
	db, err := storage.NewDB(ctx, cfg.Database.URL, cfg.Database.PoolMin, cfg.Database.PoolMax, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	store := storage.NewSubscriberStore(db)

	// Delivery transport for batch notifications.
	if err := cfg.Transport.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid transport configuration")
	}
	mail, err := transport.New(cfg.Transport, transport.NewHTTPClient(cfg.Transport.Timeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create transport")
	}
	log.Info().Str("transport", mail.Name()).Msg("delivery transport ready")

	composer := compose.NewComposer(cfg.Links.BaseURL, cfg.Links.SiteName)
	engine := dispatch.NewEngine(store, composer, mail, cfg.Dispatch, log)

	// Connect to Redis.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()

	// Build and start the worker pool.
	producer := queue.NewProducer(redisClient)
	dlq := queue.NewDLQ(redisClient, producer)
	retryStrategy := queue.NewRetryStrategy(cfg.Queue.MaxRetries)
	handler := &dispatchEventHandler{engine: engine, log: log}

	pool := queue.NewWorkerPool(redisClient, dlq, handler, retryStrategy, cfg.Queue, log)

	if err := pool.EnsureGroup(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer group")
	}

	pool.Start(ctx)

	// Wait for interrupt signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down dispatch worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool.Stop(shutdownCtx)

	log.Info().Msg("dispatch worker stopped")
}
