package queue

import "time"

// Config holds configuration for the publish-event queue.
type Config struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	WorkerCount     int           `mapstructure:"worker_count"`
	BlockTimeout    time.Duration `mapstructure:"block_timeout"`
	ProcessTimeout  time.Duration `mapstructure:"process_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// DefaultConfig returns a Config with sensible defaults. A single worker is
// enough: concurrency lives inside the dispatch engine, not across batches.
func DefaultConfig() Config {
	return Config{
		RedisAddr:       "localhost:6379",
		RedisDB:         0,
		WorkerCount:     1,
		BlockTimeout:    5 * time.Second,
		ProcessTimeout:  15 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		MaxRetries:      5,
	}
}
