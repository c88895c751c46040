// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mbellec/diocese-newsletter/internal/auth"
	"github.com/mbellec/diocese-newsletter/internal/dispatch"
	"github.com/mbellec/diocese-newsletter/internal/queue"
	"github.com/mbellec/diocese-newsletter/internal/transport"
)

// Config holds all application configuration.
type Config struct {
	API       APIConfig            `mapstructure:"api"`
	Database  DatabaseConfig       `mapstructure:"database"`
	Logging   LoggingConfig        `mapstructure:"logging"`
	Links     LinksConfig          `mapstructure:"links"`
	Admin     AdminConfig          `mapstructure:"admin"`
	Transport transport.Config     `mapstructure:"transport"`
	Dispatch  dispatch.Config      `mapstructure:"dispatch"`
	Queue     queue.Config         `mapstructure:"queue"`
	RateLimit auth.RateLimitConfig `mapstructure:"rate_limit"`
}

// APIConfig holds HTTP API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// LinksConfig holds the public site settings used to build confirmation and
// unsubscribe links.
type LinksConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	SiteName string `mapstructure:"site_name"`
}

// AdminConfig holds admin API authentication settings.
type AdminConfig struct {
	// APIKeyHash is the bcrypt hash of the admin API key.
	APIKeyHash string `mapstructure:"api_key_hash"`
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix NEWSLETTER_ override file values.
// For example, NEWSLETTER_DATABASE_URL overrides database.url.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("NEWSLETTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", 10*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)

	v.SetDefault("database.pool_min", 2)
	v.SetDefault("database.pool_max", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")

	d := dispatch.DefaultConfig()
	v.SetDefault("dispatch.concurrency", d.Concurrency)
	v.SetDefault("dispatch.send_timeout", d.SendTimeout)

	q := queue.DefaultConfig()
	v.SetDefault("queue.redis_addr", q.RedisAddr)
	v.SetDefault("queue.worker_count", q.WorkerCount)
	v.SetDefault("queue.block_timeout", q.BlockTimeout)
	v.SetDefault("queue.process_timeout", q.ProcessTimeout)
	v.SetDefault("queue.shutdown_timeout", q.ShutdownTimeout)
	v.SetDefault("queue.max_retries", q.MaxRetries)

	r := auth.DefaultRateLimitConfig()
	v.SetDefault("rate_limit.subscribe_limit", r.SubscribeLimit)
	v.SetDefault("rate_limit.subscribe_window", r.SubscribeWindow)
}
