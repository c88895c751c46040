// Package auth covers the two protection layers on the public surface:
// per-IP rate limiting on the subscribe endpoint and API key authentication
// on the admin endpoints.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// SubscribeLimit is the max subscribe requests per IP per window.
	SubscribeLimit int `mapstructure:"subscribe_limit"`
	// SubscribeWindow is the counting window for subscribe requests.
	SubscribeWindow time.Duration `mapstructure:"subscribe_window"`
}

// DefaultRateLimitConfig returns the default rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		SubscribeLimit:  10,
		SubscribeWindow: time.Hour,
	}
}

// ErrRateLimited is returned when a client has exceeded its request budget.
var ErrRateLimited = fmt.Errorf("too many requests")

// RateLimiter provides per-IP rate limiting using Redis counters.
type RateLimiter struct {
	client *redis.Client
	config RateLimitConfig
}

// NewRateLimiter creates a new RateLimiter with the given Redis client and
// configuration. A nil client disables rate limiting.
func NewRateLimiter(client *redis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// CheckSubscribe checks whether the given IP has exceeded the subscribe
// request limit for the current window. Returns ErrRateLimited if exceeded.
func (rl *RateLimiter) CheckSubscribe(ctx context.Context, ip string) error {
	if rl.client == nil {
		// No Redis client configured; skip rate limiting.
		return nil
	}

	key := fmt.Sprintf("ratelimit:subscribe:%s", ip)
	count, err := rl.client.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("check subscribe rate limit: %w", err)
	}

	if int(count) >= rl.config.SubscribeLimit {
		return ErrRateLimited
	}

	return nil
}

// RecordSubscribe increments the subscribe counter for the given IP. The
// counter expires with the window, giving fixed-window semantics.
func (rl *RateLimiter) RecordSubscribe(ctx context.Context, ip string) error {
	if rl.client == nil {
		return nil
	}

	key := fmt.Sprintf("ratelimit:subscribe:%s", ip)

	pipe := rl.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.config.SubscribeWindow)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("record subscribe attempt: %w", err)
	}

	return nil
}
