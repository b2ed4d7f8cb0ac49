package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimiterConfig tunes a rate limiter.
type LimiterConfig struct {
	// MaxConcurrentRequests caps in-flight calls. Zero means unlimited.
	MaxConcurrentRequests int

	// MaxRPM caps requests per sliding one-minute window. Zero means
	// unlimited. Requires a Redis client.
	MaxRPM int
}

// RateLimiter combines an in-process concurrent-call gauge with an
// optional Redis sliding-window request counter. The contract is
// advisory: Acquire always records the call and reports whether it fits
// within the limits; callers treat false as backpressure advice rather
// than a hard rejection.
type RateLimiter struct {
	config LimiterConfig
	client *redis.Client
	key    string

	mu       sync.Mutex
	inFlight int

	now func() time.Time
}

// NewRateLimiter creates a limiter for one scope (typically a provider
// type). client may be nil when MaxRPM is zero.
func NewRateLimiter(scope string, config LimiterConfig, client *redis.Client) *RateLimiter {
	return &RateLimiter{
		config: config,
		client: client,
		key:    fmt.Sprintf("ratelimit:%s", scope),
		now:    time.Now,
	}
}

// Acquire records one call and reports whether it stays within both
// limits. Redis failures degrade to allowing the call; availability of
// the upstream matters more than exact accounting.
func (rl *RateLimiter) Acquire(ctx context.Context) bool {
	allowed := true

	rl.mu.Lock()
	rl.inFlight++
	if rl.config.MaxConcurrentRequests > 0 && rl.inFlight > rl.config.MaxConcurrentRequests {
		allowed = false
	}
	rl.mu.Unlock()

	if rl.config.MaxRPM > 0 && rl.client != nil {
		withinWindow, err := rl.recordWindowed(ctx)
		if err == nil && !withinWindow {
			allowed = false
		}
	}

	return allowed
}

// Release marks one in-flight call finished.
func (rl *RateLimiter) Release() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.inFlight > 0 {
		rl.inFlight--
	}
}

// recordWindowed adds the call to the sliding window and reports whether
// the window stayed within MaxRPM. Uses a Redis sorted set scored by
// timestamp.
func (rl *RateLimiter) recordWindowed(ctx context.Context) (bool, error) {
	now := rl.now()
	windowStart := now.Add(-1 * time.Minute)

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, rl.key, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, rl.key)
	pipe.ZAdd(ctx, rl.key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d:%d", now.UnixNano(), rl.inFlightSnapshot()),
	})
	pipe.Expire(ctx, rl.key, 2*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limit window update failed: %w", err)
	}

	// countCmd counted the window before this call was added.
	return int(countCmd.Val()) < rl.config.MaxRPM, nil
}

func (rl *RateLimiter) inFlightSnapshot() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.inFlight
}

// CurrentWindowCount returns the number of calls recorded in the current
// one-minute window.
func (rl *RateLimiter) CurrentWindowCount(ctx context.Context) (int, error) {
	if rl.client == nil {
		return 0, nil
	}

	windowStart := rl.now().Add(-1 * time.Minute)
	if err := rl.client.ZRemRangeByScore(ctx, rl.key, "0", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, fmt.Errorf("failed to trim rate limit window: %w", err)
	}

	count, err := rl.client.ZCard(ctx, rl.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit window: %w", err)
	}

	return int(count), nil
}

// Reset clears the sliding window and the in-flight gauge.
func (rl *RateLimiter) Reset(ctx context.Context) error {
	rl.mu.Lock()
	rl.inFlight = 0
	rl.mu.Unlock()

	if rl.client == nil {
		return nil
	}
	return rl.client.Del(ctx, rl.key).Err()
}

// LimiterStats is a point-in-time snapshot of a limiter.
type LimiterStats struct {
	InFlight              int `json:"in_flight"`
	MaxConcurrentRequests int `json:"max_concurrent_requests"`
	MaxRPM                int `json:"max_rpm"`
}

// Stats returns the limiter's current gauge and configuration.
func (rl *RateLimiter) Stats() LimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return LimiterStats{
		InFlight:              rl.inFlight,
		MaxConcurrentRequests: rl.config.MaxConcurrentRequests,
		MaxRPM:                rl.config.MaxRPM,
	}
}
