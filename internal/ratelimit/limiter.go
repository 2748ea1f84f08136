// Package ratelimit throttles requests per client key, such as a client IP.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting configuration.
type Config struct {
	RPS             float64       // Sustained requests per second per key
	Burst           int           // Burst size per key
	CleanupInterval time.Duration // How often to clean up idle limiters
}

// DefaultConfig suits the login form: a person never notices it, a password
// sprayer does.
var DefaultConfig = Config{
	RPS:             5,
	Burst:           20,
	CleanupInterval: time.Hour,
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter manages per-key rate limiting.
type RateLimiter struct {
	limiters map[string]*rateLimiterEntry
	mu       sync.Mutex
	config   Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// It starts a background goroutine for cleanup.
func NewRateLimiter(config Config) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig.CleanupInterval
	}
	rl := &RateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		config:   config,
		stopCh:   make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.cleanupLoop()

	return rl
}

// Allow reports whether a request for key is within its limit.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.GetLimiter(key).Allow()
}

// GetLimiter returns the rate limiter for key, creating one if necessary.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst),
		}
		rl.limiters[key] = entry
	}
	entry.lastUsed = time.Now()
	return entry.limiter
}

// Cleanup removes rate limiters that have been idle for longer than the cleanup interval.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.config.CleanupInterval)
	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to finish. It is safe
// to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
	rl.wg.Wait()
}

// Len returns the number of active rate limiters.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
