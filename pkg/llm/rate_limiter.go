// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiterConfig configures the shared request rate limiter.
type RateLimiterConfig struct {
	// Enabled turns rate limiting on.
	Enabled bool

	// RequestsPerSecond is the sustained request rate. Default: 2.
	RequestsPerSecond float64

	// BurstCapacity is the bucket size. Default: 5.
	BurstCapacity int

	// MinDelay is the minimum spacing between requests. Default: 200ms.
	MinDelay time.Duration

	// MaxRetries bounds retries on 429 throttling errors. Default: 5.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubling per retry. Default: 1s.
	RetryBackoff time.Duration

	Logger *zap.Logger
}

// DefaultRateLimiterConfig returns conservative defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:           true,
		RequestsPerSecond: 2.0,
		BurstCapacity:     5,
		MinDelay:          200 * time.Millisecond,
		MaxRetries:        5,
		RetryBackoff:      time.Second,
		Logger:            zap.NewNop(),
	}
}

// RateLimiter is a token-bucket limiter with retry on throttling. The
// runtime issues LLM calls from one loop, so a blocking acquire keeps
// things simple; concurrent callers are still safe.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	lastCall   time.Time
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 2.0
	}
	if config.BurstCapacity <= 0 {
		config.BurstCapacity = 5
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}
	return &RateLimiter{
		config:     config,
		tokens:     float64(config.BurstCapacity),
		maxTokens:  float64(config.BurstCapacity),
		refillRate: config.RequestsPerSecond,
		lastRefill: time.Now(),
	}
}

// Do runs call under the rate limit, retrying with exponential backoff
// when the provider throttles.
func (rl *RateLimiter) Do(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	if rl == nil || !rl.config.Enabled {
		return call(ctx)
	}

	backoff := rl.config.RetryBackoff
	for attempt := 0; attempt <= rl.config.MaxRetries; attempt++ {
		if err := rl.wait(ctx); err != nil {
			return nil, err
		}

		result, err := call(ctx)
		if err == nil || !isThrottlingError(err) {
			return result, err
		}

		rl.config.Logger.Warn("request throttled, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", rl.config.MaxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts due to throttling", rl.config.MaxRetries+1)
}

// wait blocks until a bucket token is available and the minimum delay
// since the previous call has passed.
func (rl *RateLimiter) wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(rl.lastRefill).Seconds()
		rl.tokens = minFloat(rl.maxTokens, rl.tokens+elapsed*rl.refillRate)
		rl.lastRefill = now

		if rl.tokens >= 1.0 {
			if rl.config.MinDelay > 0 {
				if since := now.Sub(rl.lastCall); since < rl.config.MinDelay {
					rl.mu.Unlock()
					select {
					case <-time.After(rl.config.MinDelay - since):
						continue
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			rl.tokens -= 1.0
			rl.lastCall = now
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// isThrottlingError checks for HTTP 429 style rejections.
func isThrottlingError(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	return strings.Contains(text, "429") ||
		strings.Contains(text, "ThrottlingException") ||
		strings.Contains(text, "TooManyRequests") ||
		strings.Contains(text, "rate limit") ||
		strings.Contains(text, "throttle")
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
