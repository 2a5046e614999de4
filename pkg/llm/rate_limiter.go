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

// Package llm holds provider-independent helpers for the LLM adapters:
// request rate limiting and tool name sanitization.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RateLimiterConfig configures the LLM rate limiter.
type RateLimiterConfig struct {
	// Enabled turns rate limiting on. When false, Do calls through directly.
	Enabled bool

	// RequestsPerSecond is the bucket refill rate shared by all callers.
	RequestsPerSecond float64

	// TokensPerMinute is the token budget tracked in a sliding window.
	TokensPerMinute int64

	// BurstCapacity is the bucket size.
	BurstCapacity int

	// MinDelay is enforced between consecutive requests.
	MinDelay time.Duration

	// MaxRetries bounds retries on 429-class throttling errors.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per retry.
	RetryBackoff time.Duration

	// QueueTimeout is the longest a request may wait for a slot.
	QueueTimeout time.Duration

	Logger *zap.Logger
}

// DefaultRateLimiterConfig returns conservative defaults suitable for
// entry-tier API accounts.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:           true,
		RequestsPerSecond: 1.0,
		TokensPerMinute:   80000,
		BurstCapacity:     3,
		MinDelay:          500 * time.Millisecond,
		MaxRetries:        5,
		RetryBackoff:      2 * time.Second,
		QueueTimeout:      5 * time.Minute,
		Logger:            zap.NewNop(),
	}
}

// RateLimiter serializes LLM requests through a token bucket and retries
// throttled calls with exponential backoff.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time

	windowMu    sync.Mutex
	tokenWindow []tokenSample

	queue  chan *limitedCall
	stopCh chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup

	metricsMu sync.RWMutex
	metrics   RateLimiterMetrics
}

type tokenSample struct {
	at     time.Time
	tokens int64
}

type limitedCall struct {
	ctx      context.Context
	call     func(context.Context) (interface{}, error)
	resultCh chan callResult
}

type callResult struct {
	value interface{}
	err   error
}

// RateLimiterMetrics is a snapshot of limiter activity.
type RateLimiterMetrics struct {
	TotalRequests     int64
	ThrottledRequests int64
	DroppedRequests   int64
	TokensConsumed    int64
	LastThrottleTime  time.Time
}

// NewRateLimiter creates a limiter and starts its queue worker.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	rl := &RateLimiter{
		config:     config,
		tokens:     float64(config.BurstCapacity),
		maxTokens:  float64(config.BurstCapacity),
		refillRate: config.RequestsPerSecond,
		lastRefill: time.Now(),
		queue:      make(chan *limitedCall, config.BurstCapacity*2),
		stopCh:     make(chan struct{}),
	}
	rl.wg.Add(1)
	go rl.worker()
	return rl
}

// Do executes call under rate limiting, retrying on throttling errors.
func (rl *RateLimiter) Do(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	if !rl.config.Enabled {
		return call(ctx)
	}
	if rl.closed.Load() {
		return nil, fmt.Errorf("rate limiter stopped")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req := &limitedCall{ctx: ctx, call: call, resultCh: make(chan callResult, 1)}

	queueCtx, cancel := context.WithTimeout(ctx, rl.config.QueueTimeout)
	defer cancel()

	select {
	case rl.queue <- req:
	case <-queueCtx.Done():
		rl.bump(func(m *RateLimiterMetrics) { m.DroppedRequests++ })
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("rate limiter queue timeout after %v", rl.config.QueueTimeout)
	case <-rl.stopCh:
		return nil, fmt.Errorf("rate limiter stopped")
	}

	select {
	case res := <-req.resultCh:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-rl.stopCh:
		return nil, fmt.Errorf("rate limiter stopped")
	}
}

func (rl *RateLimiter) worker() {
	defer rl.wg.Done()
	for {
		select {
		case req := <-rl.queue:
			rl.process(req)
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) process(req *limitedCall) {
	for !rl.acquire() {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-req.ctx.Done():
			req.resultCh <- callResult{err: req.ctx.Err()}
			return
		case <-rl.stopCh:
			req.resultCh <- callResult{err: fmt.Errorf("rate limiter stopped")}
			return
		}
	}

	if rl.config.MinDelay > 0 {
		time.Sleep(rl.config.MinDelay)
	}

	value, err := rl.callWithRetry(req.ctx, req.call)
	select {
	case req.resultCh <- callResult{value: value, err: err}:
	case <-req.ctx.Done():
	case <-rl.stopCh:
	}
}

// callWithRetry retries throttled calls with doubling backoff.
func (rl *RateLimiter) callWithRetry(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	backoff := rl.config.RetryBackoff
	for attempt := 0; attempt <= rl.config.MaxRetries; attempt++ {
		value, err := call(ctx)
		rl.bump(func(m *RateLimiterMetrics) { m.TotalRequests++ })

		if err == nil || !IsThrottlingError(err) {
			return value, err
		}

		rl.bump(func(m *RateLimiterMetrics) {
			m.ThrottledRequests++
			m.LastThrottleTime = time.Now()
		})
		rl.config.Logger.Warn("llm request throttled, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", rl.config.MaxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		if attempt == rl.config.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-rl.stopCh:
			return nil, fmt.Errorf("rate limiter stopped during retry")
		}
	}
	return nil, fmt.Errorf("llm request failed after %d attempts due to throttling", rl.config.MaxRetries+1)
}

// acquire takes one token from the bucket, refilling for elapsed time.
func (rl *RateLimiter) acquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens = min(rl.maxTokens, rl.tokens+elapsed*rl.refillRate)
	rl.lastRefill = now

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

// RecordTokenUsage adds consumed tokens to the sliding one-minute window.
func (rl *RateLimiter) RecordTokenUsage(tokens int64) {
	rl.windowMu.Lock()
	defer rl.windowMu.Unlock()

	now := time.Now()
	rl.tokenWindow = append(rl.tokenWindow, tokenSample{at: now, tokens: tokens})

	cutoff := now.Add(-time.Minute)
	for i, sample := range rl.tokenWindow {
		if sample.at.After(cutoff) {
			rl.tokenWindow = rl.tokenWindow[i:]
			break
		}
	}
	rl.bump(func(m *RateLimiterMetrics) { m.TokensConsumed += tokens })
}

// TokenUsageLastMinute reports tokens consumed in the trailing minute.
func (rl *RateLimiter) TokenUsageLastMinute() int64 {
	rl.windowMu.Lock()
	defer rl.windowMu.Unlock()

	var total int64
	cutoff := time.Now().Add(-time.Minute)
	for _, sample := range rl.tokenWindow {
		if sample.at.After(cutoff) {
			total += sample.tokens
		}
	}
	return total
}

// Metrics returns a snapshot of limiter counters.
func (rl *RateLimiter) Metrics() RateLimiterMetrics {
	rl.metricsMu.RLock()
	defer rl.metricsMu.RUnlock()
	return rl.metrics
}

func (rl *RateLimiter) bump(update func(*RateLimiterMetrics)) {
	rl.metricsMu.Lock()
	update(&rl.metrics)
	rl.metricsMu.Unlock()
}

// Close stops the limiter. Idempotent.
func (rl *RateLimiter) Close() error {
	if !rl.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(rl.stopCh)
	rl.wg.Wait()
	return nil
}

// IsThrottlingError reports whether err looks like an HTTP 429 or provider
// throttling response.
func IsThrottlingError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "ThrottlingException") ||
		strings.Contains(msg, "TooManyRequests") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "throttle")
}
