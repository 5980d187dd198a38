// Package ratelimit throttles webhook calls per provider and client IP.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Key scopes a limit to one provider and caller.
func Key(provider, clientIP string) string {
	return fmt.Sprintf("giftlist:webhook:%s:%s", provider, clientIP)
}

// Memory is a sliding window limiter for single-process deployments and as
// the fallback when Redis is unreachable.
type Memory struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{windows: make(map[string][]time.Time), now: time.Now}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-window)
	stamps := m.windows[key]
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	stamps = stamps[i:]

	if len(stamps) >= limit {
		m.windows[key] = stamps
		return Result{Allowed: false, ResetAt: stamps[0].Add(window)}, nil
	}
	stamps = append(stamps, now)
	m.windows[key] = stamps
	return Result{Allowed: true, Remaining: limit - len(stamps), ResetAt: stamps[0].Add(window)}, nil
}

// Redis is a fixed window counter shared by every instance.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	count := int(incr.Val())
	reset := time.Now().Add(ttl.Val())
	if count > limit {
		return Result{Allowed: false, ResetAt: reset}, nil
	}
	return Result{Allowed: true, Remaining: limit - count, ResetAt: reset}, nil
}

// Fallback uses the primary limiter and switches to the in-memory one while
// the primary keeps failing. It never fails a request because of the store.
type Fallback struct {
	primary  Limiter
	fallback *Memory
	logger   *slog.Logger

	mu        sync.Mutex
	failures  int
	successes int
	open      bool
}

const (
	failureThreshold = 5
	successThreshold = 3
)

func NewFallback(primary Limiter, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, fallback: NewMemory(), logger: logger}
}

func (f *Fallback) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if f.primary == nil {
		return f.fallback.Allow(ctx, key, limit, window)
	}
	res, err := f.primary.Allow(ctx, key, limit, window)
	if err != nil {
		f.recordFailure(ctx, err)
		return f.fallback.Allow(ctx, key, limit, window)
	}
	if f.recordSuccess() {
		return res, nil
	}
	return f.fallback.Allow(ctx, key, limit, window)
}

func (f *Fallback) recordFailure(ctx context.Context, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
	f.successes = 0
	if !f.open && f.failures >= failureThreshold {
		f.open = true
		if f.logger != nil {
			f.logger.WarnContext(ctx, "webhook rate limiter degraded to memory", "error", err)
		}
	}
}

// recordSuccess reports whether the primary result can be trusted again.
func (f *Fallback) recordSuccess() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		f.failures = 0
		return true
	}
	f.successes++
	if f.successes >= successThreshold {
		f.open = false
		f.failures = 0
		f.successes = 0
		return true
	}
	return false
}

// Degraded reports whether the in-memory fallback is in charge.
func (f *Fallback) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}
