// Package lock serializes wallet settlements across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"giftlist/pkg/platform/sentinel"
)

const (
	keyPrefix  = "giftlist:walletlock:"
	retryDelay = 50 * time.Millisecond
)

// release deletes the key only while it still carries our token, so an
// expired lock re-acquired by another worker is left alone.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a single-instance SET NX PX lock.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{client: client, ttl: ttl}
}

// Acquire blocks until the lock for key is taken, ctx is done or the TTL
// elapses. A lock still held at that point returns sentinel.ErrLockHeld.
func (l *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := keyPrefix + key
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire wallet lock: %w", err)
		}
		if ok {
			return func() {
				// Release with a fresh context; the caller's may already be cancelled.
				ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				_ = release.Run(ctx, l.client, []string{redisKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("wallet %s: %w", key, sentinel.ErrLockHeld)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), sentinel.ErrLockHeld)
		case <-time.After(retryDelay):
		}
	}
}
