// Package redislock implements a single-instance Redis lease lock
// (SET NX PX plus a compare-and-delete release).
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotAcquired = errors.New("lock held by another owner")
	ErrNotHeld     = errors.New("lock expired or taken over before release")
)

const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

type Locker struct {
	client   redis.Cmdable
	prefix   string
	ttl      time.Duration
	newToken func() string
}

func New(client redis.Cmdable, prefix string, ttl time.Duration) *Locker {
	return &Locker{
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		newToken: uuid.NewString,
	}
}

// Acquire takes the lock for key and returns the function that releases it.
// The lease expires after the configured TTL even if release is never called.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	k := l.prefix + key
	token := l.newToken()

	ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", k, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	release := func(ctx context.Context) error {
		n, err := l.client.Eval(ctx, releaseScript, []string{k}, token).Int64()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", k, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}
	return release, nil
}
