package lockx

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock already held")

// Keyed serializes critical sections by string key. Release must always be
// called with the handle returned by the matching Acquire.
type Keyed interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type RedisKeyed struct {
	Client *redis.Client
	TTL    time.Duration
	Wait   time.Duration
	Poll   time.Duration
}

func NewRedisKeyed(client *redis.Client, ttl time.Duration) *RedisKeyed {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisKeyed{
		Client: client,
		TTL:    ttl,
		Wait:   ttl,
		Poll:   25 * time.Millisecond,
	}
}

func (k *RedisKeyed) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if k == nil || k.Client == nil {
		return nil, errors.New("redis client not initialized")
	}
	deadline := time.Now().Add(k.Wait)
	for {
		lock, ok, err := Acquire(ctx, k.Client, key, k.TTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return func(ctx context.Context) error {
				return Release(ctx, k.Client, lock)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockHeld
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(k.Poll):
		}
	}
}

// LocalKeyed is an in-process fallback used when Redis is not configured and
// in tests. It only serializes within a single process.
type LocalKeyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalKeyed() *LocalKeyed {
	return &LocalKeyed{locks: make(map[string]*sync.Mutex)}
}

func (k *LocalKeyed) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return func(context.Context) error {
		m.Unlock()
		return nil
	}, nil
}
