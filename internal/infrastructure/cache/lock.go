package cache

import (
	"context"
	"sync"
	"time"
)

// Locker adapts RedisCache locks to a key-based Acquire/Release API so the
// periodic sweep is exclusive across every process sharing the Redis instance.
// Tokens are remembered per key; a lock that outlives ttl expires on its own.
type Locker struct {
	cache *RedisCache
	ttl   time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewLocker creates a new Locker
func NewLocker(cache *RedisCache, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Locker{
		cache:  cache,
		ttl:    ttl,
		tokens: make(map[string]string),
	}
}

// Acquire takes the lock for key
func (l *Locker) Acquire(ctx context.Context, key string) (bool, error) {
	token, ok, err := l.cache.AcquireLock(ctx, key, l.ttl)
	if err != nil || !ok {
		return false, err
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Release gives up the lock for key if this Locker holds it
func (l *Locker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	return l.cache.ReleaseLock(ctx, key, token)
}
