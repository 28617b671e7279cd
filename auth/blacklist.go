package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist remembers logged-out bearer tokens until they expire. Redis is
// preferred; without it entries live in process memory.
type Blacklist struct {
	rc *redis.Client

	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewBlacklist(rc *redis.Client) *Blacklist {
	return &Blacklist{rc: rc, entries: make(map[string]time.Time)}
}

func (b *Blacklist) Add(ctx context.Context, token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := b.rc.Set(ctx, "jwt:blacklist:"+token, "1", ttl).Err(); err == nil {
			return
		}
	}
	b.mu.Lock()
	b.entries[token] = expiresAt
	b.mu.Unlock()
}

func (b *Blacklist) Contains(ctx context.Context, token string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if n, err := b.rc.Exists(ctx, "jwt:blacklist:"+token).Result(); err == nil && n > 0 {
			return true
		}
	}

	b.mu.RLock()
	expiresAt, ok := b.entries[token]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		b.mu.Lock()
		delete(b.entries, token)
		b.mu.Unlock()
		return false
	}
	return true
}
