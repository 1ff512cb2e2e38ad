package redisguard

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// DefaultKeyPrefix namespaces fingerprint claims.
	DefaultKeyPrefix = "factory-monitor:fp:"
	// DefaultTTL keeps a claim long enough to cover the duplicate tolerance and store latency.
	DefaultTTL = 10 * time.Second
)

// Client is the subset of the redis client used by the guard.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Guard claims event fingerprints with SETNX so concurrent submissions of the same
// event are not both inserted.
type Guard struct {
	client Client
	prefix string
	ttl    time.Duration
}

// Option configures the guard.
type Option func(*Guard)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(g *Guard) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// WithTTL overrides the claim lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// New constructs a guard.
func New(client Client, opts ...Option) (*Guard, error) {
	if client == nil {
		return nil, errors.New("redisguard: nil client")
	}
	g := &Guard{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NewClient builds a redis client.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Claim returns true when the caller owns the fingerprint.
func (g *Guard) Claim(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, errors.New("redisguard: empty fingerprint")
	}
	return g.client.SetNX(ctx, g.prefix+fingerprint, 1, g.ttl).Result()
}

// Release drops the claim on fingerprint so a retry can claim it again.
func (g *Guard) Release(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		return errors.New("redisguard: empty fingerprint")
	}
	return g.client.Del(ctx, g.prefix+fingerprint).Err()
}
