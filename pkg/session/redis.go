package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any transport failure talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisSnapshots is a Redis-backed SnapshotStore for multi-instance
// deployments: any frontend instance can seed a visitor that last
// resolved on another one.
type RedisSnapshots struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration

	mu     sync.Mutex
	closed bool
}

// RedisOption configures RedisSnapshots.
type RedisOption func(*redisConfig)

type redisConfig struct {
	prefix string
	ttl    time.Duration
}

// WithRedisPrefix sets the key namespace. Default: "hamrah:snap:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *redisConfig) { c.prefix = prefix }
}

// WithRedisTTL sets the snapshot TTL. Default: 24h.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(c *redisConfig) { c.ttl = ttl }
}

// NewRedisSnapshots creates a snapshot store on the given client. The
// client is not closed by Close; its lifecycle belongs to the caller.
func NewRedisSnapshots(client redis.UniversalClient, opts ...RedisOption) *RedisSnapshots {
	cfg := &redisConfig{
		prefix: "hamrah:snap:",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisSnapshots{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
	}
}

func (r *RedisSnapshots) key(sid string) string {
	return r.prefix + sid
}

func (r *RedisSnapshots) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Save implements SnapshotStore.
func (r *RedisSnapshots) Save(ctx context.Context, sid string, snap Snapshot) error {
	if r.isClosed() {
		return ErrStoreClosed
	}

	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(sid), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load implements SnapshotStore.
func (r *RedisSnapshots) Load(ctx context.Context, sid string) (*Snapshot, error) {
	if r.isClosed() {
		return nil, ErrStoreClosed
	}

	data, err := r.client.Get(ctx, r.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeSnapshot(data)
}

// Delete implements SnapshotStore.
func (r *RedisSnapshots) Delete(ctx context.Context, sid string) error {
	if r.isClosed() {
		return ErrStoreClosed
	}

	if err := r.client.Del(ctx, r.key(sid)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Close implements SnapshotStore. It marks the store closed but leaves
// the underlying client open for its owner.
func (r *RedisSnapshots) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
