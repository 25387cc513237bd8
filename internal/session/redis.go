package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps flags as expiring keys, so sessions shared by several
// server instances see the same flags.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore connects to the Redis server at url (redis://host:port/db)
// and checks it is reachable.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: "folio:flag:"}, nil
}

func (r *RedisStore) key(sessionID, name string) string {
	return r.prefix + sessionID + ":" + name
}

func (r *RedisStore) GetFlag(ctx context.Context, sessionID, name string) (bool, error) {
	err := r.rdb.Get(ctx, r.key(sessionID, name)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get flag %s: %w", name, err)
	}
	return true, nil
}

func (r *RedisStore) SetFlag(ctx context.Context, sessionID, name string) error {
	if err := r.rdb.Set(ctx, r.key(sessionID, name), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("set flag %s: %w", name, err)
	}
	return nil
}

// Purge is a no-op: Redis expires flags on its own after the TTL.
func (r *RedisStore) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *RedisStore) Close() error { return r.rdb.Close() }
