package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("transcript: store is closed")

// Redis is a transcript store backed by a Redis list per agent. It is
// suitable when several runtime processes share one transcript.
type Redis struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	maxEntries int
	mu         sync.RWMutex
	closed     bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for transcript keys (default: "ringlet:transcript:").
	Prefix string
	// TTL expires an agent's transcript after inactivity (0 = never expire).
	TTL time.Duration
	// MaxEntries bounds the per-agent history (default: DefaultMaxEntries).
	MaxEntries int
}

// NewRedis creates a Redis transcript store and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	r := NewRedisFromClient(client, cfg.Prefix, cfg.TTL)
	if cfg.MaxEntries > 0 {
		r.maxEntries = cfg.MaxEntries
	}
	return r, nil
}

// NewRedisFromClient creates a Redis store from an existing client.
// This is useful for testing with miniredis.
func NewRedisFromClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "ringlet:transcript:"
	}
	return &Redis{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
	}
}

func (r *Redis) key(agentID string) string {
	return r.prefix + agentID
}

// Append records one entry.
func (r *Redis) Append(ctx context.Context, e Entry) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrStoreClosed
	}
	r.mu.RUnlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	key := r.key(e.AgentID)
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-r.maxEntries), -1)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for an agent, newest first.
func (r *Redis) Recent(ctx context.Context, agentID string, limit int) ([]Entry, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	r.mu.RUnlock()

	if limit <= 0 || limit > r.maxEntries {
		limit = r.maxEntries
	}

	data, err := r.client.LRange(ctx, r.key(agentID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	// LRange returns oldest first; callers expect newest first.
	entries := make([]Entry, 0, len(data))
	for i := len(data) - 1; i >= 0; i-- {
		var e Entry
		if err := json.Unmarshal([]byte(data[i]), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// Ping checks if the Redis connection is alive.
func (r *Redis) Ping(ctx context.Context) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrStoreClosed
	}
	r.mu.RUnlock()

	return r.client.Ping(ctx).Err()
}
