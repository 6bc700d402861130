// Package cache holds the API-layer response cache. Discovery itself never
// caches: identical storage state yielding identical batches is what makes
// this safe to bolt on at the edge.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fathomdata/batchsource/internal/batch"
	"github.com/fathomdata/batchsource/internal/config"
)

const (
	discoveryKeyPrefix  = "discovery:result"
	defaultDiscoveryTTL = time.Minute
)

type DiscoveryCache interface {
	Get(ctx context.Context, key string) ([]batch.Batch, bool, error)
	Set(ctx context.Context, key string, batches []batch.Batch) error
}

type redisDiscoveryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopDiscoveryCache struct{}

func NewDiscoveryCache(cfg config.CacheConfig) (DiscoveryCache, error) {
	if !cfg.Enabled {
		return &noopDiscoveryCache{}, nil
	}

	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultDiscoveryTTL
	}

	return &redisDiscoveryCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopDiscoveryCache() DiscoveryCache {
	return &noopDiscoveryCache{}
}

func (c *redisDiscoveryCache) Get(ctx context.Context, key string) ([]batch.Batch, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var batches []batch.Batch
	if err := json.Unmarshal(payload, &batches); err != nil {
		return nil, false, fmt.Errorf("decode discovery cache: %w", err)
	}

	return batches, true, nil
}

func (c *redisDiscoveryCache) Set(ctx context.Context, key string, batches []batch.Batch) error {
	payload, err := json.Marshal(batches)
	if err != nil {
		return fmt.Errorf("encode discovery cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (n *noopDiscoveryCache) Get(ctx context.Context, key string) ([]batch.Batch, bool, error) {
	return nil, false, nil
}

func (n *noopDiscoveryCache) Set(ctx context.Context, key string, batches []batch.Batch) error {
	return nil
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}

	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// Key derives a stable cache key from the canonical JSON of a request, so
// two structurally identical requests share an entry.
func Key(request any) (string, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	hash := sha1.Sum(raw)
	return fmt.Sprintf("%s:%s", discoveryKeyPrefix, hex.EncodeToString(hash[:])), nil
}
