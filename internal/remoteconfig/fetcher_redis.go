package remoteconfig

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drallgood/book-catalog/internal/logger"
)

// DefaultRedisPrefix namespaces parameter keys in Redis
const DefaultRedisPrefix = "remote_config:"

// RedisGetter is the part of a Redis client the fetcher uses
type RedisGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// RedisFetcher reads parameters stored as plain Redis string keys
type RedisFetcher struct {
	client RedisGetter
	prefix string
	log    *logger.Logger
}

// NewRedisFetcher creates a fetcher reading <prefix><key> for every key
func NewRedisFetcher(client RedisGetter, prefix string, log *logger.Logger) *RedisFetcher {
	if log == nil {
		log = logger.Get()
	}
	return &RedisFetcher{
		client: client,
		prefix: prefix,
		log:    log.Component("redis_fetcher"),
	}
}

// Fetch implements Fetcher
func (f *RedisFetcher) Fetch(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = f.prefix + k
	}

	vals, err := f.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	values := make(map[string]string, len(keys))
	for i, v := range vals {
		if i >= len(keys) {
			break
		}
		switch s := v.(type) {
		case nil:
			// key does not exist
		case string:
			values[keys[i]] = s
		default:
			values[keys[i]] = fmt.Sprint(s)
		}
	}

	f.log.Debug("Fetched parameters from redis", map[string]interface{}{
		"requested": len(keys),
		"found":     len(values),
	})
	return values, nil
}

// Close closes the underlying client when it supports closing
func (f *RedisFetcher) Close() error {
	if c, ok := f.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// RedisPublisher writes parameters where a RedisFetcher reads them
type RedisPublisher struct {
	client redis.Cmdable
	prefix string
}

// NewRedisPublisher creates a publisher using prefix
func NewRedisPublisher(client redis.Cmdable, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Put stores value under key
func (p *RedisPublisher) Put(ctx context.Context, key, value string) error {
	if err := p.client.Set(ctx, p.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
