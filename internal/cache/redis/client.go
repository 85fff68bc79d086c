package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dennis1984/BYWebApp/pkg/logger"
)

// adjustCounterScript adds ARGV[1] to an existing counter and clamps the
// result at zero. It returns -1 when the counter has not been seeded.
var adjustCounterScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if v < 0 then
	v = redis.call('INCRBY', KEYS[1], -v)
end
return v
`)

// seedCounterScript sets KEYS[1] to ARGV[1] unless the key exists or the
// generation at KEYS[2] no longer equals ARGV[2]. It returns 1 when it
// seeded.
var seedCounterScript = redis.NewScript(`
local g = redis.call('GET', KEYS[2]) or '0'
if g ~= ARGV[2] then
	return 0
end
return redis.call('SETNX', KEYS[1], ARGV[1])
`)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	return NewClientWithAddr(fmt.Sprintf("%s:%d", host, port), password, db)
}

func NewClientWithAddr(addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetJSON decodes the value at key into dest. It reports false on a miss.
func (c *Client) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	logger.Debug("Cache hit", zap.String("key", key))
	return true, nil
}

func (c *Client) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	logger.Debug("Cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Generation returns the current stamp of a generation counter. A counter
// that was never bumped is at zero.
func (c *Client) Generation(ctx context.Context, name string) (int64, error) {
	val, err := c.client.Get(ctx, generationKey(name)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get generation %s: %w", name, err)
	}
	return val, nil
}

func (c *Client) BumpGeneration(ctx context.Context, name string) (int64, error) {
	val, err := c.client.Incr(ctx, generationKey(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump generation %s: %w", name, err)
	}
	logger.Debug("Generation bumped", zap.String("name", name), zap.Int64("generation", val))
	return val, nil
}

func generationKey(name string) string {
	return "gen:" + name
}

// GetCounter reads an integer counter. It reports false when unseeded.
func (c *Client) GetCounter(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get counter %s: %w", key, err)
	}
	return val, true, nil
}

// SeedCounter sets key to value only if it does not exist yet and the
// generation genName is still at gen. A late seed therefore never
// overwrites increments that already landed, and a seed computed before an
// invalidation is dropped.
func (c *Client) SeedCounter(ctx context.Context, key string, value int64, genName string, gen int64) (bool, error) {
	n, err := seedCounterScript.Run(ctx, c.client, []string{key, generationKey(genName)}, value, gen).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to seed counter %s: %w", key, err)
	}
	return n == 1, nil
}

// AdjustCounter atomically adds delta to a seeded counter, flooring at
// zero. It reports false when the counter is not seeded.
func (c *Client) AdjustCounter(ctx context.Context, key string, delta int64) (int64, bool, error) {
	val, err := adjustCounterScript.Run(ctx, c.client, []string{key}, delta).Int64()
	if err != nil {
		return 0, false, fmt.Errorf("failed to adjust counter %s: %w", key, err)
	}
	if val < 0 {
		return 0, false, nil
	}
	return val, true, nil
}

// ReplaceList stores values as the list at key, replacing any previous one.
func (c *Client) ReplaceList(ctx context.Context, key string, values []any, ttl time.Duration) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replace list %s: %w", key, err)
	}
	return nil
}

// RangeList returns every element of the list at key. It reports false when
// the key does not exist.
func (c *Client) RangeList(ctx context.Context, key string) ([]string, bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check list %s: %w", key, err)
	}
	if n == 0 {
		return nil, false, nil
	}

	values, err := c.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to range list %s: %w", key, err)
	}
	return values, true, nil
}
