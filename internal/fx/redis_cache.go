package fx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const rateKeyPrefix = "exchange_rate:"

func rateKey(code string) string {
	return fmt.Sprintf("%s%s", rateKeyPrefix, code)
}

// RedisCache is a read-through cache in front of another Oracle. Each rate is
// stored under its own key with the same TTL.
type RedisCache struct {
	client *redis.Client
	source Oracle
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewRedisCache(client *redis.Client, source Oracle, ttl time.Duration, logger *zap.SugaredLogger) *RedisCache {
	return &RedisCache{client: client, source: source, ttl: ttl, logger: logger}
}

func (c *RedisCache) Rates(ctx context.Context) (map[string]decimal.Decimal, error) {
	cached, err := c.cached(ctx)
	if err != nil {
		c.logger.Warnw("rate cache read failed, falling back to source", "error", err)
	} else if len(cached) > 0 {
		return cached, nil
	}

	rates, err := c.source.Rates(ctx)
	if err != nil {
		return nil, fmt.Errorf("RedisCache.Rates: %w", err)
	}

	if err := c.store(ctx, rates); err != nil {
		c.logger.Warnw("rate cache write failed", "error", err)
	}
	return rates, nil
}

// Invalidate drops every cached rate so the next read goes to the source.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return fmt.Errorf("RedisCache.Invalidate: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("RedisCache.Invalidate: %w", err)
	}
	return nil
}

func (c *RedisCache) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, rateKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *RedisCache) cached(ctx context.Context) (map[string]decimal.Decimal, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		rate, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out[strings.TrimPrefix(keys[i], rateKeyPrefix)] = rate
	}
	return out, nil
}

func (c *RedisCache) store(ctx context.Context, rates map[string]decimal.Decimal) error {
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for code, r := range rates {
			pipe.Set(ctx, rateKey(code), r.String(), c.ttl)
		}
		return nil
	})
	return err
}
