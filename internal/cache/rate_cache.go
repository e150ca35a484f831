package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/yourierick/solifin/member-service/internal/config"
)

// NewRedisClient connects to Redis. It returns nil, nil when no host is
// configured; the conversion cache is optional.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	addr := cfg.Addr()
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// ConversionCache stores converted amounts keyed by amount and currency pair.
type ConversionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewConversionCache(rdb *redis.Client, ttl time.Duration) *ConversionCache {
	return &ConversionCache{rdb: rdb, ttl: ttl}
}

func conversionKey(amount decimal.Decimal, from, to string) string {
	return fmt.Sprintf("fx:%s:%s:%s", from, to, amount.String())
}

// Get returns the cached conversion and whether it was present.
func (c *ConversionCache) Get(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, bool, error) {
	val, err := c.rdb.Get(ctx, conversionKey(amount, from, to)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get conversion: %w", err)
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse cached conversion: %w", err)
	}
	return d, true, nil
}

func (c *ConversionCache) Set(ctx context.Context, amount decimal.Decimal, from, to string, converted decimal.Decimal) error {
	if err := c.rdb.Set(ctx, conversionKey(amount, from, to), converted.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("set conversion: %w", err)
	}
	return nil
}
