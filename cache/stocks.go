package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"stock-trader/models"
)

const stocksVersionKey = "stocks:version"

// StockCache keeps the full catalog in Redis. The catalog is small and
// read-mostly, so it is stored as one JSON document per catalog version.
// Writes bump the version instead of deleting, so a reader that loaded the
// catalog before a write can only fill a key nobody reads any more.
type StockCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStockCache(client *redis.Client, ttl time.Duration) *StockCache {
	return &StockCache{client: client, ttl: ttl}
}

func stocksKey(version int64) string {
	return fmt.Sprintf("stocks:all:%d", version)
}

// Version returns the current catalog version; 0 before the first write.
func (c *StockCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, stocksVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Stocks returns the catalog cached for version; ok is false on a miss.
func (c *StockCache) Stocks(ctx context.Context, version int64) (stocks []models.Stock, ok bool, err error) {
	data, err := c.client.Get(ctx, stocksKey(version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(data, &stocks); err != nil {
		return nil, false, err
	}
	return stocks, true, nil
}

func (c *StockCache) SetStocks(ctx context.Context, version int64, stocks []models.Stock) error {
	data, err := json.Marshal(stocks)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, stocksKey(version), data, c.ttl).Err()
}

// Invalidate moves readers to a new version after a write. Entries of old
// versions expire with the TTL.
func (c *StockCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, stocksVersionKey).Err()
}
