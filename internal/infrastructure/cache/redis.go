package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PriceCache writes the latest observed price per venue instrument to Redis
// for read-side consumers. Keys are "price:<venue>:<symbol>".
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPriceCache wraps a Redis client with a TTL for price keys.
func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	return &PriceCache{client: client, ttl: ttl}
}

type cachedPrice struct {
	Price float64   `json:"price"`
	At    time.Time `json:"at"`
}

// SetLatestPrice stores the most recent price for the instrument.
func (c *PriceCache) SetLatestPrice(ctx context.Context, venue, symbol string, price float64, at time.Time) error {
	value, err := json.Marshal(cachedPrice{Price: price, At: at.UTC()})
	if err != nil {
		return err
	}
	key := fmt.Sprintf("price:%s:%s", venue, symbol)
	return c.client.Set(ctx, key, value, c.ttl).Err()
}
