package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Claim sets key only if absent; returns true when this caller won the
// claim. Used for event dedup so check and set are one round trip.
func Claim(ctx context.Context, rdb *redis.Client, key, val string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, val, ttl).Result()
}
