// Package redis opens go-redis clients.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// New connects to the Redis server at addr and verifies the connection with PING.
func New(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	const op = "redis.New"

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}
