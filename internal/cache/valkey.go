// Package cache provides Valkey (Redis-compatible) client initialization,
// a Valkey-backed lock table and the published-item cache for the public
// read path.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectValkey creates a Valkey client and verifies the connection with a ping.
func ConnectValkey(host, port, password string) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping: %w", err)
	}

	slog.Info("valkey connected", "addr", addr)
	return client, nil
}

// ServerTime returns a function reading the Valkey server clock via TIME.
func ServerTime(client *redis.Client) func(ctx context.Context) (time.Time, error) {
	return func(ctx context.Context) (time.Time, error) {
		now, err := client.Time(ctx).Result()
		if err != nil {
			return time.Time{}, fmt.Errorf("valkey time: %w", err)
		}
		return now, nil
	}
}
