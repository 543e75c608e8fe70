// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// item.go provides a Valkey-backed cache of published items for the public
// read path. Only the public view is cached, so a cached entry can never
// carry a draft.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"guidepress/internal/models"
)

const (
	// itemKeyPrefix is the Valkey key prefix for cached published items.
	itemKeyPrefix = "item:"

	// DefaultItemTTL is how long a published item stays cached.
	DefaultItemTTL = 5 * time.Minute
)

// ItemCache caches the public view of published items by type and slug.
// Failures are logged and treated as misses.
type ItemCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewItemCache creates a new item cache backed by the given Valkey client.
func NewItemCache(client *redis.Client, ttl time.Duration) *ItemCache {
	if ttl == 0 {
		ttl = DefaultItemTTL
	}
	return &ItemCache{client: client, ttl: ttl}
}

// ItemKey returns the cache key for a published item.
func ItemKey(ct models.ContentType, slug string) string {
	return itemKeyPrefix + string(ct) + ":" + slug
}

// Get returns the cached public view of an item.
func (c *ItemCache) Get(ctx context.Context, ct models.ContentType, slug string) (*models.ContentItem, bool) {
	key := ItemKey(ct, slug)
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("item cache get error", "key", key, "error", err)
		return nil, false
	}

	var item models.ContentItem
	if err := json.Unmarshal(val, &item); err != nil {
		slog.Warn("item cache decode error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("item cache hit", "key", key)
	return &item, true
}

// Set stores the public view of item.
func (c *ItemCache) Set(ctx context.Context, item *models.ContentItem) {
	pv := item.PublicView()
	key := ItemKey(pv.Type, pv.Slug)
	data, err := json.Marshal(pv)
	if err != nil {
		slog.Warn("item cache encode error", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("item cache set error", "key", key, "error", err)
	}
}

// Invalidate removes cached entries for the given slugs of one type.
func (c *ItemCache) Invalidate(ctx context.Context, ct models.ContentType, slugs ...string) {
	if len(slugs) == 0 {
		return
	}
	keys := make([]string, 0, len(slugs))
	for _, s := range slugs {
		keys = append(keys, ItemKey(ct, s))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("item cache invalidate error", "keys", keys, "error", err)
		return
	}
	slog.Debug("item cache invalidated", "keys", keys)
}

// InvalidateAll removes all cached items by scanning for the prefix and
// returns how many entries were deleted.
func (c *ItemCache) InvalidateAll(ctx context.Context) int {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, itemKeyPrefix+"*", 100).Result()
		if err != nil {
			slog.Warn("item cache scan error", "error", err)
			return deleted
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				slog.Warn("item cache bulk delete error", "error", err)
			}
			deleted += int(n)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("item cache fully cleared", "deleted", deleted)
	}
	return deleted
}
