// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"guidepress/internal/lock"
	"guidepress/internal/lock/locktest"
	"guidepress/internal/models"
)

// testValkeyClient returns a Redis client for tests.
// Skips if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, "item:*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestConnectValkey(t *testing.T) {
	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")

	client, err := ConnectValkey(host, port, os.Getenv("VALKEY_PASSWORD"))
	if err != nil {
		t.Skipf("skipping: Valkey not available: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if pong != "PONG" {
		t.Errorf("expected PONG, got %q", pong)
	}
}

func TestLockStore(t *testing.T) {
	locktest.RunStoreTests(t, func(t *testing.T) lock.Store {
		return NewLockStore(testValkeyClient(t), time.Minute)
	})
}

func TestLockStoreKeyExpiresInValkey(t *testing.T) {
	client := testValkeyClient(t)
	s := NewLockStore(client, time.Second)
	ctx := context.Background()
	key := locktest.NewKey()
	alice := models.Editor{UserID: "alice", Username: "alice"}

	if _, ok, err := s.TryAcquire(ctx, key, alice, time.Now(), 10*time.Second); err != nil || !ok {
		t.Fatalf("TryAcquire: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { s.Release(ctx, key, alice.UserID) })

	ttl, err := client.PTTL(ctx, lockKey(key)).Result()
	if err != nil {
		t.Fatalf("PTTL: %v", err)
	}
	if ttl <= 0 || ttl > 11*time.Second {
		t.Errorf("key TTL = %v, want lease plus grace (11s)", ttl)
	}
}

func newPublishedItem() *models.ContentItem {
	draft := "secret draft"
	return &models.ContentItem{
		ID:         uuid.New(),
		Type:       models.ContentTypeGuide,
		Slug:       "cache-test-" + uuid.NewString()[:8],
		Title:      "Cached",
		Body:       "public body",
		DraftBody:  &draft,
		Status:     models.ContentStatusPublished,
		Visibility: models.VisibilityPublic,
	}
}

func TestItemCacheSetAndGet(t *testing.T) {
	client := testValkeyClient(t)
	ic := NewItemCache(client, 1*time.Minute)
	ctx := context.Background()
	item := newPublishedItem()

	// Miss.
	if got, ok := ic.Get(ctx, item.Type, item.Slug); ok || got != nil {
		t.Error("expected cache miss")
	}

	ic.Set(ctx, item)

	got, ok := ic.Get(ctx, item.Type, item.Slug)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Body != "public body" || got.ID != item.ID {
		t.Errorf("cached item = %+v", got)
	}
	if got.DraftBody != nil {
		t.Error("draft leaked into the public cache")
	}
}

func TestItemCacheInvalidate(t *testing.T) {
	client := testValkeyClient(t)
	ic := NewItemCache(client, 1*time.Minute)
	ctx := context.Background()
	item := newPublishedItem()

	ic.Set(ctx, item)
	if _, ok := ic.Get(ctx, item.Type, item.Slug); !ok {
		t.Fatal("expected cache hit before invalidation")
	}

	ic.Invalidate(ctx, item.Type, item.Slug, "some-old-slug")

	if _, ok := ic.Get(ctx, item.Type, item.Slug); ok {
		t.Error("expected cache miss after invalidation")
	}
}

func TestItemCacheInvalidateAll(t *testing.T) {
	client := testValkeyClient(t)
	ic := NewItemCache(client, 1*time.Minute)
	ctx := context.Background()

	items := []*models.ContentItem{newPublishedItem(), newPublishedItem(), newPublishedItem()}
	for _, it := range items {
		ic.Set(ctx, it)
	}

	if n := ic.InvalidateAll(ctx); n < len(items) {
		t.Errorf("InvalidateAll deleted %d entries, want at least %d", n, len(items))
	}

	for _, it := range items {
		if _, ok := ic.Get(ctx, it.Type, it.Slug); ok {
			t.Errorf("expected miss for %q after InvalidateAll", it.Slug)
		}
	}
}

func TestServerTime(t *testing.T) {
	client := testValkeyClient(t)

	now, err := ServerTime(client)(context.Background())
	if err != nil {
		t.Fatalf("ServerTime: %v", err)
	}
	if d := time.Since(now); d > time.Minute || d < -time.Minute {
		t.Errorf("server time %v is %v away from local time", now, d)
	}
}

func TestItemKey(t *testing.T) {
	if got := ItemKey(models.ContentTypeNews, "patch-1"); got != "item:news:patch-1" {
		t.Errorf("ItemKey: got %q, want %q", got, "item:news:patch-1")
	}
}

func TestNewItemCacheDefaultTTL(t *testing.T) {
	client := testValkeyClient(t)

	// TTL = 0 should use default.
	ic := NewItemCache(client, 0)
	if ic.ttl != DefaultItemTTL {
		t.Errorf("expected DefaultItemTTL (%v), got %v", DefaultItemTTL, ic.ttl)
	}
}
