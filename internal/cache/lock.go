// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"guidepress/internal/models"
)

// lockKeyPrefix is the Valkey key prefix for edit locks.
const lockKeyPrefix = "lock:"

// lockRecord is the JSON value stored per lock. ExpiresMS duplicates
// ExpiresAt as epoch milliseconds so the scripts can compare it.
type lockRecord struct {
	models.Lock
	ExpiresMS int64 `json:"expires_ms"`
}

// acquireScript refreshes a live lock owned by the caller, reports a live
// lock owned by someone else, and otherwise installs the fresh record.
//
// KEYS[1] lock key
// ARGV: user_id, now_ms, fresh_json, ttl_ms, username, avatar,
// last_heartbeat_at, expires_at, expires_ms
var acquireScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if raw then
	local cur = cjson.decode(raw)
	if cur.expires_ms >= tonumber(ARGV[2]) then
		if cur.user_id ~= ARGV[1] then
			return {0, raw}
		end
		cur.username = ARGV[5]
		cur.avatar = ARGV[6]
		cur.last_heartbeat_at = ARGV[7]
		cur.expires_at = ARGV[8]
		cur.expires_ms = tonumber(ARGV[9])
		local out = cjson.encode(cur)
		redis.call('SET', KEYS[1], out, 'PX', ARGV[4])
		return {1, out}
	end
end
redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[4])
return {1, ARGV[3]}
`)

// renewScript extends a live lock owned by the caller.
//
// KEYS[1] lock key
// ARGV: user_id, now_ms, ttl_ms, last_heartbeat_at, expires_at, expires_ms
var renewScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return false
end
local cur = cjson.decode(raw)
if cur.user_id ~= ARGV[1] or cur.expires_ms < tonumber(ARGV[2]) then
	return false
end
cur.last_heartbeat_at = ARGV[4]
cur.expires_at = ARGV[5]
cur.expires_ms = tonumber(ARGV[6])
local out = cjson.encode(cur)
redis.call('SET', KEYS[1], out, 'PX', ARGV[3])
return out
`)

// releaseScript deletes the lock only when the caller owns it.
//
// KEYS[1] lock key
// ARGV: user_id
var releaseScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return 0
end
if cjson.decode(raw).user_id ~= ARGV[1] then
	return 0
end
return redis.call('DEL', KEYS[1])
`)

// reapScript deletes the lock if it has expired and returns it.
//
// KEYS[1] lock key
// ARGV: now_ms
var reapScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return false
end
if cjson.decode(raw).expires_ms >= tonumber(ARGV[1]) then
	return false
end
redis.call('DEL', KEYS[1])
return raw
`)

// LockStore is a lock table in Valkey. Ownership decisions run inside Lua
// scripts so each one is atomic on the server. Keys carry a PX expiry of
// lease plus grace, so abandoned locks disappear even if the sweeper is
// not running; the lease itself is enforced by the stored expiry.
type LockStore struct {
	client *redis.Client
	grace  time.Duration
}

// NewLockStore creates a Valkey lock table. grace is added to the lease
// when computing the key TTL.
func NewLockStore(client *redis.Client, grace time.Duration) *LockStore {
	if grace <= 0 {
		grace = time.Minute
	}
	return &LockStore{client: client, grace: grace}
}

func lockKey(key models.LockKey) string {
	return lockKeyPrefix + string(key.ContentType) + ":" + key.ContentID
}

func (s *LockStore) ttlMS(lease time.Duration) int64 {
	return (lease + s.grace).Milliseconds()
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *LockStore) TryAcquire(ctx context.Context, key models.LockKey, who models.Editor, now time.Time, lease time.Duration) (models.Lock, bool, error) {
	fresh := newRecord(models.NewLock(key, who, now.UTC(), lease))
	freshJSON, err := json.Marshal(fresh)
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("encode lock %s: %w", key, err)
	}

	// Fast path: nobody holds the key at all.
	ok, err := s.client.SetNX(ctx, lockKey(key), freshJSON, time.Duration(s.ttlMS(lease))*time.Millisecond).Result()
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if ok {
		return fresh.Lock, true, nil
	}

	expires := now.Add(lease)
	res, err := acquireScript.Run(ctx, s.client, []string{lockKey(key)},
		who.UserID, now.UnixMilli(), string(freshJSON), s.ttlMS(lease),
		who.Username, who.Avatar, stamp(now), stamp(expires), expires.UnixMilli(),
	).Slice()
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if len(res) != 2 {
		return models.Lock{}, false, fmt.Errorf("acquire lock %s: unexpected script reply %v", key, res)
	}

	won, _ := res[0].(int64)
	raw, _ := res[1].(string)
	l, err := decodeLock(raw)
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return l, won == 1, nil
}

func (s *LockStore) Renew(ctx context.Context, key models.LockKey, userID string, now time.Time, lease time.Duration) (models.Lock, bool, error) {
	expires := now.Add(lease)
	raw, err := renewScript.Run(ctx, s.client, []string{lockKey(key)},
		userID, now.UnixMilli(), s.ttlMS(lease), stamp(now), stamp(expires), expires.UnixMilli(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return models.Lock{}, false, nil
	}
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("renew lock %s: %w", key, err)
	}
	l, err := decodeLock(raw)
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("renew lock %s: %w", key, err)
	}
	return l, true, nil
}

func (s *LockStore) Release(ctx context.Context, key models.LockKey, userID string) error {
	if err := releaseScript.Run(ctx, s.client, []string{lockKey(key)}, userID).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

func (s *LockStore) Get(ctx context.Context, key models.LockKey, now time.Time) (models.Lock, bool, error) {
	raw, err := s.client.Get(ctx, lockKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Lock{}, false, nil
	}
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("get lock %s: %w", key, err)
	}
	l, err := decodeLock(raw)
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("get lock %s: %w", key, err)
	}
	if l.IsExpired(now) {
		return models.Lock{}, false, nil
	}
	return l, true, nil
}

// ListActive scans every lock key and returns the live ones, oldest first.
func (s *LockStore) ListActive(ctx context.Context, now time.Time) ([]models.Lock, error) {
	var locks []models.Lock
	err := s.scanLocks(ctx, func(key string) error {
		raw, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		l, err := decodeLock(raw)
		if err != nil {
			return err
		}
		if !l.IsExpired(now) {
			locks = append(locks, l)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}

	sort.Slice(locks, func(i, j int) bool {
		if !locks[i].AcquiredAt.Equal(locks[j].AcquiredAt) {
			return locks[i].AcquiredAt.Before(locks[j].AcquiredAt)
		}
		return locks[i].Key().String() < locks[j].Key().String()
	})
	return locks, nil
}

// DeleteExpired removes every lock expired at now. Each key is checked and
// deleted by a script, so a lock renewed mid-scan survives.
func (s *LockStore) DeleteExpired(ctx context.Context, now time.Time) ([]models.Lock, error) {
	var removed []models.Lock
	err := s.scanLocks(ctx, func(key string) error {
		raw, err := reapScript.Run(ctx, s.client, []string{key}, now.UnixMilli()).Text()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		l, err := decodeLock(raw)
		if err != nil {
			return err
		}
		removed = append(removed, l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete expired locks: %w", err)
	}
	return removed, nil
}

// scanLocks calls fn for every key under the lock prefix.
func (s *LockStore) scanLocks(ctx context.Context, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, lockKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func newRecord(l models.Lock) lockRecord {
	return lockRecord{Lock: l, ExpiresMS: l.ExpiresAt.UnixMilli()}
}

func decodeLock(raw string) (models.Lock, error) {
	var rec lockRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return models.Lock{}, fmt.Errorf("decode lock: %w", err)
	}
	return rec.Lock, nil
}
