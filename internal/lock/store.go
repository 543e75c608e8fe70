// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package lock implements exclusive, lease-based edit locks on content items.
// The Manager holds the locking rules; a Store holds the lock table and must
// make each operation atomic per key.
package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"guidepress/internal/models"
)

// Store is the lock table. Implementations must apply every call atomically
// for its key so concurrent acquires resolve to exactly one winner. Errors
// are reserved for storage failures; ownership outcomes are reported
// through the boolean results.
type Store interface {
	// TryAcquire creates a lock for key held by who, or refreshes it when who
	// already holds it. A live lock held by someone else is returned with
	// false and is left untouched.
	TryAcquire(ctx context.Context, key models.LockKey, who models.Editor, now time.Time, lease time.Duration) (models.Lock, bool, error)

	// Renew extends a live lock held by userID. It returns false if the lock
	// is missing, expired, or held by another user.
	Renew(ctx context.Context, key models.LockKey, userID string, now time.Time, lease time.Duration) (models.Lock, bool, error)

	// Release removes the lock if userID holds it. Releasing a lock that is
	// gone or held by someone else is a no-op.
	Release(ctx context.Context, key models.LockKey, userID string) error

	// Get returns the live lock for key, if any.
	Get(ctx context.Context, key models.LockKey, now time.Time) (models.Lock, bool, error)

	// ListActive returns every lock that has not expired at now.
	ListActive(ctx context.Context, now time.Time) ([]models.Lock, error)

	// DeleteExpired removes every lock expired at now and returns them.
	DeleteExpired(ctx context.Context, now time.Time) ([]models.Lock, error)
}

// MemoryStore is a process-local Store backed by a mutex-guarded map. It is
// only safe when a single server instance owns the lock table.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[models.LockKey]models.Lock
}

// NewMemoryStore creates an empty in-memory lock table.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[models.LockKey]models.Lock)}
}

func (s *MemoryStore) TryAcquire(_ context.Context, key models.LockKey, who models.Editor, now time.Time, lease time.Duration) (models.Lock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.locks[key]; ok && !existing.IsExpired(now) {
		if !existing.HeldBy(who.UserID) {
			return existing, false, nil
		}
		refreshed := existing.Refresh(who, now, lease)
		s.locks[key] = refreshed
		return refreshed, true, nil
	}

	l := models.NewLock(key, who, now, lease)
	s.locks[key] = l
	return l, true, nil
}

func (s *MemoryStore) Renew(_ context.Context, key models.LockKey, userID string, now time.Time, lease time.Duration) (models.Lock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.locks[key]
	if !ok || existing.IsExpired(now) || !existing.HeldBy(userID) {
		return models.Lock{}, false, nil
	}
	refreshed := existing.Refresh(existing.Holder(), now, lease)
	s.locks[key] = refreshed
	return refreshed, true, nil
}

func (s *MemoryStore) Release(_ context.Context, key models.LockKey, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.locks[key]; ok && existing.HeldBy(userID) {
		delete(s.locks, key)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key models.LockKey, now time.Time) (models.Lock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.locks[key]
	if !ok || existing.IsExpired(now) {
		return models.Lock{}, false, nil
	}
	return existing, true, nil
}

func (s *MemoryStore) ListActive(_ context.Context, now time.Time) ([]models.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]models.Lock, 0, len(s.locks))
	for _, l := range s.locks {
		if !l.IsExpired(now) {
			active = append(active, l)
		}
	}
	sortLocks(active)
	return active, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) ([]models.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []models.Lock
	for key, l := range s.locks {
		if l.IsExpired(now) {
			removed = append(removed, l)
			delete(s.locks, key)
		}
	}
	sortLocks(removed)
	return removed, nil
}

// sortLocks orders locks by acquisition time, then key, for stable output.
func sortLocks(locks []models.Lock) {
	sort.Slice(locks, func(i, j int) bool {
		if !locks[i].AcquiredAt.Equal(locks[j].AcquiredAt) {
			return locks[i].AcquiredAt.Before(locks[j].AcquiredAt)
		}
		return locks[i].Key().String() < locks[j].Key().String()
	})
}
