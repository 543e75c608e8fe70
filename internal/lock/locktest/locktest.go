// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package locktest holds behaviour tests shared by every lock.Store
// implementation (memory, PostgreSQL, Valkey).
package locktest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"guidepress/internal/lock"
	"guidepress/internal/models"
)

// Lease used by the shared tests. Stores must honour arbitrary leases.
const Lease = 60 * time.Second

// NewKey returns a key no other test uses, so tests can share a database.
func NewKey() models.LockKey {
	return models.LockKey{ContentType: models.ContentTypeGuide, ContentID: "test-" + uuid.NewString()}
}

// RunStoreTests exercises the Store contract against the store returned by
// newStore. Time is passed explicitly so no test sleeps.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) lock.Store) {
	ctx := context.Background()
	alice := models.Editor{UserID: "alice-" + uuid.NewString()[:8], Username: "alice"}
	bob := models.Editor{UserID: "bob-" + uuid.NewString()[:8], Username: "bob"}

	t.Run("acquire free key", func(t *testing.T) {
		s := newStore(t)
		key := NewKey()
		now := time.Now().Truncate(time.Millisecond)

		l, ok, err := s.TryAcquire(ctx, key, alice, now, Lease)
		if err != nil {
			t.Fatalf("TryAcquire: %v", err)
		}
		if !ok {
			t.Fatal("expected acquire on a free key to succeed")
		}
		if l.UserID != alice.UserID || l.Username != alice.Username {
			t.Errorf("holder = %s/%s, want %s/%s", l.UserID, l.Username, alice.UserID, alice.Username)
		}
		if !l.ExpiresAt.Equal(now.Add(Lease)) {
			t.Errorf("ExpiresAt = %v, want %v", l.ExpiresAt, now.Add(Lease))
		}
		t.Cleanup(func() { s.Release(ctx, key, alice.UserID) })
	})

	t.Run("conflict returns holder", func(t *testing.T) {
		s := newStore(t)
		key := NewKey()
		now := time.Now()
		t.Cleanup(func() { s.Release(ctx, key, alice.UserID) })

		if _, ok, err := s.TryAcquire(ctx, key, alice, now, Lease); err != nil || !ok {
			t.Fatalf("first acquire: ok=%v err=%v", ok, err)
		}
		l, ok, err := s.TryAcquire(ctx, key, bob, now.Add(time.Second), Lease)
		if err != nil {
			t.Fatalf("second acquire: %v", err)
		}
		if ok {
			t.Fatal("second user must not steal a live lock")
		}
		if l.UserID != alice.UserID {
			t.Errorf("reported holder = %q, want %q", l.UserID, alice.UserID)
		}
	})

	t.Run("re-entrant acquire refreshes", func(t *testing.T) {
		s := newStore(t)
		key := NewKey()
		t0 := time.Now().Truncate(time.Millisecond)
		t.Cleanup(func() { s.Release(ctx, key, alice.UserID) })

		first, _, _ := s.TryAcquire(ctx, key, alice, t0, Lease)
		t1 := t0.Add(20 * time.Second)
		second, ok, err := s.TryAcquire(ctx, key, alice, t1, Lease)
		if err != nil || !ok {
			t.Fatalf("re-acquire: ok=%v err=%v", ok, err)
		}
		if !second.AcquiredAt.Equal(first.AcquiredAt) {
			t.Errorf("AcquiredAt changed from %v to %v", first.AcquiredAt, second.AcquiredAt)
		}
		if !second.ExpiresAt.Equal(t1.Add(Lease)) {
			t.Errorf("ExpiresAt = %v, want %v", second.ExpiresAt, t1.Add(Lease))
		}
	})

	t.Run("expired lock is reclaimable", func(t *testing.T) {
		s := newStore(t)
		key := NewKey()
		t0 := time.Now()
		t.Cleanup(func() { s.Release(ctx, key, bob.UserID) })

		s.TryAcquire(ctx, key, alice, t0, Lease)
		if _, ok, _ := s.TryAcquire(ctx, key, bob, t0.Add(Lease-time.Second), Lease); ok {
			t.Fatal("lock reclaimed before expiry")
		}
		l, ok, err := s.TryAcquire(ctx, key, bob, t0.Add(Lease+time.Second), Lease)
		if err != nil || !ok {
			t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
		}
		if l.UserID != bob.UserID {
			t.Errorf("holder = %q, want %q", l.UserID, bob.UserID)
		}
	})

	t.Run("renew requires ownership", func(t *testing.T) {
		s := newStore(t)
		key := NewKey()
		t0 := time.Now().Truncate(time.Millisecond)
		t.Cleanup(func() { s.Release(ctx, key, alice.UserID) })

		s.TryAcquire(ctx, key, alice, t0, Lease)

		if _, ok, err := s.Renew(ctx, key, bob.UserID, t0.Add(time.Second), Lease); err != nil || ok {
			t.Errorf("renew by non-owner: ok=%v err=%v, want false", ok, err)
		}
		t1 := t0.Add(30 * time.Second)
		l, ok, err := s.Renew(ctx, key, alice.UserID, t1, Lease)
		if err != nil || !ok {
			t.Fatalf("renew by owner: ok=%v err=%v", ok, err)
		}
		if !l.ExpiresAt.Equal(t1.Add(Lease)) {
			t.Errorf("ExpiresAt = %v, want %v", l.ExpiresAt, t1.Add(Lease))
		}
		if _, ok, _ := s.Renew(ctx, key, alice.UserID, t1.Add(Lease+time.Second), Lease); ok {
			t.Error("renew of an expired lock must fail")
		}
		if _, ok, _ := s.Renew(ctx, NewKey(), alice.UserID, t1, Lease); ok {
			t.Error("renew of a missing lock must fail")
		}
	})

	t.Run("release is idempotent and owner-only", func(t *testing.T) {
		s := newStore(t)
		key := NewKey()
		now := time.Now()
		t.Cleanup(func() { s.Release(ctx, key, alice.UserID) })

		s.TryAcquire(ctx, key, alice, now, Lease)

		if err := s.Release(ctx, key, bob.UserID); err != nil {
			t.Fatalf("release by non-owner: %v", err)
		}
		if _, ok, _ := s.Get(ctx, key, now); !ok {
			t.Fatal("non-owner release removed the lock")
		}
		if err := s.Release(ctx, key, alice.UserID); err != nil {
			t.Fatalf("release: %v", err)
		}
		if err := s.Release(ctx, key, alice.UserID); err != nil {
			t.Fatalf("second release: %v", err)
		}
		if _, ok, _ := s.Get(ctx, key, now); ok {
			t.Error("lock still present after release")
		}
	})

	t.Run("list and sweep", func(t *testing.T) {
		s := newStore(t)
		live, stale := NewKey(), NewKey()
		t0 := time.Now()
		t.Cleanup(func() {
			s.Release(ctx, live, bob.UserID)
			s.Release(ctx, stale, alice.UserID)
		})

		s.TryAcquire(ctx, stale, alice, t0, Lease)
		s.TryAcquire(ctx, live, bob, t0.Add(30*time.Second), Lease)
		later := t0.Add(Lease + time.Second)

		active, err := s.ListActive(ctx, later)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		if containsKey(active, stale) {
			t.Error("expired lock listed as active")
		}
		if !containsKey(active, live) {
			t.Error("live lock missing from active list")
		}

		removed, err := s.DeleteExpired(ctx, later)
		if err != nil {
			t.Fatalf("DeleteExpired: %v", err)
		}
		if !containsKey(removed, stale) {
			t.Error("expired lock not reported by DeleteExpired")
		}
		if containsKey(removed, live) {
			t.Error("live lock removed by DeleteExpired")
		}
		if _, ok, _ := s.Get(ctx, live, later); !ok {
			t.Error("live lock gone after sweep")
		}
	})

	t.Run("concurrent acquire has one winner", func(t *testing.T) {
		s := newStore(t)
		key := NewKey()
		now := time.Now()

		const contenders = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
		)
		for i := 0; i < contenders; i++ {
			who := models.Editor{UserID: "user-" + uuid.NewString()[:8]}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := s.TryAcquire(ctx, key, who, now, Lease)
				if err != nil {
					t.Errorf("TryAcquire: %v", err)
					return
				}
				if ok {
					mu.Lock()
					winners = append(winners, who.UserID)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if len(winners) != 1 {
			t.Fatalf("winners = %d, want exactly 1", len(winners))
		}
		t.Cleanup(func() { s.Release(ctx, key, winners[0]) })
	})
}

func containsKey(locks []models.Lock, key models.LockKey) bool {
	for _, l := range locks {
		if l.Key() == key {
			return true
		}
	}
	return false
}
