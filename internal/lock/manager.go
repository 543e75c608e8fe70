// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"

	"guidepress/internal/models"
)

const (
	// DefaultLease is how long a lock survives without a heartbeat. Clients
	// beat every 30s, so one missed beat is tolerated.
	DefaultLease = 60 * time.Second

	// DefaultSweepInterval is how often expired locks are purged.
	DefaultSweepInterval = 10 * time.Second
)

var (
	// ErrLockLost is returned by Heartbeat when the caller no longer holds
	// the lock because it expired or was taken over.
	ErrLockLost = errors.New("lock lost")

	// ErrNotHeld is returned by Guard when a mutation arrives from a caller
	// that does not hold a live lock on the key.
	ErrNotHeld = errors.New("lock not held")
)

// Manager applies the locking rules on top of a Store: re-entrant acquire,
// owner-only heartbeat and release, and the background expiry sweep.
type Manager struct {
	store Store
	lease time.Duration
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLease overrides the lease duration.
func WithLease(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lease = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		lease: DefaultLease,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lease returns the configured lease duration.
func (m *Manager) Lease() time.Duration {
	return m.lease
}

// Acquire claims the lock on key for who. If who already holds it the lease
// is refreshed. When someone else holds a live lock, that lock is returned
// with false so the caller can show who is editing.
func (m *Manager) Acquire(ctx context.Context, key models.LockKey, who models.Editor) (models.Lock, bool, error) {
	l, ok, err := m.store.TryAcquire(ctx, key, who, m.now(), m.lease)
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if ok {
		slog.Debug("lock acquired", "key", key.String(), "user_id", who.UserID)
	} else {
		slog.Debug("lock conflict", "key", key.String(), "user_id", who.UserID, "holder", l.UserID)
	}
	return l, ok, nil
}

// Heartbeat extends the lease on a lock who still holds. It returns
// ErrLockLost if the lock expired or now belongs to someone else.
func (m *Manager) Heartbeat(ctx context.Context, key models.LockKey, who models.Editor) (models.Lock, error) {
	l, ok, err := m.store.Renew(ctx, key, who.UserID, m.now(), m.lease)
	if err != nil {
		return models.Lock{}, fmt.Errorf("renew lock %s: %w", key, err)
	}
	if !ok {
		return models.Lock{}, ErrLockLost
	}
	return l, nil
}

// Release drops who's lock on key. It is idempotent.
func (m *Manager) Release(ctx context.Context, key models.LockKey, who models.Editor) error {
	if err := m.store.Release(ctx, key, who.UserID); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	slog.Debug("lock released", "key", key.String(), "user_id", who.UserID)
	return nil
}

// Get returns the live lock on key, if any.
func (m *Manager) Get(ctx context.Context, key models.LockKey) (models.Lock, bool, error) {
	l, ok, err := m.store.Get(ctx, key, m.now())
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("get lock %s: %w", key, err)
	}
	return l, ok, nil
}

// ListActive returns all unexpired locks.
func (m *Manager) ListActive(ctx context.Context) ([]models.Lock, error) {
	locks, err := m.store.ListActive(ctx, m.now())
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	return locks, nil
}

// IsHeldBy reports whether userID holds a live lock on key.
func (m *Manager) IsHeldBy(ctx context.Context, key models.LockKey, userID string) (bool, error) {
	l, ok, err := m.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return ok && l.HeldBy(userID), nil
}

// Guard runs fn only if who holds the lock on key. Ownership is checked by
// renewing the lease right before fn runs, so a sweep cannot reclaim the
// lock while the mutation is in flight.
func (m *Manager) Guard(ctx context.Context, key models.LockKey, who models.Editor, fn func(ctx context.Context) error) error {
	_, ok, err := m.store.Renew(ctx, key, who.UserID, m.now(), m.lease)
	if err != nil {
		return fmt.Errorf("check lock %s: %w", key, err)
	}
	if !ok {
		return ErrNotHeld
	}
	return fn(ctx)
}

// Sweep removes every expired lock and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	removed, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("sweep locks: %w", err)
	}
	for _, l := range removed {
		slog.Info("expired lock removed",
			"key", l.Key().String(),
			"user_id", l.UserID,
			"username", l.Username,
			"last_heartbeat_at", l.LastHeartbeatAt,
		)
	}
	return len(removed), nil
}

// RunSweeper sweeps expired locks every interval until ctx is cancelled.
// Store failures are logged and the next attempt is delayed with backoff.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	boff := backoff.Backoff{
		Min: interval,
		Max: 5 * time.Minute,
	}

	slog.Info("lock sweeper started", "interval", interval.String(), "lease", m.lease.String())

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("lock sweeper stopped")
			return nil
		case <-timer.C:
		}

		next := interval
		if _, err := m.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			next = boff.Duration()
			slog.Error("lock sweep failed", "error", err, "retry_in", next.String())
		} else {
			boff.Reset()
		}
		timer.Reset(next)
	}
}
