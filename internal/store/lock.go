// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guidepress/internal/models"
)

// LockStore is the PostgreSQL lock table. Every ownership decision is made
// by a single statement so concurrent acquires across server instances
// resolve to exactly one winner.
type LockStore struct {
	db *sql.DB
}

// NewLockStore creates a new LockStore with the given database connection.
func NewLockStore(db *sql.DB) *LockStore {
	return &LockStore{db: db}
}

const lockColumns = `content_type, content_id, user_id, username, avatar,
	acquired_at, last_heartbeat_at, expires_at`

// acquireAttempts bounds the retry when the holder releases between the
// failed upsert and the holder lookup.
const acquireAttempts = 3

// TryAcquire inserts the lock, or takes over the row when it has expired or
// already belongs to who. AcquiredAt survives a re-entrant refresh.
func (s *LockStore) TryAcquire(ctx context.Context, key models.LockKey, who models.Editor, now time.Time, lease time.Duration) (models.Lock, bool, error) {
	for i := 0; i < acquireAttempts; i++ {
		l, err := scanLock(s.db.QueryRowContext(ctx, `
			INSERT INTO content_locks (`+lockColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
			ON CONFLICT (content_type, content_id) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				username = EXCLUDED.username,
				avatar = EXCLUDED.avatar,
				acquired_at = CASE
					WHEN content_locks.user_id = EXCLUDED.user_id
					 AND content_locks.expires_at >= EXCLUDED.last_heartbeat_at
					THEN content_locks.acquired_at
					ELSE EXCLUDED.acquired_at
				END,
				last_heartbeat_at = EXCLUDED.last_heartbeat_at,
				expires_at = EXCLUDED.expires_at
			WHERE content_locks.expires_at < EXCLUDED.last_heartbeat_at
			   OR content_locks.user_id = EXCLUDED.user_id
			RETURNING `+lockColumns,
			key.ContentType, key.ContentID, who.UserID, who.Username, who.Avatar,
			now, now.Add(lease),
		))
		if err == nil {
			return l, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.Lock{}, false, fmt.Errorf("acquire lock %s: %w", key, err)
		}

		// Someone else holds a live lock.
		holder, ok, err := s.Get(ctx, key, now)
		if err != nil {
			return models.Lock{}, false, err
		}
		if ok {
			return holder, false, nil
		}
	}
	return models.Lock{}, false, fmt.Errorf("acquire lock %s: holder changed %d times", key, acquireAttempts)
}

// Renew extends a live lock held by userID.
func (s *LockStore) Renew(ctx context.Context, key models.LockKey, userID string, now time.Time, lease time.Duration) (models.Lock, bool, error) {
	l, err := scanLock(s.db.QueryRowContext(ctx, `
		UPDATE content_locks
		SET last_heartbeat_at = $4, expires_at = $5
		WHERE content_type = $1 AND content_id = $2 AND user_id = $3
		  AND expires_at >= $4
		RETURNING `+lockColumns,
		key.ContentType, key.ContentID, userID, now, now.Add(lease),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lock{}, false, nil
	}
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("renew lock %s: %w", key, err)
	}
	return l, true, nil
}

// Release deletes the lock if userID holds it.
func (s *LockStore) Release(ctx context.Context, key models.LockKey, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM content_locks
		WHERE content_type = $1 AND content_id = $2 AND user_id = $3
	`, key.ContentType, key.ContentID, userID)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// Get returns the live lock on key, if any.
func (s *LockStore) Get(ctx context.Context, key models.LockKey, now time.Time) (models.Lock, bool, error) {
	l, err := scanLock(s.db.QueryRowContext(ctx, `
		SELECT `+lockColumns+`
		FROM content_locks
		WHERE content_type = $1 AND content_id = $2 AND expires_at >= $3
	`, key.ContentType, key.ContentID, now))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lock{}, false, nil
	}
	if err != nil {
		return models.Lock{}, false, fmt.Errorf("get lock %s: %w", key, err)
	}
	return l, true, nil
}

// ListActive returns every live lock, oldest first.
func (s *LockStore) ListActive(ctx context.Context, now time.Time) ([]models.Lock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lockColumns+`
		FROM content_locks
		WHERE expires_at >= $1
		ORDER BY acquired_at ASC, content_type, content_id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	return collectLocks(rows)
}

// DeleteExpired removes every lock expired at now and returns what it removed.
func (s *LockStore) DeleteExpired(ctx context.Context, now time.Time) ([]models.Lock, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM content_locks
		WHERE expires_at < $1
		RETURNING `+lockColumns, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired locks: %w", err)
	}
	return collectLocks(rows)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLock(row rowScanner) (models.Lock, error) {
	var l models.Lock
	err := row.Scan(
		&l.ContentType, &l.ContentID, &l.UserID, &l.Username, &l.Avatar,
		&l.AcquiredAt, &l.LastHeartbeatAt, &l.ExpiresAt,
	)
	return l, err
}

func collectLocks(rows *sql.Rows) ([]models.Lock, error) {
	defer rows.Close()

	var locks []models.Lock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}
