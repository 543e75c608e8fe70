// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "time"

// LockKey identifies the content item a lock guards. ContentID is opaque so
// a key can be reserved before the item exists.
type LockKey struct {
	ContentType ContentType `json:"content_type"`
	ContentID   string      `json:"content_id"`
}

// String renders the key as "type/id", used in logs and cache keys.
func (k LockKey) String() string {
	return string(k.ContentType) + "/" + k.ContentID
}

// Lock is an exclusive, time-bounded edit claim on one content item.
// ExpiresAt is always LastHeartbeatAt plus the lease duration.
type Lock struct {
	ContentType     ContentType `json:"content_type"`
	ContentID       string      `json:"content_id"`
	UserID          string      `json:"user_id"`
	Username        string      `json:"username"`
	Avatar          string      `json:"avatar,omitempty"`
	AcquiredAt      time.Time   `json:"acquired_at"`
	LastHeartbeatAt time.Time   `json:"last_heartbeat_at"`
	ExpiresAt       time.Time   `json:"expires_at"`
}

// NewLock builds a fresh lock for key held by e.
func NewLock(key LockKey, e Editor, now time.Time, lease time.Duration) Lock {
	return Lock{
		ContentType:     key.ContentType,
		ContentID:       key.ContentID,
		UserID:          e.UserID,
		Username:        e.Username,
		Avatar:          e.Avatar,
		AcquiredAt:      now,
		LastHeartbeatAt: now,
		ExpiresAt:       now.Add(lease),
	}
}

// Key returns the key this lock guards.
func (l Lock) Key() LockKey {
	return LockKey{ContentType: l.ContentType, ContentID: l.ContentID}
}

// IsExpired returns true once now is past the lease expiry.
func (l Lock) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// HeldBy reports whether userID owns the lock.
func (l Lock) HeldBy(userID string) bool {
	return l.UserID == userID
}

// Holder returns the identity of the lock owner.
func (l Lock) Holder() Editor {
	return Editor{UserID: l.UserID, Username: l.Username, Avatar: l.Avatar}
}

// Refresh extends the lease from now. AcquiredAt is preserved; the holder
// identity is updated in case the username or avatar changed.
func (l Lock) Refresh(e Editor, now time.Time, lease time.Duration) Lock {
	l.Username = e.Username
	l.Avatar = e.Avatar
	l.LastHeartbeatAt = now
	l.ExpiresAt = now.Add(lease)
	return l
}
