// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package editor composes the lock manager and the versioning engine into
// the operations exposed to the editor UI. Every mutation of an existing item
// requires the caller to hold its lock.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"guidepress/internal/lock"
	"guidepress/internal/models"
	"guidepress/internal/versioning"
)

var (
	// ErrLockNotHeld is returned when a save or delete arrives from a caller
	// without a live lock on the item.
	ErrLockNotHeld = lock.ErrNotHeld

	// ErrLockConflict is returned by AcquireLock when another editor holds
	// the lock. It is always wrapped in a *ConflictError.
	ErrLockConflict = errors.New("lock held by another editor")
)

// ConflictError carries the current holder of a contested lock.
type ConflictError struct {
	Holder models.Lock
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is being edited by %s", e.Holder.Key(), e.Holder.Username)
}

func (e *ConflictError) Unwrap() error { return ErrLockConflict }

// ItemCache caches the public view of published items by slug.
type ItemCache interface {
	Get(ctx context.Context, ct models.ContentType, slug string) (*models.ContentItem, bool)
	Set(ctx context.Context, item *models.ContentItem)
	Invalidate(ctx context.Context, ct models.ContentType, slugs ...string)
}

// ViewCounter records public reads of published items.
type ViewCounter interface {
	IncrementViews(ctx context.Context, id uuid.UUID) error
}

// SaveRequest is the body of a save: the changed fields plus the target
// status. DiscardDraft asks for the pending draft to be dropped explicitly.
type SaveRequest struct {
	Fields       models.ContentFields
	Status       models.ContentStatus
	DiscardDraft bool
}

// ItemView is an item as shown to editors, with the lock currently held on
// it, if any.
type ItemView struct {
	Item *models.ContentItem
	Lock *models.Lock
}

// Coordinator gates versioning operations behind the lock manager.
type Coordinator struct {
	locks   *lock.Manager
	engine  *versioning.Engine
	cache   ItemCache
	counter ViewCounter
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithItemCache enables caching of the public read path.
func WithItemCache(c ItemCache) Option {
	return func(co *Coordinator) { co.cache = c }
}

// WithViewCounter counts public reads.
func WithViewCounter(vc ViewCounter) Option {
	return func(co *Coordinator) { co.counter = vc }
}

// New creates a Coordinator.
func New(locks *lock.Manager, engine *versioning.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{locks: locks, engine: engine}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LockKey builds the lock key for a content item.
func LockKey(ct models.ContentType, id string) models.LockKey {
	return models.LockKey{ContentType: ct, ContentID: id}
}

// AcquireLock claims the edit lock for who. When another editor holds it a
// *ConflictError describing the holder is returned.
func (c *Coordinator) AcquireLock(ctx context.Context, ct models.ContentType, id string, who models.Editor) (models.Lock, error) {
	l, ok, err := c.locks.Acquire(ctx, LockKey(ct, id), who)
	if err != nil {
		return models.Lock{}, err
	}
	if !ok {
		return models.Lock{}, &ConflictError{Holder: l}
	}
	return l, nil
}

// Heartbeat extends who's lease. It returns lock.ErrLockLost once the lock
// has expired or been taken over.
func (c *Coordinator) Heartbeat(ctx context.Context, ct models.ContentType, id string, who models.Editor) (models.Lock, error) {
	return c.locks.Heartbeat(ctx, LockKey(ct, id), who)
}

// ReleaseLock drops who's lock. Releasing a lock held by someone else, or
// no lock at all, is a no-op.
func (c *Coordinator) ReleaseLock(ctx context.Context, ct models.ContentType, id string, who models.Editor) error {
	return c.locks.Release(ctx, LockKey(ct, id), who)
}

// ListLocks returns every live lock.
func (c *Coordinator) ListLocks(ctx context.Context) ([]models.Lock, error) {
	return c.locks.ListActive(ctx)
}

// Create adds a new draft item. No lock is involved since the item has no
// id until it exists.
func (c *Coordinator) Create(ctx context.Context, ct models.ContentType, f models.ContentFields, author models.Editor) (*models.ContentItem, error) {
	return c.engine.Create(ctx, ct, f, author)
}

// Save applies a draft save, publish or discard on behalf of who, who must
// hold the item's lock.
//
// A publish whose body equals the published body and that changes nothing
// else on a published item is the discard form: the pending draft is
// dropped instead of being republished.
func (c *Coordinator) Save(ctx context.Context, ct models.ContentType, id uuid.UUID, req SaveRequest, who models.Editor) (*versioning.Result, error) {
	status := req.Status
	if status == "" {
		status = models.ContentStatusDraft
	}
	if status != models.ContentStatusDraft && status != models.ContentStatusPublished {
		return nil, fmt.Errorf("%w: Status must be draft or published.", versioning.ErrInvalidInput)
	}

	var res *versioning.Result
	err := c.locks.Guard(ctx, LockKey(ct, id.String()), who, func(ctx context.Context) error {
		current, err := c.engine.Get(ctx, ct, id)
		if err != nil {
			return err
		}
		oldSlug := current.Slug

		switch {
		case req.DiscardDraft || (status == models.ContentStatusPublished && isDiscardForm(current, req.Fields)):
			item, err := c.engine.DiscardDraft(ctx, ct, id)
			if err != nil {
				return err
			}
			res = &versioning.Result{Item: item, ActionMessage: versioning.MsgDraftDiscarded}
		case status == models.ContentStatusPublished:
			res, err = c.engine.Publish(ctx, ct, id, req.Fields, who)
		default:
			res, err = c.engine.SaveDraft(ctx, ct, id, req.Fields, who)
		}
		if err != nil {
			return err
		}

		c.invalidate(ctx, ct, oldSlug, res.Item.Slug)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Delete removes an item held by who and then releases the lock.
func (c *Coordinator) Delete(ctx context.Context, ct models.ContentType, id uuid.UUID, who models.Editor) error {
	key := LockKey(ct, id.String())
	err := c.locks.Guard(ctx, key, who, func(ctx context.Context) error {
		current, err := c.engine.Get(ctx, ct, id)
		if err != nil {
			return err
		}
		if err := c.engine.Delete(ctx, ct, id); err != nil {
			return err
		}
		c.invalidate(ctx, ct, current.Slug)
		return nil
	})
	if err != nil {
		return err
	}

	if err := c.locks.Release(ctx, key, who); err != nil {
		slog.Warn("release lock after delete failed", "key", key.String(), "error", err)
	}
	return nil
}

// Get returns an item with its draft, plus the lock currently held on it.
func (c *Coordinator) Get(ctx context.Context, ct models.ContentType, id uuid.UUID) (*ItemView, error) {
	item, err := c.engine.Get(ctx, ct, id)
	if err != nil {
		return nil, err
	}
	view := &ItemView{Item: item}

	l, ok, err := c.locks.Get(ctx, LockKey(ct, id.String()))
	if err != nil {
		return nil, err
	}
	if ok {
		view.Lock = &l
	}
	return view, nil
}

// List returns every item of a type.
func (c *Coordinator) List(ctx context.Context, ct models.ContentType) ([]models.ContentItem, error) {
	return c.engine.List(ctx, ct)
}

// GetPublished returns the public view of a published item. Drafts are never
// returned, cached or not.
func (c *Coordinator) GetPublished(ctx context.Context, ct models.ContentType, slug string) (*models.ContentItem, error) {
	item, hit := c.cachedItem(ctx, ct, slug)
	if !hit {
		var err error
		item, err = c.engine.GetPublished(ctx, ct, slug)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			c.cache.Set(ctx, item)
		}
	}

	if c.counter != nil {
		if err := c.counter.IncrementViews(ctx, item.ID); err != nil {
			slog.Warn("increment views failed", "type", ct, "id", item.ID, "error", err)
		}
	}
	return item, nil
}

func (c *Coordinator) cachedItem(ctx context.Context, ct models.ContentType, slug string) (*models.ContentItem, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(ctx, ct, slug)
}

func (c *Coordinator) invalidate(ctx context.Context, ct models.ContentType, slugs ...string) {
	if c.cache != nil {
		c.cache.Invalidate(ctx, ct, slugs...)
	}
}

// isDiscardForm reports whether a publish of f on item only resubmits the
// published body. On an item that is not published it is a regular publish.
func isDiscardForm(item *models.ContentItem, f models.ContentFields) bool {
	if !item.IsPublished() || f.Body == nil || *f.Body != item.Body {
		return false
	}
	return !item.MetadataChanged(f)
}
