// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package versioning

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"guidepress/internal/models"
)

// Repository persists content items. Mutate is the only write path for
// existing items: it loads the item, lets fn change it, and stores the
// result atomically, so two mutations of the same item never interleave.
type Repository interface {
	Insert(ctx context.Context, item *models.ContentItem) error
	Get(ctx context.Context, ct models.ContentType, id uuid.UUID) (*models.ContentItem, error)
	GetBySlug(ctx context.Context, ct models.ContentType, slug string) (*models.ContentItem, error)
	List(ctx context.Context, ct models.ContentType) ([]models.ContentItem, error)
	Mutate(ctx context.Context, ct models.ContentType, id uuid.UUID, fn func(item *models.ContentItem) error) (*models.ContentItem, error)
	Delete(ctx context.Context, ct models.ContentType, id uuid.UUID) error
}

// MemoryRepository is an in-process Repository, used in tests and when the
// server runs without a database.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.ContentItem
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]*models.ContentItem)}
}

func (r *MemoryRepository) Insert(_ context.Context, item *models.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slugTakenLocked(item.Type, item.Slug, item.ID) {
		return ErrSlugTaken
	}
	r.items[item.ID] = item.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, ct models.ContentType, id uuid.UUID) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.Type != ct {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

func (r *MemoryRepository) GetBySlug(_ context.Context, ct models.ContentType, slug string) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		if item.Type == ct && item.Slug == slug {
			return item.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// List returns items of the given type, newest first.
func (r *MemoryRepository) List(_ context.Context, ct models.ContentType) ([]models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.ContentItem
	for _, item := range r.items {
		if item.Type == ct {
			out = append(out, *item.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Mutate(_ context.Context, ct models.ContentType, id uuid.UUID, fn func(item *models.ContentItem) error) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok || current.Type != ct {
		return nil, ErrNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if r.slugTakenLocked(ct, working.Slug, id) {
		return nil, ErrSlugTaken
	}
	r.items[id] = working
	return working.Clone(), nil
}

func (r *MemoryRepository) Delete(_ context.Context, ct models.ContentType, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.Type != ct {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// slugTakenLocked reports whether another item of type ct already uses slug.
func (r *MemoryRepository) slugTakenLocked(ct models.ContentType, slug string, self uuid.UUID) bool {
	for id, item := range r.items {
		if id != self && item.Type == ct && item.Slug == slug {
			return true
		}
	}
	return false
}
