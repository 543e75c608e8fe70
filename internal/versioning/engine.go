// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package versioning applies the draft/publish workflow to content items:
// creating items, saving drafts, publishing, discarding drafts, and
// attributing non-author editors as contributors.
package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"guidepress/internal/models"
	"guidepress/internal/slug"
)

var (
	// ErrNotFound is returned for unknown content type/id pairs.
	ErrNotFound = errors.New("content not found")

	// ErrNoDraftToDiscard is returned when discarding on an item without
	// pending draft changes.
	ErrNoDraftToDiscard = errors.New("no draft to discard")

	// ErrInvalidInput wraps field validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSlugTaken is returned when another item of the same type already
	// uses the requested slug.
	ErrSlugTaken = errors.New("slug already in use")
)

// Action messages returned to the editor after a save.
const (
	MsgDraftSaved       = "Draft saved."
	MsgPublished        = "Published."
	MsgDraftDiscarded   = "Draft discarded."
	MsgContributorAdded = " You've been added as a contributor."
)

// Result is the outcome of a save or publish. IsContributor is true only on
// the call that first added the editor to the contributor set.
type Result struct {
	Item          *models.ContentItem
	IsContributor bool
	ActionMessage string
}

// Engine runs versioning operations against a Repository.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates an Engine over repo.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// Create inserts a new draft item authored by author. An empty slug is
// derived from the title.
func (e *Engine) Create(ctx context.Context, ct models.ContentType, f models.ContentFields, author models.Editor) (*models.ContentItem, error) {
	if f.Title == nil {
		return nil, invalid("Title is required.")
	}
	if err := validateFields(f); err != nil {
		return nil, err
	}

	now := e.now()
	item := &models.ContentItem{
		ID:           uuid.New(),
		Type:         ct,
		Status:       models.ContentStatusDraft,
		Visibility:   models.VisibilityPublic,
		AuthorID:     author.UserID,
		AuthorName:   author.Username,
		AuthorAvatar: author.Avatar,
		Contributors: []models.Contributor{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	item.ApplyDraft(f, now)
	item.Title = strings.TrimSpace(item.Title)
	if item.Slug == "" {
		item.Slug = slug.Generate(item.Title)
	}
	if item.Slug == "" {
		return nil, invalid("Title must contain at least one letter or digit.")
	}

	if err := e.repo.Insert(ctx, item); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}

	slog.Info("content created", "type", ct, "id", item.ID, "slug", item.Slug, "author_id", author.UserID)
	return item, nil
}

// SaveDraft stores the editor's changes without publishing. Draft items are
// edited in place; published items get the body as a draft shadow. Metadata
// on a published item only changes through Publish, so a draft save that
// would alter it is rejected.
func (e *Engine) SaveDraft(ctx context.Context, ct models.ContentType, id uuid.UUID, f models.ContentFields, editor models.Editor) (*Result, error) {
	if err := validateFields(f); err != nil {
		return nil, err
	}

	var attributed bool
	item, err := e.repo.Mutate(ctx, ct, id, func(item *models.ContentItem) error {
		if item.IsPublished() && item.MetadataChanged(f) {
			return invalid("Title, slug, description, thumbnail and visibility of a published item change only on publish.")
		}
		now := e.now()
		item.ApplyDraft(f, now)
		normalize(item)
		attributed = item.AddContributor(editor, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	slog.Info("draft saved", "type", ct, "id", id, "user_id", editor.UserID, "published", item.IsPublished())
	return newResult(item, attributed, MsgDraftSaved), nil
}

// Publish makes the submitted body public and absorbs any pending draft.
func (e *Engine) Publish(ctx context.Context, ct models.ContentType, id uuid.UUID, f models.ContentFields, editor models.Editor) (*Result, error) {
	if err := validateFields(f); err != nil {
		return nil, err
	}

	var attributed bool
	item, err := e.repo.Mutate(ctx, ct, id, func(item *models.ContentItem) error {
		now := e.now()
		item.ApplyPublish(f, now)
		normalize(item)
		attributed = item.AddContributor(editor, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	slog.Info("content published", "type", ct, "id", id, "user_id", editor.UserID)
	return newResult(item, attributed, MsgPublished), nil
}

// DiscardDraft drops pending draft changes on a published item.
func (e *Engine) DiscardDraft(ctx context.Context, ct models.ContentType, id uuid.UUID) (*models.ContentItem, error) {
	item, err := e.repo.Mutate(ctx, ct, id, func(item *models.ContentItem) error {
		if !item.ApplyDiscard(e.now()) {
			return ErrNoDraftToDiscard
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discard draft: %w", err)
	}

	slog.Info("draft discarded", "type", ct, "id", id)
	return item, nil
}

// Delete removes an item. Callers are responsible for lock checks.
func (e *Engine) Delete(ctx context.Context, ct models.ContentType, id uuid.UUID) error {
	if err := e.repo.Delete(ctx, ct, id); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	slog.Info("content deleted", "type", ct, "id", id)
	return nil
}

// Get returns an item with its draft, for editors.
func (e *Engine) Get(ctx context.Context, ct models.ContentType, id uuid.UUID) (*models.ContentItem, error) {
	item, err := e.repo.Get(ctx, ct, id)
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return item, nil
}

// GetPublished returns the public view of a published item by slug. Drafts
// and draft shadows are never exposed here.
func (e *Engine) GetPublished(ctx context.Context, ct models.ContentType, itemSlug string) (*models.ContentItem, error) {
	item, err := e.repo.GetBySlug(ctx, ct, itemSlug)
	if err != nil {
		return nil, fmt.Errorf("get published content: %w", err)
	}
	if !item.IsPublished() {
		return nil, fmt.Errorf("get published content: %w", ErrNotFound)
	}
	pv := item.PublicView()
	return &pv, nil
}

// List returns every item of a type for the editor listing.
func (e *Engine) List(ctx context.Context, ct models.ContentType) ([]models.ContentItem, error) {
	items, err := e.repo.List(ctx, ct)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	return items, nil
}

// normalize trims the title and regenerates an emptied slug.
func normalize(item *models.ContentItem) {
	item.Title = strings.TrimSpace(item.Title)
	if item.Slug == "" {
		item.Slug = slug.Generate(item.Title)
	}
}

func newResult(item *models.ContentItem, attributed bool, msg string) *Result {
	if attributed {
		msg += MsgContributorAdded
	}
	return &Result{Item: item, IsContributor: attributed, ActionMessage: msg}
}
