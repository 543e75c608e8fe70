// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentType distinguishes guides from news articles. Both share the
// content_items table and the same editing workflow.
type ContentType string

const (
	ContentTypeGuide ContentType = "guide"
	ContentTypeNews  ContentType = "news"
)

// ContentTypes lists every content type the editor accepts, in display order.
var ContentTypes = []ContentType{ContentTypeGuide, ContentTypeNews}

// ParseContentType validates a content type taken from a URL path segment.
func ParseContentType(s string) (ContentType, error) {
	for _, ct := range ContentTypes {
		if string(ct) == s {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

// ContentStatus represents the publishing state of a content item.
// Items start as drafts and never go back to draft once published.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
)

// Visibility controls whether a published item shows up in public listings.
// It is independent of the publishing status.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
)

// Valid reports whether v is one of the known visibility values.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityUnlisted
}

// Editor is the identity of the person acting on content or locks. It is
// captured from the session and copied into locks and contributor entries.
type Editor struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Contributor records a non-author who edited a content item. Entries are
// unique by UserID and kept in the order they were first added.
type Contributor struct {
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Avatar        string    `json:"avatar,omitempty"`
	ContributedAt time.Time `json:"contributed_at"`
}

// ContentItem is a guide or news article. Body holds the published text
// (or the working copy while the item is still a draft). DraftBody holds
// unpublished edits layered on top of a published item and is nil otherwise.
type ContentItem struct {
	ID           uuid.UUID     `json:"id"`
	Type         ContentType   `json:"type"`
	Slug         string        `json:"slug"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Thumbnail    string        `json:"thumbnail,omitempty"`
	Body         string        `json:"content"`
	DraftBody    *string       `json:"draft_content"`
	Status       ContentStatus `json:"status"`
	Visibility   Visibility    `json:"visibility"`
	AuthorID     string        `json:"author_id"`
	AuthorName   string        `json:"author_name"`
	AuthorAvatar string        `json:"author_avatar,omitempty"`
	Contributors []Contributor `json:"contributors"`
	ViewCount    int64         `json:"view_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ContentFields carries the editable fields of a save, publish or create
// request. Nil pointers leave the current value unchanged.
type ContentFields struct {
	Title       *string     `json:"title,omitempty"`
	Slug        *string     `json:"slug,omitempty"`
	Description *string     `json:"description,omitempty"`
	Thumbnail   *string     `json:"thumbnail,omitempty"`
	Body        *string     `json:"content,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
}

// IsPublished returns true if the content item is in published status.
func (c *ContentItem) IsPublished() bool {
	return c.Status == ContentStatusPublished
}

// HasDraft returns true if a published item carries unpublished edits.
func (c *ContentItem) HasDraft() bool {
	return c.DraftBody != nil
}

// IsAuthor reports whether userID created this item.
func (c *ContentItem) IsAuthor(userID string) bool {
	return c.AuthorID == userID
}

// HasContributor reports whether userID is already in the contributor set.
func (c *ContentItem) HasContributor(userID string) bool {
	for _, ct := range c.Contributors {
		if ct.UserID == userID {
			return true
		}
	}
	return false
}

// NeedsAttribution reports whether an edit by e should add e as a
// contributor: the editor is not the author and not yet listed.
func (c *ContentItem) NeedsAttribution(e Editor) bool {
	return !c.IsAuthor(e.UserID) && !c.HasContributor(e.UserID)
}

// AddContributor appends e to the contributor set if NeedsAttribution holds.
// It returns true when an entry was added.
func (c *ContentItem) AddContributor(e Editor, now time.Time) bool {
	if !c.NeedsAttribution(e) {
		return false
	}
	c.Contributors = append(c.Contributors, Contributor{
		UserID:        e.UserID,
		Username:      e.Username,
		Avatar:        e.Avatar,
		ContributedAt: now,
	})
	return true
}

// applyMetadata copies every non-nil metadata field (everything except the
// body) onto the item.
func (c *ContentItem) applyMetadata(f ContentFields) {
	if f.Title != nil {
		c.Title = *f.Title
	}
	if f.Slug != nil {
		c.Slug = *f.Slug
	}
	if f.Description != nil {
		c.Description = *f.Description
	}
	if f.Thumbnail != nil {
		c.Thumbnail = *f.Thumbnail
	}
	if f.Visibility != nil {
		c.Visibility = *f.Visibility
	}
}

// MetadataChanged reports whether f sets any metadata field to a value that
// differs from the item's current one.
func (c *ContentItem) MetadataChanged(f ContentFields) bool {
	return differs(f.Title, c.Title) ||
		differs(f.Slug, c.Slug) ||
		differs(f.Description, c.Description) ||
		differs(f.Thumbnail, c.Thumbnail) ||
		(f.Visibility != nil && *f.Visibility != c.Visibility)
}

func differs(v *string, current string) bool {
	return v != nil && *v != current
}

// ApplyDraft records a draft save. A draft item is edited in place. A
// published item keeps its public fields and stores the new text in
// DraftBody; a body equal to the published one clears the shadow.
// Callers must reject metadata changes on published items first.
func (c *ContentItem) ApplyDraft(f ContentFields, now time.Time) {
	if c.IsPublished() {
		if f.Body != nil {
			if *f.Body == c.Body {
				c.DraftBody = nil
			} else {
				body := *f.Body
				c.DraftBody = &body
			}
		}
	} else {
		c.applyMetadata(f)
		if f.Body != nil {
			c.Body = *f.Body
		}
	}
	c.UpdatedAt = now
}

// ApplyPublish publishes the item. The submitted body replaces the public
// body and any pending draft is absorbed.
func (c *ContentItem) ApplyPublish(f ContentFields, now time.Time) {
	c.applyMetadata(f)
	if f.Body != nil {
		c.Body = *f.Body
	}
	c.Status = ContentStatusPublished
	c.DraftBody = nil
	c.UpdatedAt = now
}

// ApplyDiscard drops the pending draft, leaving the published body untouched.
// It returns false when there is no draft to discard.
func (c *ContentItem) ApplyDiscard(now time.Time) bool {
	if !c.IsPublished() || c.DraftBody == nil {
		return false
	}
	c.DraftBody = nil
	c.UpdatedAt = now
	return true
}

// PublicView returns a copy safe for the public read path: the draft body is
// stripped so unpublished edits never leak.
func (c *ContentItem) PublicView() ContentItem {
	out := *c
	out.DraftBody = nil
	out.Contributors = make([]Contributor, len(c.Contributors))
	copy(out.Contributors, c.Contributors)
	return out
}

// Clone returns a deep copy of the item.
func (c *ContentItem) Clone() *ContentItem {
	out := *c
	if c.DraftBody != nil {
		d := *c.DraftBody
		out.DraftBody = &d
	}
	out.Contributors = make([]Contributor, len(c.Contributors))
	copy(out.Contributors, c.Contributors)
	return &out
}
