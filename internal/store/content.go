// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"guidepress/internal/models"
	"guidepress/internal/versioning"
)

// ContentStore handles all content-related database operations. Guides and
// news share the content_items table; contributors live in
// content_contributors.
type ContentStore struct {
	db *sql.DB
}

// NewContentStore creates a new ContentStore with the given database connection.
func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

const contentColumns = `id, type, slug, title, description, thumbnail, content,
	draft_content, status, visibility, author_id, author_name, author_avatar,
	view_count, created_at, updated_at`

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert stores a new content item.
func (s *ContentStore) Insert(ctx context.Context, item *models.ContentItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_items (`+contentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, item.ID, item.Type, item.Slug, item.Title, item.Description, item.Thumbnail,
		item.Body, item.DraftBody, item.Status, item.Visibility,
		item.AuthorID, item.AuthorName, item.AuthorAvatar,
		item.ViewCount, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert content: %w", mapWriteError(err))
	}
	return nil
}

// Get retrieves a content item with its contributors.
func (s *ContentStore) Get(ctx context.Context, ct models.ContentType, id uuid.UUID) (*models.ContentItem, error) {
	item, err := scanContent(s.db.QueryRowContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_items WHERE id = $1 AND type = $2
	`, id, ct))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, versioning.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find content by id: %w", err)
	}
	if item.Contributors, err = loadContributors(ctx, s.db, id); err != nil {
		return nil, err
	}
	return item, nil
}

// GetBySlug retrieves a content item of the given type by slug, in any status.
func (s *ContentStore) GetBySlug(ctx context.Context, ct models.ContentType, slug string) (*models.ContentItem, error) {
	item, err := scanContent(s.db.QueryRowContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_items WHERE type = $1 AND slug = $2
	`, ct, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, versioning.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find content by slug: %w", err)
	}
	if item.Contributors, err = loadContributors(ctx, s.db, item.ID); err != nil {
		return nil, err
	}
	return item, nil
}

// List returns all content items of the given type, newest first.
func (s *ContentStore) List(ctx context.Context, ct models.ContentType) ([]models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_items
		WHERE type = $1
		ORDER BY created_at DESC
	`, ct)
	if err != nil {
		return nil, fmt.Errorf("list content by type: %w", err)
	}
	defer rows.Close()

	var items []models.ContentItem
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		index[item.ID] = len(items)
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list content by type: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	// Contributors for the whole type in one query.
	crows, err := s.db.QueryContext(ctx, `
		SELECT cc.content_id, cc.user_id, cc.username, cc.avatar, cc.contributed_at
		FROM content_contributors cc
		JOIN content_items ci ON ci.id = cc.content_id
		WHERE ci.type = $1
		ORDER BY cc.content_id, cc.position
	`, ct)
	if err != nil {
		return nil, fmt.Errorf("list contributors: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var id uuid.UUID
		var c models.Contributor
		if err := crows.Scan(&id, &c.UserID, &c.Username, &c.Avatar, &c.ContributedAt); err != nil {
			return nil, fmt.Errorf("scan contributor: %w", err)
		}
		if i, ok := index[id]; ok {
			items[i].Contributors = append(items[i].Contributors, c)
		}
	}
	return items, crows.Err()
}

// Mutate loads the item under a row lock, applies fn and writes the result
// in the same transaction. Contributors appended by fn are inserted; the
// existing contributor rows are never rewritten.
func (s *ContentStore) Mutate(ctx context.Context, ct models.ContentType, id uuid.UUID, fn func(item *models.ContentItem) error) (*models.ContentItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin content tx: %w", err)
	}
	defer tx.Rollback()

	item, err := scanContent(tx.QueryRowContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_items WHERE id = $1 AND type = $2
		FOR UPDATE
	`, id, ct))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, versioning.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock content row: %w", err)
	}
	if item.Contributors, err = loadContributors(ctx, tx, id); err != nil {
		return nil, err
	}
	known := len(item.Contributors)

	if err := fn(item); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE content_items SET
			slug = $1, title = $2, description = $3, thumbnail = $4,
			content = $5, draft_content = $6, status = $7, visibility = $8,
			updated_at = $9
		WHERE id = $10
	`, item.Slug, item.Title, item.Description, item.Thumbnail,
		item.Body, item.DraftBody, item.Status, item.Visibility,
		item.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update content: %w", mapWriteError(err))
	}

	for pos := known; pos < len(item.Contributors); pos++ {
		c := item.Contributors[pos]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO content_contributors (content_id, user_id, username, avatar, contributed_at, position)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (content_id, user_id) DO NOTHING
		`, id, c.UserID, c.Username, c.Avatar, c.ContributedAt, pos)
		if err != nil {
			return nil, fmt.Errorf("add contributor: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit content tx: %w", err)
	}
	return item, nil
}

// Delete removes a content item; contributors cascade.
func (s *ContentStore) Delete(ctx context.Context, ct models.ContentType, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1 AND type = $2`, id, ct)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	if n == 0 {
		return versioning.ErrNotFound
	}
	return nil
}

// IncrementViews bumps the public view counter of a published item.
func (s *ContentStore) IncrementViews(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE content_items SET view_count = view_count + 1
		WHERE id = $1 AND status = 'published'
	`, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

func scanContent(row rowScanner) (*models.ContentItem, error) {
	c := &models.ContentItem{Contributors: []models.Contributor{}}
	err := row.Scan(
		&c.ID, &c.Type, &c.Slug, &c.Title, &c.Description, &c.Thumbnail, &c.Body,
		&c.DraftBody, &c.Status, &c.Visibility, &c.AuthorID, &c.AuthorName, &c.AuthorAvatar,
		&c.ViewCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func loadContributors(ctx context.Context, q querier, id uuid.UUID) ([]models.Contributor, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, username, avatar, contributed_at
		FROM content_contributors
		WHERE content_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load contributors: %w", err)
	}
	defer rows.Close()

	out := []models.Contributor{}
	for rows.Next() {
		var c models.Contributor
		if err := rows.Scan(&c.UserID, &c.Username, &c.Avatar, &c.ContributedAt); err != nil {
			return nil, fmt.Errorf("scan contributor: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// mapWriteError turns the (type, slug) unique violation into ErrSlugTaken.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "content_items_type_slug_key" {
		return versioning.ErrSlugTaken
	}
	return err
}
