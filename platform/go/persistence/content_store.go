package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ContentTable = "content"

// Well-known content types. Any other type is treated as a template
// placeholder body.
const (
	ContentTypeSlug  = "slug"
	ContentTypeTitle = "title"
)

// Content represents a localized, typed attribute of a page. The addressable
// key is (page_id, language, content_type).
type Content struct {
	ContentID   uuid.UUID `db:"content_id" json:"contentId"`
	PageID      uuid.UUID `db:"page_id" json:"pageId"`
	Language    string    `db:"language" json:"language"`
	ContentType string    `db:"content_type" json:"contentType"`
	Body        string    `db:"body" json:"body"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// ErrContentNotFound indicates a missing content record.
var ErrContentNotFound = errors.New("content not found")

// ContentStore exposes persistence helpers for localized page content.
type ContentStore struct {
	pool *pgxpool.Pool
}

// NewContentStore returns a store instance bound to the shared pool.
func NewContentStore(ctx context.Context, pool *pgxpool.Pool) (*ContentStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}

	return &ContentStore{pool: pool}, nil
}

// SetContentParams captures the fields for an upsert on the content key.
type SetContentParams struct {
	PageID      uuid.UUID
	Language    string
	ContentType string
	Body        string
}

const contentColumns = "content_id, page_id, language, content_type, body, created_at, updated_at"

// SetContent inserts or replaces the content row for (page, language, type).
func (s *ContentStore) SetContent(ctx context.Context, params SetContentParams) (Content, error) {
	if params.PageID == uuid.Nil {
		return Content{}, errors.New("page id is required")
	}
	if params.Language == "" || params.ContentType == "" {
		return Content{}, errors.New("language and content type are required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (content_id, page_id, language, content_type, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (page_id, language, content_type)
		DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
		RETURNING %s
	`, ContentTable, contentColumns),
		uuid.New(), params.PageID, params.Language, params.ContentType, params.Body,
	)

	content, err := scanContent(row)
	if err != nil {
		return Content{}, fmt.Errorf("upsert content: %w", err)
	}

	return content, nil
}

// GetContent returns the content row for the exact (page, language, type) key.
func (s *ContentStore) GetContent(ctx context.Context, pageID uuid.UUID, language, contentType string) (Content, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE page_id = $1 AND language = $2 AND content_type = $3
	`, contentColumns, ContentTable), pageID, language, contentType)

	content, err := scanContent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Content{}, ErrContentNotFound
		}
		return Content{}, err
	}

	return content, nil
}

// GetContentWithFallback resolves content for a page preferring the requested
// language, then the default language, then the most recently updated row of
// the given type in any language.
func (s *ContentStore) GetContentWithFallback(ctx context.Context, pageID uuid.UUID, language, defaultLanguage, contentType string) (Content, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE page_id = $1 AND content_type = $2
		ORDER BY (language = $3) DESC, (language = $4) DESC, updated_at DESC
		LIMIT 1
	`, contentColumns, ContentTable), pageID, contentType, language, defaultLanguage)

	content, err := scanContent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Content{}, ErrContentNotFound
		}
		return Content{}, err
	}

	return content, nil
}

// HasSlugContent reports whether the page owns a slug content row in any language.
func (s *ContentStore) HasSlugContent(ctx context.Context, pageID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT EXISTS (SELECT 1 FROM %s WHERE page_id = $1 AND content_type = $2)
	`, ContentTable), pageID, ContentTypeSlug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug content: %w", err)
	}
	return exists, nil
}

// CountSlugBodies counts slug content rows matching body across all languages
// and pages, optionally excluding every row of one page. Used by the global
// unique-slug mode.
func (s *ContentStore) CountSlugBodies(ctx context.Context, body string, excludePageID *uuid.UUID) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s WHERE content_type = $1 AND body = $2
	`, ContentTable)
	args := []any{ContentTypeSlug, body}

	if excludePageID != nil {
		query += " AND page_id <> $3"
		args = append(args, *excludePageID)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count slug bodies: %w", err)
	}

	return count, nil
}

// ListContent returns every content row of a page ordered by language and type.
func (s *ContentStore) ListContent(ctx context.Context, pageID uuid.UUID) ([]Content, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE page_id = $1 ORDER BY language, content_type
	`, contentColumns, ContentTable), pageID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	entries := make([]Content, 0)
	for rows.Next() {
		content, scanErr := scanContent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan content: %w", scanErr)
		}
		entries = append(entries, content)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content: %w", err)
	}

	return entries, nil
}

func scanContent(row pgx.Row) (Content, error) {
	var content Content

	if err := row.Scan(
		&content.ContentID, &content.PageID, &content.Language, &content.ContentType,
		&content.Body, &content.CreatedAt, &content.UpdatedAt,
	); err != nil {
		return Content{}, err
	}

	return content, nil
}
