package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const PagesTable = "pages"

// TreePosition describes where a page lands relative to a target node.
type TreePosition string

const (
	PositionFirstChild TreePosition = "first-child"
	PositionLeft       TreePosition = "left"
	PositionRight      TreePosition = "right"
)

// ParseTreePosition validates a wire-level position string.
func ParseTreePosition(raw string) (TreePosition, error) {
	switch TreePosition(raw) {
	case PositionFirstChild, PositionLeft, PositionRight:
		return TreePosition(raw), nil
	default:
		return "", fmt.Errorf("invalid tree position %q (use left, right or first-child)", raw)
	}
}

// Page represents a row in the pages table. Position is the zero-based order
// among pages sharing the same parent.
type Page struct {
	PageID           uuid.UUID  `db:"page_id" json:"pageId"`
	ParentID         *uuid.UUID `db:"parent_id" json:"parentId,omitempty"`
	Position         int        `db:"position" json:"position"`
	Template         string     `db:"template" json:"template"`
	Status           string     `db:"status" json:"status"`
	FreezeDate       *time.Time `db:"freeze_date" json:"freezeDate,omitempty"`
	RedirectToPageID *uuid.UUID `db:"redirect_to_page_id" json:"redirectToPageId,omitempty"`
	DelegateTo       *string    `db:"delegate_to" json:"delegateTo,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

var (
	// ErrPageNotFound indicates a missing page record.
	ErrPageNotFound = errors.New("page not found")
	// ErrPageConflict indicates a uniqueness violation on the pages table.
	ErrPageConflict = errors.New("page conflict")
	// ErrInvalidMove indicates a move that would detach the tree (e.g., into the page's own subtree).
	ErrInvalidMove = errors.New("invalid page move")
)

// PageStore exposes persistence helpers for the ordered page tree.
type PageStore struct {
	pool *pgxpool.Pool
}

// NewPageStore returns a store instance bound to the shared pool.
func NewPageStore(ctx context.Context, pool *pgxpool.Pool) (*PageStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}

	return &PageStore{pool: pool}, nil
}

// CreatePageParams captures the fields required to insert a new page at a tree position.
// When TargetID is nil the page is appended after the existing root pages.
type CreatePageParams struct {
	PageID           uuid.UUID
	TargetID         *uuid.UUID
	Position         TreePosition
	Template         string
	Status           string
	FreezeDate       *time.Time
	RedirectToPageID *uuid.UUID
	DelegateTo       *string
}

const pageColumns = "page_id, parent_id, position, template, status, freeze_date, redirect_to_page_id, delegate_to, created_at, updated_at"

// CreatePage inserts a new page at the requested tree position, shifting
// following siblings inside a single transaction.
func (s *PageStore) CreatePage(ctx context.Context, params CreatePageParams) (Page, error) {
	if params.PageID == uuid.Nil {
		return Page{}, errors.New("page id is required")
	}
	if params.TargetID != nil && params.Position == "" {
		return Page{}, errors.New("position is required when a target page is given")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Page{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var parentID *uuid.UUID
	var position int

	if params.TargetID == nil {
		if err := tx.QueryRow(ctx, fmt.Sprintf(`
			SELECT COALESCE(MAX(position) + 1, 0) FROM %s WHERE parent_id IS NULL
		`, PagesTable)).Scan(&position); err != nil {
			return Page{}, fmt.Errorf("next root position: %w", err)
		}
	} else {
		target, err := lockPage(ctx, tx, *params.TargetID)
		if err != nil {
			return Page{}, err
		}

		parentID, position, err = openSlot(ctx, tx, target, params.Position, uuid.Nil)
		if err != nil {
			return Page{}, err
		}
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (page_id, parent_id, position, template, status, freeze_date, redirect_to_page_id, delegate_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s
	`, PagesTable, pageColumns),
		params.PageID, parentID, position, params.Template, params.Status,
		params.FreezeDate, params.RedirectToPageID, params.DelegateTo,
	)

	page, err := scanPage(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Page{}, ErrPageConflict
		}
		return Page{}, fmt.Errorf("insert page: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Page{}, fmt.Errorf("commit tx: %w", err)
	}

	return page, nil
}

// GetPage returns a single page by identifier.
func (s *PageStore) GetPage(ctx context.Context, id uuid.UUID) (Page, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE page_id = $1
	`, pageColumns, PagesTable), id)

	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Page{}, ErrPageNotFound
		}
		return Page{}, err
	}

	return page, nil
}

// UpdatePageParams represents editable page fields; nil pointers are left untouched.
type UpdatePageParams struct {
	Template         *string
	Status           *string
	FreezeDate       *time.Time
	RedirectToPageID *uuid.UUID
	DelegateTo       *string
}

// UpdatePage applies the provided fields and returns the updated record.
func (s *PageStore) UpdatePage(ctx context.Context, id uuid.UUID, params UpdatePageParams) (Page, error) {
	setParts := []string{}
	var args []any

	if params.Template != nil {
		args = append(args, *params.Template)
		setParts = append(setParts, fmt.Sprintf("template = $%d", len(args)))
	}
	if params.Status != nil {
		args = append(args, *params.Status)
		setParts = append(setParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.FreezeDate != nil {
		args = append(args, *params.FreezeDate)
		setParts = append(setParts, fmt.Sprintf("freeze_date = $%d", len(args)))
	}
	if params.RedirectToPageID != nil {
		args = append(args, *params.RedirectToPageID)
		setParts = append(setParts, fmt.Sprintf("redirect_to_page_id = $%d", len(args)))
	}
	if params.DelegateTo != nil {
		args = append(args, *params.DelegateTo)
		setParts = append(setParts, fmt.Sprintf("delegate_to = $%d", len(args)))
	}

	if len(setParts) == 0 {
		return s.GetPage(ctx, id)
	}

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s, updated_at = NOW()
		WHERE page_id = $%d
		RETURNING %s
	`, PagesTable, strings.Join(setParts, ", "), len(args), pageColumns)

	row := s.pool.QueryRow(ctx, query, args...)

	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Page{}, ErrPageNotFound
		}
		return Page{}, err
	}

	return page, nil
}

// ListRoots returns the root-level pages ordered by position.
func (s *PageStore) ListRoots(ctx context.Context) ([]Page, error) {
	return s.listPages(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE parent_id IS NULL ORDER BY position
	`, pageColumns, PagesTable))
}

// ListChildren returns the direct children of a page ordered by position.
func (s *PageStore) ListChildren(ctx context.Context, parentID uuid.UUID) ([]Page, error) {
	return s.listPages(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE parent_id = $1 ORDER BY position
	`, pageColumns, PagesTable), parentID)
}

// ListSiblings returns the pages sharing a parent with the given page,
// excluding the page itself, ordered by position.
func (s *PageStore) ListSiblings(ctx context.Context, pageID uuid.UUID) ([]Page, error) {
	return s.listPages(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id IS NOT DISTINCT FROM (SELECT parent_id FROM %s WHERE page_id = $1)
		  AND page_id <> $1
		ORDER BY position
	`, pageColumns, PagesTable, PagesTable), pageID)
}

// MovePage relocates a page (with its subtree) relative to the target page.
func (s *PageStore) MovePage(ctx context.Context, pageID, targetID uuid.UUID, position TreePosition) (Page, error) {
	if pageID == targetID {
		return Page{}, ErrInvalidMove
	}
	if _, err := ParseTreePosition(string(position)); err != nil {
		return Page{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Page{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	page, err := lockPage(ctx, tx, pageID)
	if err != nil {
		return Page{}, err
	}

	inSubtree, err := isDescendant(ctx, tx, pageID, targetID)
	if err != nil {
		return Page{}, err
	}
	if inSubtree {
		return Page{}, ErrInvalidMove
	}

	// Close the gap left behind before computing the destination slot, so the
	// target's position is read with fresh sibling ordering.
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET position = position - 1
		WHERE parent_id IS NOT DISTINCT FROM $1 AND position > $2 AND page_id <> $3
	`, PagesTable), page.ParentID, page.Position, pageID); err != nil {
		return Page{}, fmt.Errorf("close source gap: %w", err)
	}

	target, err := lockPage(ctx, tx, targetID)
	if err != nil {
		return Page{}, err
	}

	newParent, newPosition, err := openSlot(ctx, tx, target, position, pageID)
	if err != nil {
		return Page{}, err
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s SET parent_id = $1, position = $2, updated_at = NOW()
		WHERE page_id = $3
		RETURNING %s
	`, PagesTable, pageColumns), newParent, newPosition, pageID)

	moved, err := scanPage(row)
	if err != nil {
		return Page{}, fmt.Errorf("move page: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Page{}, fmt.Errorf("commit tx: %w", err)
	}

	return moved, nil
}

// DeletePage removes a page and its subtree, closing the position gap among
// the remaining siblings.
func (s *PageStore) DeletePage(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	page, err := lockPage(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE page_id = $1`, PagesTable), id); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET position = position - 1
		WHERE parent_id IS NOT DISTINCT FROM $1 AND position > $2
	`, PagesTable), page.ParentID, page.Position); err != nil {
		return fmt.Errorf("close position gap: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PageStore) listPages(ctx context.Context, query string, args ...any) ([]Page, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	pages := make([]Page, 0)
	for rows.Next() {
		page, scanErr := scanPage(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan page: %w", scanErr)
		}
		pages = append(pages, page)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}

	return pages, nil
}

// openSlot shifts siblings to make room relative to target and returns the
// parent and position for the incoming page. excludeID keeps an in-flight
// moved page out of the shift.
func openSlot(ctx context.Context, tx pgx.Tx, target Page, position TreePosition, excludeID uuid.UUID) (*uuid.UUID, int, error) {
	switch position {
	case PositionFirstChild:
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
			UPDATE %s SET position = position + 1
			WHERE parent_id = $1 AND page_id <> $2
		`, PagesTable), target.PageID, excludeID); err != nil {
			return nil, 0, fmt.Errorf("shift children: %w", err)
		}
		parent := target.PageID
		return &parent, 0, nil
	case PositionLeft:
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
			UPDATE %s SET position = position + 1
			WHERE parent_id IS NOT DISTINCT FROM $1 AND position >= $2 AND page_id <> $3
		`, PagesTable), target.ParentID, target.Position, excludeID); err != nil {
			return nil, 0, fmt.Errorf("shift siblings: %w", err)
		}
		return target.ParentID, target.Position, nil
	case PositionRight:
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
			UPDATE %s SET position = position + 1
			WHERE parent_id IS NOT DISTINCT FROM $1 AND position > $2 AND page_id <> $3
		`, PagesTable), target.ParentID, target.Position, excludeID); err != nil {
			return nil, 0, fmt.Errorf("shift siblings: %w", err)
		}
		return target.ParentID, target.Position + 1, nil
	default:
		return nil, 0, fmt.Errorf("invalid tree position %q", position)
	}
}

func lockPage(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Page, error) {
	row := tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE page_id = $1 FOR UPDATE
	`, pageColumns, PagesTable), id)

	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Page{}, ErrPageNotFound
		}
		return Page{}, err
	}

	return page, nil
}

// isDescendant reports whether candidate lives inside root's subtree (root included).
func isDescendant(ctx context.Context, tx pgx.Tx, root, candidate uuid.UUID) (bool, error) {
	var found bool
	err := tx.QueryRow(ctx, fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT page_id FROM %s WHERE page_id = $1
			UNION ALL
			SELECT p.page_id FROM %s p JOIN subtree s ON p.parent_id = s.page_id
		)
		SELECT EXISTS (SELECT 1 FROM subtree WHERE page_id = $2)
	`, PagesTable, PagesTable), root, candidate).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("check subtree: %w", err)
	}
	return found, nil
}

func scanPage(row pgx.Row) (Page, error) {
	var page Page

	if err := row.Scan(
		&page.PageID, &page.ParentID, &page.Position, &page.Template, &page.Status,
		&page.FreezeDate, &page.RedirectToPageID, &page.DelegateTo,
		&page.CreatedAt, &page.UpdatedAt,
	); err != nil {
		return Page{}, err
	}

	return page, nil
}
