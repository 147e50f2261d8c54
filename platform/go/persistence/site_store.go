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

const (
	SitesTable     = "sites"
	PageSitesTable = "page_sites"
)

// Site represents a row in the sites table.
type Site struct {
	SiteID    uuid.UUID `db:"site_id" json:"siteId"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	Domain    string    `db:"domain" json:"domain"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

var (
	// ErrSiteNotFound indicates a missing site record.
	ErrSiteNotFound = errors.New("site not found")
	// ErrSiteConflict indicates a uniqueness violation (duplicated site slug).
	ErrSiteConflict = errors.New("site conflict")
)

// SiteStore exposes persistence helpers for sites and page membership.
type SiteStore struct {
	pool *pgxpool.Pool
}

// NewSiteStore returns a store instance bound to the shared pool.
func NewSiteStore(ctx context.Context, pool *pgxpool.Pool) (*SiteStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}

	return &SiteStore{pool: pool}, nil
}

// CreateSiteParams captures the fields required to insert a new site.
type CreateSiteParams struct {
	SiteID uuid.UUID
	Slug   string
	Name   string
	Domain string
}

const siteColumns = "site_id, slug, name, domain, created_at, updated_at"

// CreateSite inserts a new site and returns the persisted record.
func (s *SiteStore) CreateSite(ctx context.Context, params CreateSiteParams) (Site, error) {
	if params.SiteID == uuid.Nil {
		return Site{}, errors.New("site id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (site_id, slug, name, domain)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, SitesTable, siteColumns),
		params.SiteID, params.Slug, strings.TrimSpace(params.Name), strings.TrimSpace(params.Domain),
	)

	site, err := scanSite(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Site{}, ErrSiteConflict
		}
		return Site{}, err
	}

	return site, nil
}

// GetSite returns a single site by identifier.
func (s *SiteStore) GetSite(ctx context.Context, id uuid.UUID) (Site, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE site_id = $1
	`, siteColumns, SitesTable), id)

	site, err := scanSite(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Site{}, ErrSiteNotFound
		}
		return Site{}, err
	}

	return site, nil
}

// ListSites returns all sites ordered by slug.
func (s *SiteStore) ListSites(ctx context.Context) ([]Site, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM %s ORDER BY slug
	`, siteColumns, SitesTable))
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	sites := make([]Site, 0)
	for rows.Next() {
		site, scanErr := scanSite(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan site: %w", scanErr)
		}
		sites = append(sites, site)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}

	return sites, nil
}

// DeleteSite removes a site by identifier; page memberships cascade.
func (s *SiteStore) DeleteSite(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE site_id = $1`, SitesTable), id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrSiteNotFound
	}

	return nil
}

// AssignPage replaces the site memberships of a page.
func (s *SiteStore) AssignPage(ctx context.Context, pageID uuid.UUID, siteIDs []uuid.UUID) error {
	if pageID == uuid.Nil {
		return errors.New("page id is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE page_id = $1`, PageSitesTable), pageID); err != nil {
		return fmt.Errorf("clear page sites: %w", err)
	}

	for _, siteID := range siteIDs {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (page_id, site_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, PageSitesTable), pageID, siteID); err != nil {
			return fmt.Errorf("assign page site: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// SiteIDsForPage returns the site memberships of a page.
func (s *SiteStore) SiteIDsForPage(ctx context.Context, pageID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT site_id FROM %s WHERE page_id = $1
	`, PageSitesTable), pageID)
	if err != nil {
		return nil, fmt.Errorf("list page sites: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan page site: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page sites: %w", err)
	}

	return ids, nil
}

func scanSite(row pgx.Row) (Site, error) {
	var site Site

	if err := row.Scan(&site.SiteID, &site.Slug, &site.Name, &site.Domain, &site.CreatedAt, &site.UpdatedAt); err != nil {
		return Site{}, err
	}

	return site, nil
}
