package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/foliage-cms/foliage/platform/go/persistence"
)

// Repository defines the persistence operations required by the pages service.
// The read-only tree and content lookups are exactly what the slug validator
// consumes; the mutating calls back the page lifecycle operations.
type Repository interface {
	CreatePage(ctx context.Context, params persistence.CreatePageParams) (persistence.Page, error)
	GetPage(ctx context.Context, id uuid.UUID) (persistence.Page, error)
	UpdatePage(ctx context.Context, id uuid.UUID, params persistence.UpdatePageParams) (persistence.Page, error)
	MovePage(ctx context.Context, id, targetID uuid.UUID, position persistence.TreePosition) (persistence.Page, error)
	DeletePage(ctx context.Context, id uuid.UUID) error
	ListRoots(ctx context.Context) ([]persistence.Page, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]persistence.Page, error)
	ListSiblings(ctx context.Context, pageID uuid.UUID) ([]persistence.Page, error)

	SetContent(ctx context.Context, params persistence.SetContentParams) (persistence.Content, error)
	GetContent(ctx context.Context, pageID uuid.UUID, language, contentType string) (persistence.Content, error)
	GetContentWithFallback(ctx context.Context, pageID uuid.UUID, language, defaultLanguage, contentType string) (persistence.Content, error)
	ListContent(ctx context.Context, pageID uuid.UUID) ([]persistence.Content, error)
	HasSlugContent(ctx context.Context, pageID uuid.UUID) (bool, error)
	CountSlugBodies(ctx context.Context, body string, excludePageID *uuid.UUID) (int, error)

	AssignSites(ctx context.Context, pageID uuid.UUID, siteIDs []uuid.UUID) error
	SiteIDsForPage(ctx context.Context, pageID uuid.UUID) ([]uuid.UUID, error)
}

type postgresRepository struct {
	pages   *persistence.PageStore
	content *persistence.ContentStore
	sites   *persistence.SiteStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence stores.
func NewPostgresRepository(pages *persistence.PageStore, content *persistence.ContentStore, sites *persistence.SiteStore) Repository {
	if pages == nil {
		panic("page store is required")
	}
	if content == nil {
		panic("content store is required")
	}
	if sites == nil {
		panic("site store is required")
	}
	return &postgresRepository{pages: pages, content: content, sites: sites}
}

func (r *postgresRepository) CreatePage(ctx context.Context, params persistence.CreatePageParams) (persistence.Page, error) {
	return r.pages.CreatePage(ctx, params)
}

func (r *postgresRepository) GetPage(ctx context.Context, id uuid.UUID) (persistence.Page, error) {
	return r.pages.GetPage(ctx, id)
}

func (r *postgresRepository) UpdatePage(ctx context.Context, id uuid.UUID, params persistence.UpdatePageParams) (persistence.Page, error) {
	return r.pages.UpdatePage(ctx, id, params)
}

func (r *postgresRepository) MovePage(ctx context.Context, id, targetID uuid.UUID, position persistence.TreePosition) (persistence.Page, error) {
	return r.pages.MovePage(ctx, id, targetID, position)
}

func (r *postgresRepository) DeletePage(ctx context.Context, id uuid.UUID) error {
	return r.pages.DeletePage(ctx, id)
}

func (r *postgresRepository) ListRoots(ctx context.Context) ([]persistence.Page, error) {
	return r.pages.ListRoots(ctx)
}

func (r *postgresRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]persistence.Page, error) {
	return r.pages.ListChildren(ctx, parentID)
}

func (r *postgresRepository) ListSiblings(ctx context.Context, pageID uuid.UUID) ([]persistence.Page, error) {
	return r.pages.ListSiblings(ctx, pageID)
}

func (r *postgresRepository) SetContent(ctx context.Context, params persistence.SetContentParams) (persistence.Content, error) {
	return r.content.SetContent(ctx, params)
}

func (r *postgresRepository) GetContent(ctx context.Context, pageID uuid.UUID, language, contentType string) (persistence.Content, error) {
	return r.content.GetContent(ctx, pageID, language, contentType)
}

func (r *postgresRepository) GetContentWithFallback(ctx context.Context, pageID uuid.UUID, language, defaultLanguage, contentType string) (persistence.Content, error) {
	return r.content.GetContentWithFallback(ctx, pageID, language, defaultLanguage, contentType)
}

func (r *postgresRepository) ListContent(ctx context.Context, pageID uuid.UUID) ([]persistence.Content, error) {
	return r.content.ListContent(ctx, pageID)
}

func (r *postgresRepository) HasSlugContent(ctx context.Context, pageID uuid.UUID) (bool, error) {
	return r.content.HasSlugContent(ctx, pageID)
}

func (r *postgresRepository) CountSlugBodies(ctx context.Context, body string, excludePageID *uuid.UUID) (int, error) {
	return r.content.CountSlugBodies(ctx, body, excludePageID)
}

func (r *postgresRepository) AssignSites(ctx context.Context, pageID uuid.UUID, siteIDs []uuid.UUID) error {
	return r.sites.AssignPage(ctx, pageID, siteIDs)
}

func (r *postgresRepository) SiteIDsForPage(ctx context.Context, pageID uuid.UUID) ([]uuid.UUID, error) {
	return r.sites.SiteIDsForPage(ctx, pageID)
}
