package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/foliage-cms/foliage/platform/go/persistence"
)

// Repository defines the persistence operations required by the sites service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateSiteParams) (persistence.Site, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Site, error)
	List(ctx context.Context) ([]persistence.Site, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	sites *persistence.SiteStore
}

// NewPostgresRepository constructs a repository backed by the shared site store.
func NewPostgresRepository(sites *persistence.SiteStore) Repository {
	if sites == nil {
		panic("site store is required")
	}
	return &postgresRepository{sites: sites}
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateSiteParams) (persistence.Site, error) {
	return r.sites.CreateSite(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Site, error) {
	return r.sites.GetSite(ctx, id)
}

func (r *postgresRepository) List(ctx context.Context) ([]persistence.Site, error) {
	return r.sites.ListSites(ctx)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.sites.DeleteSite(ctx, id)
}
