package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/foliage-cms/foliage/platform/go/persistence"
)

type mockRepository struct {
	createFn func(ctx context.Context, params persistence.CreateSiteParams) (persistence.Site, error)
	getFn    func(ctx context.Context, id uuid.UUID) (persistence.Site, error)
	listFn   func(ctx context.Context) ([]persistence.Site, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockRepository) Create(ctx context.Context, params persistence.CreateSiteParams) (persistence.Site, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, params)
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Site, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockRepository) List(ctx context.Context) ([]persistence.Site, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx)
}

func (m *mockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, id)
}

func TestSitesCreateValidation(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	_, err := svc.Create(context.Background(), CreateInput{Slug: "Not A Slug"})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "slug")
	require.Contains(t, validationErr.Fields, "name")
}

func TestSitesCreate(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{
		createFn: func(ctx context.Context, params persistence.CreateSiteParams) (persistence.Site, error) {
			require.Equal(t, "main-site", params.Slug)
			require.Equal(t, "Main Site", params.Name)
			return persistence.Site{
				SiteID: params.SiteID,
				Slug:   params.Slug,
				Name:   params.Name,
				Domain: params.Domain,
			}, nil
		},
	})

	site, err := svc.Create(context.Background(), CreateInput{
		Slug:   "main-site",
		Name:   "  Main Site  ",
		Domain: "example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "main-site", site.Slug)
	require.Equal(t, "example.com", site.Domain)
}

func TestSitesCreateMapsConflict(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{
		createFn: func(ctx context.Context, params persistence.CreateSiteParams) (persistence.Site, error) {
			return persistence.Site{}, persistence.ErrSiteConflict
		},
	})

	_, err := svc.Create(context.Background(), CreateInput{Slug: "main", Name: "Main"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestSitesGetMapsNotFound(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{
		getFn: func(ctx context.Context, id uuid.UUID) (persistence.Site, error) {
			return persistence.Site{}, persistence.ErrSiteNotFound
		},
	})

	_, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSitesDeleteRejectsNilID(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	err := svc.Delete(context.Background(), uuid.Nil)
	require.ErrorIs(t, err, ErrNotFound)
}
