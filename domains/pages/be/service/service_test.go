package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/foliage-cms/foliage/platform/go/persistence"
	"github.com/foliage-cms/foliage/platform/go/templates"
)

type mockRepository struct {
	createPageFn             func(ctx context.Context, params persistence.CreatePageParams) (persistence.Page, error)
	getPageFn                func(ctx context.Context, id uuid.UUID) (persistence.Page, error)
	updatePageFn             func(ctx context.Context, id uuid.UUID, params persistence.UpdatePageParams) (persistence.Page, error)
	movePageFn               func(ctx context.Context, id, targetID uuid.UUID, position persistence.TreePosition) (persistence.Page, error)
	deletePageFn             func(ctx context.Context, id uuid.UUID) error
	listRootsFn              func(ctx context.Context) ([]persistence.Page, error)
	listChildrenFn           func(ctx context.Context, parentID uuid.UUID) ([]persistence.Page, error)
	listSiblingsFn           func(ctx context.Context, pageID uuid.UUID) ([]persistence.Page, error)
	setContentFn             func(ctx context.Context, params persistence.SetContentParams) (persistence.Content, error)
	getContentFn             func(ctx context.Context, pageID uuid.UUID, language, contentType string) (persistence.Content, error)
	getContentWithFallbackFn func(ctx context.Context, pageID uuid.UUID, language, defaultLanguage, contentType string) (persistence.Content, error)
	listContentFn            func(ctx context.Context, pageID uuid.UUID) ([]persistence.Content, error)
	hasSlugContentFn         func(ctx context.Context, pageID uuid.UUID) (bool, error)
	countSlugBodiesFn        func(ctx context.Context, body string, excludePageID *uuid.UUID) (int, error)
	assignSitesFn            func(ctx context.Context, pageID uuid.UUID, siteIDs []uuid.UUID) error
	siteIDsForPageFn         func(ctx context.Context, pageID uuid.UUID) ([]uuid.UUID, error)
}

func (m *mockRepository) CreatePage(ctx context.Context, params persistence.CreatePageParams) (persistence.Page, error) {
	if m.createPageFn == nil {
		panic("createPageFn not configured")
	}
	return m.createPageFn(ctx, params)
}

func (m *mockRepository) GetPage(ctx context.Context, id uuid.UUID) (persistence.Page, error) {
	if m.getPageFn == nil {
		panic("getPageFn not configured")
	}
	return m.getPageFn(ctx, id)
}

func (m *mockRepository) UpdatePage(ctx context.Context, id uuid.UUID, params persistence.UpdatePageParams) (persistence.Page, error) {
	if m.updatePageFn == nil {
		panic("updatePageFn not configured")
	}
	return m.updatePageFn(ctx, id, params)
}

func (m *mockRepository) MovePage(ctx context.Context, id, targetID uuid.UUID, position persistence.TreePosition) (persistence.Page, error) {
	if m.movePageFn == nil {
		panic("movePageFn not configured")
	}
	return m.movePageFn(ctx, id, targetID, position)
}

func (m *mockRepository) DeletePage(ctx context.Context, id uuid.UUID) error {
	if m.deletePageFn == nil {
		panic("deletePageFn not configured")
	}
	return m.deletePageFn(ctx, id)
}

func (m *mockRepository) ListRoots(ctx context.Context) ([]persistence.Page, error) {
	if m.listRootsFn == nil {
		panic("listRootsFn not configured")
	}
	return m.listRootsFn(ctx)
}

func (m *mockRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]persistence.Page, error) {
	if m.listChildrenFn == nil {
		panic("listChildrenFn not configured")
	}
	return m.listChildrenFn(ctx, parentID)
}

func (m *mockRepository) ListSiblings(ctx context.Context, pageID uuid.UUID) ([]persistence.Page, error) {
	if m.listSiblingsFn == nil {
		panic("listSiblingsFn not configured")
	}
	return m.listSiblingsFn(ctx, pageID)
}

func (m *mockRepository) SetContent(ctx context.Context, params persistence.SetContentParams) (persistence.Content, error) {
	if m.setContentFn == nil {
		panic("setContentFn not configured")
	}
	return m.setContentFn(ctx, params)
}

func (m *mockRepository) GetContent(ctx context.Context, pageID uuid.UUID, language, contentType string) (persistence.Content, error) {
	if m.getContentFn == nil {
		panic("getContentFn not configured")
	}
	return m.getContentFn(ctx, pageID, language, contentType)
}

func (m *mockRepository) GetContentWithFallback(ctx context.Context, pageID uuid.UUID, language, defaultLanguage, contentType string) (persistence.Content, error) {
	if m.getContentWithFallbackFn == nil {
		panic("getContentWithFallbackFn not configured")
	}
	return m.getContentWithFallbackFn(ctx, pageID, language, defaultLanguage, contentType)
}

func (m *mockRepository) ListContent(ctx context.Context, pageID uuid.UUID) ([]persistence.Content, error) {
	if m.listContentFn == nil {
		panic("listContentFn not configured")
	}
	return m.listContentFn(ctx, pageID)
}

func (m *mockRepository) HasSlugContent(ctx context.Context, pageID uuid.UUID) (bool, error) {
	if m.hasSlugContentFn == nil {
		panic("hasSlugContentFn not configured")
	}
	return m.hasSlugContentFn(ctx, pageID)
}

func (m *mockRepository) CountSlugBodies(ctx context.Context, body string, excludePageID *uuid.UUID) (int, error) {
	if m.countSlugBodiesFn == nil {
		panic("countSlugBodiesFn not configured")
	}
	return m.countSlugBodiesFn(ctx, body, excludePageID)
}

func (m *mockRepository) AssignSites(ctx context.Context, pageID uuid.UUID, siteIDs []uuid.UUID) error {
	if m.assignSitesFn == nil {
		panic("assignSitesFn not configured")
	}
	return m.assignSitesFn(ctx, pageID, siteIDs)
}

func (m *mockRepository) SiteIDsForPage(ctx context.Context, pageID uuid.UUID) ([]uuid.UUID, error) {
	if m.siteIDsForPageFn == nil {
		panic("siteIDsForPageFn not configured")
	}
	return m.siteIDsForPageFn(ctx, pageID)
}

func newMockService(t *testing.T, mock *mockRepository) Service {
	t.Helper()

	registry, err := templates.Default()
	require.NoError(t, err)

	svc, err := New(mock, registry, Config{DefaultLanguage: "en", Languages: []string{"en", "fr"}})
	require.NoError(t, err)
	return svc
}

func TestServiceCreateValidation(t *testing.T) {
	t.Parallel()

	svc := newMockService(t, &mockRepository{})

	_, err := svc.Create(context.Background(), CreateInput{
		Language: "klingon",
		Template: "missing",
		Status:   "archived",
		Position: "left",
	})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "title")
	require.Contains(t, validationErr.Fields, "language")
	require.Contains(t, validationErr.Fields, "template")
	require.Contains(t, validationErr.Fields, "status")
	require.Contains(t, validationErr.Fields, "target")
}

func TestServiceCreateMapsConflict(t *testing.T) {
	t.Parallel()

	mock := &mockRepository{
		listRootsFn: func(ctx context.Context) ([]persistence.Page, error) {
			return nil, nil
		},
		createPageFn: func(ctx context.Context, params persistence.CreatePageParams) (persistence.Page, error) {
			return persistence.Page{}, persistence.ErrPageConflict
		},
	}
	svc := newMockService(t, mock)

	_, err := svc.Create(context.Background(), CreateInput{Title: "Home", Slug: "home"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestServiceGetMapsNotFound(t *testing.T) {
	t.Parallel()

	mock := &mockRepository{
		getPageFn: func(ctx context.Context, id uuid.UUID) (persistence.Page, error) {
			return persistence.Page{}, persistence.ErrPageNotFound
		},
	}
	svc := newMockService(t, mock)

	_, err := svc.Get(context.Background(), uuid.New(), "en")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceCreateAppliesTemplateAndStatusDefaults(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)

	page := mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})
	require.Equal(t, "standard", page.Template)
	require.Equal(t, StatusDraft, page.Status)
	require.Equal(t, "Home", page.Title)
}

func TestServiceMoveRejectsOwnSubtree(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	parent := mustCreate(t, svc, CreateInput{Title: "Parent", Slug: "parent"})
	child := mustCreate(t, svc, CreateInput{
		Title:    "Child",
		Slug:     "child",
		TargetID: &parent.ID,
		Position: "first-child",
	})

	_, err := svc.Move(ctx, parent.ID, child.ID, "first-child")
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestServiceSetContentSanitizesRichText(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	page := mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})

	entry, err := svc.SetContent(ctx, page.ID, "en", "body", `<em>fine</em><script>alert(1)</script>`)
	require.NoError(t, err)
	require.Equal(t, "<em>fine</em>", entry.Body)
}

func TestServiceSetContentRejectsSlugType(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	page := mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})

	_, err := svc.SetContent(ctx, page.ID, "en", "slug", "sneaky")

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "type")
}

func TestServiceSetContentRejectsUnknownPlaceholder(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	page := mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})

	// The standard template only declares a body placeholder.
	_, err := svc.SetContent(ctx, page.ID, "en", "hero", "big banner")

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "type")
}

func TestServiceGetContentFallback(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	page := mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})

	_, err := svc.SetContent(ctx, page.ID, "en", "body", "hello")
	require.NoError(t, err)

	entry, err := svc.GetContent(ctx, page.ID, "fr", "body", true)
	require.NoError(t, err)
	require.Equal(t, "en", entry.Language)
	require.Equal(t, "hello", entry.Body)

	_, err = svc.GetContent(ctx, page.ID, "fr", "body", false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDeleteRemovesSubtree(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	parent := mustCreate(t, svc, CreateInput{Title: "Parent", Slug: "parent"})
	child := mustCreate(t, svc, CreateInput{
		Title:    "Child",
		Slug:     "child",
		TargetID: &parent.ID,
		Position: "first-child",
	})

	require.NoError(t, svc.Delete(ctx, parent.ID))

	_, err := svc.Get(ctx, child.ID, "en")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceListContent(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	page := mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})

	_, err := svc.SetContent(ctx, page.ID, "en", "body", "hello")
	require.NoError(t, err)

	entries, err := svc.ListContent(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3) // slug, title, body

	types := make([]string, 0, len(entries))
	for _, entry := range entries {
		types = append(types, entry.Type)
	}
	require.ElementsMatch(t, []string{"slug", "title", "body"}, types)
}

func TestServiceTemplates(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)

	choices := svc.Templates()
	require.Len(t, choices, 2)
	require.Equal(t, "standard", choices[0].Name)
}
