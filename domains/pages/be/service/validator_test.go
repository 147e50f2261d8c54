package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/foliage-cms/foliage/domains/pages/be/repo"
	"github.com/foliage-cms/foliage/platform/go/templates"
)

func newTestService(t *testing.T, mutate func(*Config)) (*service, *repo.MemoryRepository) {
	t.Helper()

	registry, err := templates.Default()
	require.NoError(t, err)

	cfg := Config{
		DefaultLanguage: "en",
		Languages:       []string{"en", "fr"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	memory := repo.NewMemoryRepository()
	svc, err := New(memory, registry, cfg)
	require.NoError(t, err)

	return svc.(*service), memory
}

func mustCreate(t *testing.T, svc *service, input CreateInput) Page {
	t.Helper()

	page, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	return page
}

func requireSlugError(t *testing.T, err error, message string) {
	t.Helper()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields["slug"], message)
}

func TestCreateNormalizesSlug(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)

	page := mustCreate(t, svc, CreateInput{Title: "My Page", Slug: "  My Page!  "})
	require.Equal(t, "my-page", page.Slug)
}

func TestCreateRequiresSlugInDefaultLanguage(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)

	_, err := svc.Create(context.Background(), CreateInput{Title: "Home", Slug: "   !!!   "})
	requireSlugError(t, err, msgDefaultSlugRequired)
}

func TestCreateRejectsDuplicateRootSlug(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)

	mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})

	_, err := svc.Create(context.Background(), CreateInput{Title: "Home Two", Slug: "home"})
	requireSlugError(t, err, msgSiblingAtRoot)
}

func TestSameSlugAllowedInDifferentSubtrees(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	europe := mustCreate(t, svc, CreateInput{Title: "Europe", Slug: "europe"})
	asia := mustCreate(t, svc, CreateInput{Title: "Asia", Slug: "asia"})

	_, err := svc.Create(ctx, CreateInput{
		Title:    "News",
		Slug:     "news",
		TargetID: &europe.ID,
		Position: "first-child",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{
		Title:    "News",
		Slug:     "news",
		TargetID: &asia.ID,
		Position: "first-child",
	})
	require.NoError(t, err)
}

func TestUniqueModeAppliesGlobally(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.UniqueSlugRequired = true
	})
	ctx := context.Background()

	europe := mustCreate(t, svc, CreateInput{Title: "Europe", Slug: "europe"})
	asia := mustCreate(t, svc, CreateInput{Title: "Asia", Slug: "asia"})

	_, err := svc.Create(ctx, CreateInput{
		Title:    "News",
		Slug:     "news",
		TargetID: &europe.ID,
		Position: "first-child",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{
		Title:    "News",
		Slug:     "news",
		TargetID: &asia.ID,
		Position: "first-child",
	})
	requireSlugError(t, err, msgDuplicateSlug)
}

func TestUniqueModeIgnoresOwnSlugOnEdit(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.UniqueSlugRequired = true
	})
	ctx := context.Background()

	page := mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})

	slug := "home"
	updated, err := svc.Update(ctx, page.ID, UpdateInput{Slug: &slug})
	require.NoError(t, err)
	require.Equal(t, "home", updated.Slug)
}

func TestTargetLeftRightComparesAgainstTargetAndSiblings(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	parent := mustCreate(t, svc, CreateInput{Title: "Parent", Slug: "parent"})
	about := mustCreate(t, svc, CreateInput{
		Title:    "About",
		Slug:     "about",
		TargetID: &parent.ID,
		Position: "first-child",
	})
	mustCreate(t, svc, CreateInput{
		Title:    "Team",
		Slug:     "team",
		TargetID: &about.ID,
		Position: "right",
	})

	// The target's own slug blocks the insert.
	_, err := svc.Create(ctx, CreateInput{
		Title:    "About Copy",
		Slug:     "about",
		TargetID: &about.ID,
		Position: "left",
	})
	requireSlugError(t, err, msgSiblingAtPosition)

	// So does a sibling of the target.
	_, err = svc.Create(ctx, CreateInput{
		Title:    "Team Copy",
		Slug:     "team",
		TargetID: &about.ID,
		Position: "right",
	})
	requireSlugError(t, err, msgSiblingAtPosition)
}

func TestTargetFirstChildComparesAgainstChildren(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	parent := mustCreate(t, svc, CreateInput{Title: "Parent", Slug: "parent"})
	mustCreate(t, svc, CreateInput{
		Title:    "News",
		Slug:     "news",
		TargetID: &parent.ID,
		Position: "first-child",
	})

	_, err := svc.Create(ctx, CreateInput{
		Title:    "News Copy",
		Slug:     "news",
		TargetID: &parent.ID,
		Position: "first-child",
	})
	requireSlugError(t, err, msgChildAtPosition)

	// The parent's own slug does not block a first-child insert.
	_, err = svc.Create(ctx, CreateInput{
		Title:    "Parent Child",
		Slug:     "parent",
		TargetID: &parent.ID,
		Position: "first-child",
	})
	require.NoError(t, err)
}

func TestEditComparesAgainstOwnSiblings(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})
	page := mustCreate(t, svc, CreateInput{Title: "Contact", Slug: "contact"})

	slug := "home"
	_, err := svc.Update(ctx, page.ID, UpdateInput{Slug: &slug})
	requireSlugError(t, err, msgSibling)

	// Keeping its own slug is always fine.
	keep := "contact"
	_, err = svc.Update(ctx, page.ID, UpdateInput{Slug: &keep})
	require.NoError(t, err)
}

func TestTranslationRequiresExistingSlugContent(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	// A brand new page cannot start in a non-default language.
	_, err := svc.Create(ctx, CreateInput{Title: "Accueil", Slug: "accueil", Language: "fr"})
	requireSlugError(t, err, msgDefaultSlugRequired)

	page := mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})

	slug := "accueil"
	updated, err := svc.Update(ctx, page.ID, UpdateInput{Language: "fr", Slug: &slug, Title: &slug})
	require.NoError(t, err)
	require.Equal(t, "accueil", updated.Slug)

	// The default language slug is untouched.
	english, err := svc.Get(ctx, page.ID, "en")
	require.NoError(t, err)
	require.Equal(t, "home", english.Slug)
}

func TestSiteScopingAllowsReuseAcrossDisjointSites(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.UseSiteScoping = true
	})
	ctx := context.Background()

	siteA := uuid.New()
	siteB := uuid.New()

	mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home", SiteIDs: []uuid.UUID{siteA}})

	// Disjoint sites never block reuse.
	_, err := svc.Create(ctx, CreateInput{Title: "Home", Slug: "home", SiteIDs: []uuid.UUID{siteB}})
	require.NoError(t, err)

	// A shared site does.
	_, err = svc.Create(ctx, CreateInput{Title: "Home", Slug: "home", SiteIDs: []uuid.UUID{siteA, siteB}})
	requireSlugError(t, err, msgSiblingAtRoot)
}

func TestHideSitesPinsChecksToDefaultSite(t *testing.T) {
	t.Parallel()

	defaultSite := uuid.New()
	otherSite := uuid.New()

	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.UseSiteScoping = true
		cfg.HideSites = true
		cfg.DefaultSiteID = defaultSite
	})
	ctx := context.Background()

	mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home", SiteIDs: []uuid.UUID{defaultSite}})

	// Caller-provided sites are ignored; the check runs against the default site.
	_, err := svc.Create(ctx, CreateInput{Title: "Home", Slug: "home", SiteIDs: []uuid.UUID{otherSite}})
	requireSlugError(t, err, msgSiblingAtRoot)
}

func TestHideSitesAssignsDefaultSiteMembership(t *testing.T) {
	t.Parallel()

	defaultSite := uuid.New()

	svc, memory := newTestService(t, func(cfg *Config) {
		cfg.UseSiteScoping = true
		cfg.HideSites = true
		cfg.DefaultSiteID = defaultSite
	})
	ctx := context.Background()

	// With sites hidden, editors never send site ids; the page still gets
	// the default site membership.
	page := mustCreate(t, svc, CreateInput{Title: "Home", Slug: "home"})

	siteIDs, err := memory.SiteIDsForPage(ctx, page.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{defaultSite}, siteIDs)

	// So a second root page with the same slug collides.
	_, err = svc.Create(ctx, CreateInput{Title: "Home Two", Slug: "home"})
	requireSlugError(t, err, msgSiblingAtRoot)

	// Updates cannot opt the page out of the default site either.
	otherSite := uuid.New()
	_, err = svc.Update(ctx, page.ID, UpdateInput{SiteIDs: []uuid.UUID{otherSite}})
	require.NoError(t, err)

	siteIDs, err = memory.SiteIDsForPage(ctx, page.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{defaultSite}, siteIDs)
}

func TestEmptyTranslationSlugCollidesWithSibling(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	first := mustCreate(t, svc, CreateInput{Title: "First", Slug: "first"})
	second := mustCreate(t, svc, CreateInput{Title: "Second", Slug: "second"})

	empty := ""
	_, err := svc.Update(ctx, first.ID, UpdateInput{Language: "fr", Slug: &empty})
	require.NoError(t, err)

	// The second page's empty French slug competes with the first one's.
	_, err = svc.Update(ctx, second.ID, UpdateInput{Language: "fr", Slug: &empty})
	requireSlugError(t, err, msgSibling)
}

func TestMoveValidatesSlugAtDestination(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	europe := mustCreate(t, svc, CreateInput{Title: "Europe", Slug: "europe"})
	asia := mustCreate(t, svc, CreateInput{Title: "Asia", Slug: "asia"})

	mustCreate(t, svc, CreateInput{
		Title:    "News",
		Slug:     "news",
		TargetID: &europe.ID,
		Position: "first-child",
	})
	asiaNews := mustCreate(t, svc, CreateInput{
		Title:    "News",
		Slug:     "news",
		TargetID: &asia.ID,
		Position: "first-child",
	})

	// Moving asia's news under europe would collide with europe's news.
	_, err := svc.Move(ctx, asiaNews.ID, europe.ID, "first-child")
	requireSlugError(t, err, msgChildAtPosition)

	// Moving it next to its own parent is fine.
	moved, err := svc.Move(ctx, asiaNews.ID, asia.ID, "right")
	require.NoError(t, err)
	require.Nil(t, moved.ParentID)
}
