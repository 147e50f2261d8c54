package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"

	"github.com/foliage-cms/foliage/domains/pages/be/repo"
	"github.com/foliage-cms/foliage/platform/go/persistence"
	"github.com/foliage-cms/foliage/platform/go/templates"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNotFound    = errors.New("page not found")
	ErrConflict    = errors.New("page conflict")
	ErrInvalidMove = errors.New("invalid page move")
)

// Page statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusHidden    = "hidden"
	StatusExpired   = "expired"
)

// Config carries the CMS-wide knobs consulted during slug validation.
type Config struct {
	// DefaultLanguage is the language every page must have a slug in.
	DefaultLanguage string
	// Languages lists the content languages editors may use.
	Languages []string
	// UniqueSlugRequired makes slug uniqueness global instead of per tree position.
	UniqueSlugRequired bool
	// UseSiteScoping restricts uniqueness checks to pages sharing a site.
	UseSiteScoping bool
	// HideSites pins every request to DefaultSiteID instead of caller-provided sites.
	HideSites bool
	// DefaultSiteID is the site used when HideSites is enabled.
	DefaultSiteID uuid.UUID
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.DefaultLanguage) == "" {
		return errors.New("default language is required")
	}

	seen := make(map[string]struct{})
	canonical := make([]string, 0, len(c.Languages)+1)
	for _, raw := range append([]string{c.DefaultLanguage}, c.Languages...) {
		tag, err := language.Parse(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid language %q: %w", raw, err)
		}
		code := tag.String()
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		canonical = append(canonical, code)
	}

	defaultTag, err := language.Parse(strings.TrimSpace(c.DefaultLanguage))
	if err != nil {
		return fmt.Errorf("invalid default language %q: %w", c.DefaultLanguage, err)
	}
	c.DefaultLanguage = defaultTag.String()
	c.Languages = canonical

	if c.UseSiteScoping && c.HideSites && c.DefaultSiteID == uuid.Nil {
		return errors.New("default site id is required when sites are hidden")
	}

	return nil
}

// Page represents the domain view of a page with its localized slug and title resolved.
type Page struct {
	ID         uuid.UUID
	ParentID   *uuid.UUID
	Position   int
	Template   string
	Status     string
	FreezeDate *time.Time
	RedirectTo *uuid.UUID
	DelegateTo *string
	Slug       string
	Title      string
	SiteIDs    []uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ContentEntry represents one localized content row of a page.
type ContentEntry struct {
	PageID    uuid.UUID
	Language  string
	Type      string
	Body      string
	UpdatedAt time.Time
}

// CreateInput represents the payload required to create a new page.
// TargetID plus Position place the page in the tree; both empty appends a root page.
type CreateInput struct {
	Title      string
	Slug       string
	Language   string
	Template   string
	Status     string
	FreezeDate *time.Time
	RedirectTo *uuid.UUID
	DelegateTo *string
	TargetID   *uuid.UUID
	Position   string
	SiteIDs    []uuid.UUID
}

// UpdateInput encapsulates fields that can be modified on an existing page.
// Nil pointers are left untouched; a nil SiteIDs keeps site memberships.
// TargetID/Position, when present, validate the slug against that intended position.
type UpdateInput struct {
	Language   string
	Title      *string
	Slug       *string
	Template   *string
	Status     *string
	FreezeDate *time.Time
	RedirectTo *uuid.UUID
	DelegateTo *string
	TargetID   *uuid.UUID
	Position   string
	SiteIDs    []uuid.UUID
}

// Service defines the business operations for the pages domain.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Page, error)
	Get(ctx context.Context, id uuid.UUID, lang string) (Page, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Page, error)
	Move(ctx context.Context, id, targetID uuid.UUID, position string) (Page, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListRoots(ctx context.Context, lang string) ([]Page, error)
	ListChildren(ctx context.Context, id uuid.UUID, lang string) ([]Page, error)
	SetContent(ctx context.Context, id uuid.UUID, lang, contentType, body string) (ContentEntry, error)
	GetContent(ctx context.Context, id uuid.UUID, lang, contentType string, fallback bool) (ContentEntry, error)
	ListContent(ctx context.Context, id uuid.UUID) ([]ContentEntry, error)
	Templates() []templates.Template
}

type service struct {
	repo      repo.Repository
	registry  *templates.Registry
	cfg       Config
	sanitizer *bluemonday.Policy
}

// New constructs a pages Service instance backed by the provided repository
// and template registry.
func New(r repo.Repository, registry *templates.Registry, cfg Config) (Service, error) {
	if r == nil {
		panic("pages repository is required")
	}
	if registry == nil {
		panic("template registry is required")
	}
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("pages service config: %w", err)
	}

	return &service{
		repo:      r,
		registry:  registry,
		cfg:       cfg,
		sanitizer: bluemonday.UGCPolicy(),
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Page, error) {
	fieldErrors := FieldErrors{}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		fieldErrors.add("title", "title is required")
	}

	lang, err := s.resolveLanguage(input.Language)
	if err != nil {
		fieldErrors.add("language", err.Error())
	}

	template := strings.TrimSpace(input.Template)
	if template == "" {
		template = s.registry.DefaultName()
	} else if !s.registry.Has(template) {
		fieldErrors.add("template", fmt.Sprintf("unknown template %q", template))
	}

	status := input.Status
	if status == "" {
		status = StatusDraft
	} else if !validStatus(status) {
		fieldErrors.add("status", fmt.Sprintf("unknown status %q", status))
	}

	var position persistence.TreePosition
	if input.TargetID != nil {
		position, err = persistence.ParseTreePosition(input.Position)
		if err != nil {
			fieldErrors.add("position", err.Error())
		}
	} else if input.Position != "" {
		fieldErrors.add("target", "target page is required when a position is given")
	}

	if len(fieldErrors) > 0 {
		return Page{}, &ValidationError{Fields: fieldErrors}
	}

	slug, err := s.validateSlug(ctx, slugCheck{
		RawSlug:  input.Slug,
		Language: lang,
		TargetID: input.TargetID,
		Position: position,
		SiteIDs:  input.SiteIDs,
	})
	if err != nil {
		return Page{}, err
	}

	record, err := s.repo.CreatePage(ctx, persistence.CreatePageParams{
		PageID:           uuid.New(),
		TargetID:         input.TargetID,
		Position:         position,
		Template:         template,
		Status:           status,
		FreezeDate:       input.FreezeDate,
		RedirectToPageID: input.RedirectTo,
		DelegateTo:       input.DelegateTo,
	})
	if err != nil {
		return Page{}, mapPersistenceError(err)
	}

	if siteIDs := s.effectiveSiteIDs(input.SiteIDs); len(siteIDs) > 0 {
		if err := s.repo.AssignSites(ctx, record.PageID, siteIDs); err != nil {
			return Page{}, err
		}
	}

	if _, err := s.repo.SetContent(ctx, persistence.SetContentParams{
		PageID:      record.PageID,
		Language:    lang,
		ContentType: persistence.ContentTypeSlug,
		Body:        slug,
	}); err != nil {
		return Page{}, err
	}

	if _, err := s.repo.SetContent(ctx, persistence.SetContentParams{
		PageID:      record.PageID,
		Language:    lang,
		ContentType: persistence.ContentTypeTitle,
		Body:        title,
	}); err != nil {
		return Page{}, err
	}

	return s.assemble(ctx, record, lang)
}

func (s *service) Get(ctx context.Context, id uuid.UUID, lang string) (Page, error) {
	if id == uuid.Nil {
		return Page{}, ErrNotFound
	}

	lang, err := s.resolveLanguage(lang)
	if err != nil {
		return Page{}, newValidationError(map[string]string{"language": err.Error()})
	}

	record, err := s.repo.GetPage(ctx, id)
	if err != nil {
		return Page{}, mapPersistenceError(err)
	}

	return s.assemble(ctx, record, lang)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Page, error) {
	if id == uuid.Nil {
		return Page{}, ErrNotFound
	}

	record, err := s.repo.GetPage(ctx, id)
	if err != nil {
		return Page{}, mapPersistenceError(err)
	}

	fieldErrors := FieldErrors{}

	lang, err := s.resolveLanguage(input.Language)
	if err != nil {
		fieldErrors.add("language", err.Error())
	}

	params := persistence.UpdatePageParams{
		FreezeDate:       input.FreezeDate,
		RedirectToPageID: input.RedirectTo,
		DelegateTo:       input.DelegateTo,
	}

	if input.Template != nil {
		template := strings.TrimSpace(*input.Template)
		if !s.registry.Has(template) {
			fieldErrors.add("template", fmt.Sprintf("unknown template %q", template))
		} else {
			params.Template = &template
		}
	}

	if input.Status != nil {
		if !validStatus(*input.Status) {
			fieldErrors.add("status", fmt.Sprintf("unknown status %q", *input.Status))
		} else {
			params.Status = input.Status
		}
	}

	var position persistence.TreePosition
	if input.TargetID != nil {
		position, err = persistence.ParseTreePosition(input.Position)
		if err != nil {
			fieldErrors.add("position", err.Error())
		}
	}

	if len(fieldErrors) > 0 {
		return Page{}, &ValidationError{Fields: fieldErrors}
	}

	if input.Slug != nil {
		siteIDs := input.SiteIDs
		if siteIDs == nil {
			siteIDs, err = s.repo.SiteIDsForPage(ctx, id)
			if err != nil {
				return Page{}, err
			}
		}

		slug, err := s.validateSlug(ctx, slugCheck{
			RawSlug:  *input.Slug,
			Language: lang,
			PageID:   &id,
			TargetID: input.TargetID,
			Position: position,
			SiteIDs:  siteIDs,
		})
		if err != nil {
			return Page{}, err
		}

		if _, err := s.repo.SetContent(ctx, persistence.SetContentParams{
			PageID:      id,
			Language:    lang,
			ContentType: persistence.ContentTypeSlug,
			Body:        slug,
		}); err != nil {
			return Page{}, err
		}
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return Page{}, newValidationError(map[string]string{"title": "title cannot be empty"})
		}
		if _, err := s.repo.SetContent(ctx, persistence.SetContentParams{
			PageID:      id,
			Language:    lang,
			ContentType: persistence.ContentTypeTitle,
			Body:        title,
		}); err != nil {
			return Page{}, err
		}
	}

	if input.SiteIDs != nil {
		if err := s.repo.AssignSites(ctx, id, s.effectiveSiteIDs(input.SiteIDs)); err != nil {
			return Page{}, err
		}
	}

	record, err = s.repo.UpdatePage(ctx, record.PageID, params)
	if err != nil {
		return Page{}, mapPersistenceError(err)
	}

	return s.assemble(ctx, record, lang)
}

func (s *service) Move(ctx context.Context, id, targetID uuid.UUID, position string) (Page, error) {
	if id == uuid.Nil || targetID == uuid.Nil {
		return Page{}, ErrNotFound
	}

	pos, err := persistence.ParseTreePosition(position)
	if err != nil {
		return Page{}, newValidationError(map[string]string{"position": err.Error()})
	}

	if _, err := s.repo.GetPage(ctx, id); err != nil {
		return Page{}, mapPersistenceError(err)
	}

	// The page keeps its slug across a move, so the slug must be valid for
	// the destination position before the tree changes.
	current, err := s.repo.GetContentWithFallback(ctx, id, s.cfg.DefaultLanguage, s.cfg.DefaultLanguage, persistence.ContentTypeSlug)
	if err != nil && !errors.Is(err, persistence.ErrContentNotFound) {
		return Page{}, err
	}
	if err == nil {
		siteIDs, err := s.repo.SiteIDsForPage(ctx, id)
		if err != nil {
			return Page{}, err
		}
		if _, err := s.validateSlug(ctx, slugCheck{
			RawSlug:  current.Body,
			Language: s.cfg.DefaultLanguage,
			PageID:   &id,
			TargetID: &targetID,
			Position: pos,
			SiteIDs:  siteIDs,
		}); err != nil {
			return Page{}, err
		}
	}

	record, err := s.repo.MovePage(ctx, id, targetID, pos)
	if err != nil {
		return Page{}, mapPersistenceError(err)
	}

	return s.assemble(ctx, record, s.cfg.DefaultLanguage)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.DeletePage(ctx, id); err != nil {
		return mapPersistenceError(err)
	}

	return nil
}

func (s *service) ListRoots(ctx context.Context, lang string) ([]Page, error) {
	lang, err := s.resolveLanguage(lang)
	if err != nil {
		return nil, newValidationError(map[string]string{"language": err.Error()})
	}

	records, err := s.repo.ListRoots(ctx)
	if err != nil {
		return nil, err
	}

	return s.assembleAll(ctx, records, lang)
}

func (s *service) ListChildren(ctx context.Context, id uuid.UUID, lang string) ([]Page, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}

	lang, err := s.resolveLanguage(lang)
	if err != nil {
		return nil, newValidationError(map[string]string{"language": err.Error()})
	}

	if _, err := s.repo.GetPage(ctx, id); err != nil {
		return nil, mapPersistenceError(err)
	}

	records, err := s.repo.ListChildren(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.assembleAll(ctx, records, lang)
}

func (s *service) SetContent(ctx context.Context, id uuid.UUID, lang, contentType, body string) (ContentEntry, error) {
	if id == uuid.Nil {
		return ContentEntry{}, ErrNotFound
	}

	lang, err := s.resolveLanguage(lang)
	if err != nil {
		return ContentEntry{}, newValidationError(map[string]string{"language": err.Error()})
	}

	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ContentEntry{}, newValidationError(map[string]string{"type": "content type is required"})
	}
	if contentType == persistence.ContentTypeSlug {
		return ContentEntry{}, newValidationError(map[string]string{"type": "slugs change through the page update operation"})
	}

	record, err := s.repo.GetPage(ctx, id)
	if err != nil {
		return ContentEntry{}, mapPersistenceError(err)
	}

	switch contentType {
	case persistence.ContentTypeTitle:
		body = strings.TrimSpace(body)
	default:
		if placeholders, ok := s.registry.Placeholders(record.Template); ok {
			if !placeholderExists(placeholders, contentType) {
				return ContentEntry{}, newValidationError(map[string]string{
					"type": fmt.Sprintf("template %q has no placeholder %q", record.Template, contentType),
				})
			}
		}
		body = s.sanitizer.Sanitize(body)
	}

	entry, err := s.repo.SetContent(ctx, persistence.SetContentParams{
		PageID:      id,
		Language:    lang,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		return ContentEntry{}, err
	}

	return mapContent(entry), nil
}

func (s *service) GetContent(ctx context.Context, id uuid.UUID, lang, contentType string, fallback bool) (ContentEntry, error) {
	if id == uuid.Nil {
		return ContentEntry{}, ErrNotFound
	}

	lang, err := s.resolveLanguage(lang)
	if err != nil {
		return ContentEntry{}, newValidationError(map[string]string{"language": err.Error()})
	}

	var entry persistence.Content
	if fallback {
		entry, err = s.repo.GetContentWithFallback(ctx, id, lang, s.cfg.DefaultLanguage, contentType)
	} else {
		entry, err = s.repo.GetContent(ctx, id, lang, contentType)
	}
	if err != nil {
		if errors.Is(err, persistence.ErrContentNotFound) {
			return ContentEntry{}, ErrNotFound
		}
		return ContentEntry{}, err
	}

	return mapContent(entry), nil
}

func (s *service) ListContent(ctx context.Context, id uuid.UUID) ([]ContentEntry, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}

	if _, err := s.repo.GetPage(ctx, id); err != nil {
		return nil, mapPersistenceError(err)
	}

	records, err := s.repo.ListContent(ctx, id)
	if err != nil {
		return nil, err
	}

	entries := make([]ContentEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, mapContent(record))
	}
	return entries, nil
}

func (s *service) Templates() []templates.Template {
	return s.registry.Choices()
}

func (s *service) assemble(ctx context.Context, record persistence.Page, lang string) (Page, error) {
	page := Page{
		ID:         record.PageID,
		ParentID:   record.ParentID,
		Position:   record.Position,
		Template:   record.Template,
		Status:     record.Status,
		FreezeDate: record.FreezeDate,
		RedirectTo: record.RedirectToPageID,
		DelegateTo: record.DelegateTo,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}

	if slug, err := s.repo.GetContentWithFallback(ctx, record.PageID, lang, s.cfg.DefaultLanguage, persistence.ContentTypeSlug); err == nil {
		page.Slug = slug.Body
	} else if !errors.Is(err, persistence.ErrContentNotFound) {
		return Page{}, err
	}

	if title, err := s.repo.GetContentWithFallback(ctx, record.PageID, lang, s.cfg.DefaultLanguage, persistence.ContentTypeTitle); err == nil {
		page.Title = title.Body
	} else if !errors.Is(err, persistence.ErrContentNotFound) {
		return Page{}, err
	}

	siteIDs, err := s.repo.SiteIDsForPage(ctx, record.PageID)
	if err != nil {
		return Page{}, err
	}
	page.SiteIDs = siteIDs

	return page, nil
}

func (s *service) assembleAll(ctx context.Context, records []persistence.Page, lang string) ([]Page, error) {
	pages := make([]Page, 0, len(records))
	for _, record := range records {
		page, err := s.assemble(ctx, record, lang)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// resolveLanguage canonicalizes a requested language and checks it against the
// configured set; an empty request resolves to the default language.
func (s *service) resolveLanguage(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.cfg.DefaultLanguage, nil
	}

	tag, err := language.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid language %q", raw)
	}

	code := tag.String()
	for _, known := range s.cfg.Languages {
		if known == code {
			return code, nil
		}
	}

	return "", fmt.Errorf("language %q is not enabled", raw)
}

// effectiveSiteIDs applies the hidden-sites rule: when sites are hidden the
// default site replaces whatever the caller provided, both for membership
// and for uniqueness checks.
func (s *service) effectiveSiteIDs(requested []uuid.UUID) []uuid.UUID {
	if s.cfg.UseSiteScoping && s.cfg.HideSites {
		return []uuid.UUID{s.cfg.DefaultSiteID}
	}
	return requested
}

func validStatus(status string) bool {
	switch status {
	case StatusDraft, StatusPublished, StatusHidden, StatusExpired:
		return true
	default:
		return false
	}
}

func placeholderExists(placeholders []templates.Placeholder, name string) bool {
	for _, p := range placeholders {
		if p.Name == name {
			return true
		}
	}
	return false
}

func mapContent(entry persistence.Content) ContentEntry {
	return ContentEntry{
		PageID:    entry.PageID,
		Language:  entry.Language,
		Type:      entry.ContentType,
		Body:      entry.Body,
		UpdatedAt: entry.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrPageNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrPageConflict):
		return ErrConflict
	case errors.Is(err, persistence.ErrInvalidMove):
		return ErrInvalidMove
	default:
		return err
	}
}

func newValidationError(fields map[string]string) error {
	fe := FieldErrors{}
	for key, message := range fields {
		fe.add(key, message)
	}
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
