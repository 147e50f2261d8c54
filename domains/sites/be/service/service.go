package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foliage-cms/foliage/domains/sites/be/repo"
	"github.com/foliage-cms/foliage/platform/go/persistence"
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
	ErrNotFound = errors.New("site not found")
	ErrConflict = errors.New("site already exists")
)

// Site represents a publishing site pages can belong to.
type Site struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	Domain    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput represents the payload required to register a site.
type CreateInput struct {
	Slug   string
	Name   string
	Domain string
}

// Service defines the business operations for the sites domain.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Site, error)
	Get(ctx context.Context, id uuid.UUID) (Site, error)
	List(ctx context.Context) ([]Site, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo repo.Repository
}

// New constructs a sites Service instance.
func New(r repo.Repository) Service {
	if r == nil {
		panic("sites repository is required")
	}
	return &service{repo: r}
}

func (s *service) Create(ctx context.Context, input CreateInput) (Site, error) {
	fieldErrors := FieldErrors{}

	slug, err := persistence.NormalizeSlug(input.Slug)
	if err != nil {
		fieldErrors["slug"] = append(fieldErrors["slug"], err.Error())
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		fieldErrors["name"] = append(fieldErrors["name"], "name is required")
	}

	if len(fieldErrors) > 0 {
		return Site{}, &ValidationError{Fields: fieldErrors}
	}

	record, err := s.repo.Create(ctx, persistence.CreateSiteParams{
		SiteID: uuid.New(),
		Slug:   slug,
		Name:   name,
		Domain: strings.TrimSpace(input.Domain),
	})
	if err != nil {
		return Site{}, mapPersistenceError(err)
	}

	return toDomain(record), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Site, error) {
	if id == uuid.Nil {
		return Site{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Site{}, mapPersistenceError(err)
	}

	return toDomain(record), nil
}

func (s *service) List(ctx context.Context) ([]Site, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	sites := make([]Site, 0, len(records))
	for _, record := range records {
		sites = append(sites, toDomain(record))
	}
	return sites, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func toDomain(record persistence.Site) Site {
	return Site{
		ID:        record.SiteID,
		Slug:      record.Slug,
		Name:      record.Name,
		Domain:    record.Domain,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrSiteNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrSiteConflict):
		return ErrConflict
	default:
		return err
	}
}
