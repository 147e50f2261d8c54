package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/foliage-cms/foliage/platform/go/persistence"
)

// Validation messages surfaced on the slug field.
const (
	msgDefaultSlugRequired = "every page needs a slug in the default language"
	msgDuplicateSlug       = "another page with this slug already exists"
	msgSiblingAtPosition   = "a sibling with this slug already exists at the targeted position"
	msgChildAtPosition     = "a child with this slug already exists at the targeted position"
	msgSibling             = "a sibling with this slug already exists"
	msgSiblingAtRoot       = "a sibling with this slug already exists at the root level"
)

// slugCheck carries everything the validator needs to judge a slug:
// the raw input, the language it is written in, the page being edited
// (nil when creating), and the intended tree position when the caller
// is placing the page relative to a target.
type slugCheck struct {
	RawSlug  string
	Language string
	PageID   *uuid.UUID
	TargetID *uuid.UUID
	Position persistence.TreePosition
	SiteIDs  []uuid.UUID
}

// validateSlug normalizes the raw slug and enforces the uniqueness rules.
// Uniqueness is global when UniqueSlugRequired is set; otherwise the slug
// only has to be unique among the pages that would share a parent at the
// intended position, further narrowed to pages sharing a site when site
// scoping is on. Returns the normalized slug on success.
func (s *service) validateSlug(ctx context.Context, check slugCheck) (string, error) {
	slug := persistence.Slugify(check.RawSlug)

	if check.Language == s.cfg.DefaultLanguage {
		if slug == "" {
			return "", newValidationError(map[string]string{"slug": msgDefaultSlugRequired})
		}
	} else {
		// A translation may omit the slug only once the page already has one.
		if check.PageID == nil {
			return "", newValidationError(map[string]string{"slug": msgDefaultSlugRequired})
		}
		has, err := s.repo.HasSlugContent(ctx, *check.PageID)
		if err != nil {
			return "", err
		}
		if !has {
			return "", newValidationError(map[string]string{"slug": msgDefaultSlugRequired})
		}
		// An empty translation slug is allowed but still competes below:
		// a sibling whose translation also stored "" collides with it.
	}

	if s.cfg.UniqueSlugRequired {
		count, err := s.repo.CountSlugBodies(ctx, slug, check.PageID)
		if err != nil {
			return "", err
		}
		if count > 0 {
			return "", newValidationError(map[string]string{"slug": msgDuplicateSlug})
		}
		return slug, nil
	}

	siteIDs := s.effectiveSiteIDs(check.SiteIDs)

	candidates, message, err := s.comparisonSet(ctx, check)
	if err != nil {
		return "", err
	}

	for _, candidate := range candidates {
		if check.PageID != nil && candidate.PageID == *check.PageID {
			continue
		}
		shared, err := s.sharesSite(ctx, candidate.PageID, siteIDs)
		if err != nil {
			return "", err
		}
		if !shared {
			continue
		}
		candidateSlug, err := s.resolveSlug(ctx, candidate.PageID, check.Language)
		if err != nil {
			if errors.Is(err, persistence.ErrContentNotFound) {
				continue
			}
			return "", err
		}
		if candidateSlug == slug {
			return "", newValidationError(map[string]string{"slug": message})
		}
	}

	return slug, nil
}

// comparisonSet resolves the pages the slug competes with. A target plus
// left/right compares against the target's siblings and the target itself;
// first-child compares against the target's children; an edit without a
// target compares against the page's own siblings; a new root page
// compares against the other roots.
func (s *service) comparisonSet(ctx context.Context, check slugCheck) ([]persistence.Page, string, error) {
	switch {
	case check.TargetID != nil:
		target, err := s.repo.GetPage(ctx, *check.TargetID)
		if err != nil {
			if errors.Is(err, persistence.ErrPageNotFound) {
				return nil, "", newValidationError(map[string]string{"target": "target page does not exist"})
			}
			return nil, "", err
		}
		if check.Position == persistence.PositionFirstChild {
			children, err := s.repo.ListChildren(ctx, target.PageID)
			if err != nil {
				return nil, "", err
			}
			return children, msgChildAtPosition, nil
		}
		siblings, err := s.repo.ListSiblings(ctx, target.PageID)
		if err != nil {
			return nil, "", err
		}
		return append(siblings, target), msgSiblingAtPosition, nil
	case check.PageID != nil:
		siblings, err := s.repo.ListSiblings(ctx, *check.PageID)
		if err != nil {
			return nil, "", err
		}
		return siblings, msgSibling, nil
	default:
		roots, err := s.repo.ListRoots(ctx)
		if err != nil {
			return nil, "", err
		}
		return roots, msgSiblingAtRoot, nil
	}
}

// sharesSite reports whether the candidate page belongs to at least one of
// the given sites. With site scoping off every candidate counts.
func (s *service) sharesSite(ctx context.Context, pageID uuid.UUID, siteIDs []uuid.UUID) (bool, error) {
	if !s.cfg.UseSiteScoping {
		return true, nil
	}

	members, err := s.repo.SiteIDsForPage(ctx, pageID)
	if err != nil {
		return false, err
	}

	for _, member := range members {
		for _, siteID := range siteIDs {
			if member == siteID {
				return true, nil
			}
		}
	}
	return false, nil
}

// resolveSlug reads a candidate's slug in the requested language, falling
// back to the default language and then to the newest slug of any language.
func (s *service) resolveSlug(ctx context.Context, pageID uuid.UUID, lang string) (string, error) {
	content, err := s.repo.GetContentWithFallback(ctx, pageID, lang, s.cfg.DefaultLanguage, persistence.ContentTypeSlug)
	if err != nil {
		return "", err
	}
	return content.Body, nil
}
