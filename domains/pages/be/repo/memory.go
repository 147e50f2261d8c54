package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foliage-cms/foliage/platform/go/persistence"
)

// MemoryRepository is a simple in-memory implementation suitable for tests
// and early development. It mirrors the ordered-tree semantics of the
// postgres stores, including sibling position shifting.
type MemoryRepository struct {
	mu        sync.RWMutex
	pages     map[uuid.UUID]persistence.Page
	content   map[contentKey]persistence.Content
	pageSites map[uuid.UUID][]uuid.UUID
}

type contentKey struct {
	pageID      uuid.UUID
	language    string
	contentType string
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		pages:     make(map[uuid.UUID]persistence.Page),
		content:   make(map[contentKey]persistence.Content),
		pageSites: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *MemoryRepository) CreatePage(ctx context.Context, params persistence.CreatePageParams) (persistence.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pages[params.PageID]; exists {
		return persistence.Page{}, persistence.ErrPageConflict
	}

	now := time.Now().UTC()
	page := persistence.Page{
		PageID:           params.PageID,
		Template:         params.Template,
		Status:           params.Status,
		FreezeDate:       params.FreezeDate,
		RedirectToPageID: params.RedirectToPageID,
		DelegateTo:       params.DelegateTo,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if params.TargetID == nil {
		page.ParentID = nil
		page.Position = len(r.childrenOf(nil))
	} else {
		target, ok := r.pages[*params.TargetID]
		if !ok {
			return persistence.Page{}, persistence.ErrPageNotFound
		}
		parent, position, err := r.openSlot(target, params.Position, uuid.Nil)
		if err != nil {
			return persistence.Page{}, err
		}
		page.ParentID = parent
		page.Position = position
	}

	r.pages[page.PageID] = page
	return page, nil
}

func (r *MemoryRepository) GetPage(ctx context.Context, id uuid.UUID) (persistence.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page, ok := r.pages[id]
	if !ok {
		return persistence.Page{}, persistence.ErrPageNotFound
	}
	return page, nil
}

func (r *MemoryRepository) UpdatePage(ctx context.Context, id uuid.UUID, params persistence.UpdatePageParams) (persistence.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	page, ok := r.pages[id]
	if !ok {
		return persistence.Page{}, persistence.ErrPageNotFound
	}

	if params.Template != nil {
		page.Template = *params.Template
	}
	if params.Status != nil {
		page.Status = *params.Status
	}
	if params.FreezeDate != nil {
		page.FreezeDate = params.FreezeDate
	}
	if params.RedirectToPageID != nil {
		page.RedirectToPageID = params.RedirectToPageID
	}
	if params.DelegateTo != nil {
		page.DelegateTo = params.DelegateTo
	}
	page.UpdatedAt = time.Now().UTC()

	r.pages[id] = page
	return page, nil
}

func (r *MemoryRepository) MovePage(ctx context.Context, id, targetID uuid.UUID, position persistence.TreePosition) (persistence.Page, error) {
	if id == targetID {
		return persistence.Page{}, persistence.ErrInvalidMove
	}
	if _, err := persistence.ParseTreePosition(string(position)); err != nil {
		return persistence.Page{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	page, ok := r.pages[id]
	if !ok {
		return persistence.Page{}, persistence.ErrPageNotFound
	}
	if _, ok := r.pages[targetID]; !ok {
		return persistence.Page{}, persistence.ErrPageNotFound
	}
	if r.inSubtree(id, targetID) {
		return persistence.Page{}, persistence.ErrInvalidMove
	}

	// Close the gap at the source before reading the target's position.
	r.shift(page.ParentID, page.Position+1, -1, id)

	target := r.pages[targetID]
	parent, newPosition, err := r.openSlot(target, position, id)
	if err != nil {
		return persistence.Page{}, err
	}

	page.ParentID = parent
	page.Position = newPosition
	page.UpdatedAt = time.Now().UTC()
	r.pages[id] = page
	return page, nil
}

func (r *MemoryRepository) DeletePage(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	page, ok := r.pages[id]
	if !ok {
		return persistence.ErrPageNotFound
	}

	r.deleteSubtree(id)
	r.shift(page.ParentID, page.Position+1, -1, uuid.Nil)
	return nil
}

func (r *MemoryRepository) ListRoots(ctx context.Context) ([]persistence.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.childrenOf(nil), nil
}

func (r *MemoryRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]persistence.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.childrenOf(&parentID), nil
}

func (r *MemoryRepository) ListSiblings(ctx context.Context, pageID uuid.UUID) ([]persistence.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page, ok := r.pages[pageID]
	if !ok {
		return nil, persistence.ErrPageNotFound
	}

	siblings := make([]persistence.Page, 0)
	for _, candidate := range r.childrenOf(page.ParentID) {
		if candidate.PageID == pageID {
			continue
		}
		siblings = append(siblings, candidate)
	}
	return siblings, nil
}

func (r *MemoryRepository) SetContent(ctx context.Context, params persistence.SetContentParams) (persistence.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := contentKey{pageID: params.PageID, language: params.Language, contentType: params.ContentType}
	now := time.Now().UTC()

	entry, exists := r.content[key]
	if !exists {
		entry = persistence.Content{
			ContentID:   uuid.New(),
			PageID:      params.PageID,
			Language:    params.Language,
			ContentType: params.ContentType,
			CreatedAt:   now,
		}
	}
	entry.Body = params.Body
	entry.UpdatedAt = now

	r.content[key] = entry
	return entry, nil
}

func (r *MemoryRepository) GetContent(ctx context.Context, pageID uuid.UUID, language, contentType string) (persistence.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.content[contentKey{pageID: pageID, language: language, contentType: contentType}]
	if !ok {
		return persistence.Content{}, persistence.ErrContentNotFound
	}
	return entry, nil
}

func (r *MemoryRepository) GetContentWithFallback(ctx context.Context, pageID uuid.UUID, language, defaultLanguage, contentType string) (persistence.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.content[contentKey{pageID: pageID, language: language, contentType: contentType}]; ok {
		return entry, nil
	}
	if entry, ok := r.content[contentKey{pageID: pageID, language: defaultLanguage, contentType: contentType}]; ok {
		return entry, nil
	}

	var newest *persistence.Content
	for key, entry := range r.content {
		if key.pageID != pageID || key.contentType != contentType {
			continue
		}
		entry := entry
		if newest == nil || entry.UpdatedAt.After(newest.UpdatedAt) {
			newest = &entry
		}
	}
	if newest == nil {
		return persistence.Content{}, persistence.ErrContentNotFound
	}
	return *newest, nil
}

func (r *MemoryRepository) ListContent(ctx context.Context, pageID uuid.UUID) ([]persistence.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]persistence.Content, 0)
	for key, entry := range r.content {
		if key.pageID != pageID {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Language != entries[j].Language {
			return entries[i].Language < entries[j].Language
		}
		return entries[i].ContentType < entries[j].ContentType
	})
	return entries, nil
}

func (r *MemoryRepository) HasSlugContent(ctx context.Context, pageID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for key := range r.content {
		if key.pageID == pageID && key.contentType == persistence.ContentTypeSlug {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) CountSlugBodies(ctx context.Context, body string, excludePageID *uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for key, entry := range r.content {
		if key.contentType != persistence.ContentTypeSlug || entry.Body != body {
			continue
		}
		if excludePageID != nil && key.pageID == *excludePageID {
			continue
		}
		count++
	}
	return count, nil
}

func (r *MemoryRepository) AssignSites(ctx context.Context, pageID uuid.UUID, siteIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pageSites[pageID] = append([]uuid.UUID(nil), siteIDs...)
	return nil
}

func (r *MemoryRepository) SiteIDsForPage(ctx context.Context, pageID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]uuid.UUID(nil), r.pageSites[pageID]...), nil
}

// childrenOf returns the ordered children of a parent (nil for roots).
// Callers must hold the lock.
func (r *MemoryRepository) childrenOf(parentID *uuid.UUID) []persistence.Page {
	children := make([]persistence.Page, 0)
	for _, page := range r.pages {
		if !sameParent(page.ParentID, parentID) {
			continue
		}
		children = append(children, page)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Position < children[j].Position })
	return children
}

// shift adds delta to the position of every page under parentID whose
// position is >= from, skipping excludeID. Callers must hold the lock.
func (r *MemoryRepository) shift(parentID *uuid.UUID, from, delta int, excludeID uuid.UUID) {
	for id, page := range r.pages {
		if id == excludeID || !sameParent(page.ParentID, parentID) || page.Position < from {
			continue
		}
		page.Position += delta
		r.pages[id] = page
	}
}

func (r *MemoryRepository) openSlot(target persistence.Page, position persistence.TreePosition, excludeID uuid.UUID) (*uuid.UUID, int, error) {
	switch position {
	case persistence.PositionFirstChild:
		parent := target.PageID
		r.shift(&parent, 0, 1, excludeID)
		return &parent, 0, nil
	case persistence.PositionLeft:
		r.shift(target.ParentID, target.Position, 1, excludeID)
		return target.ParentID, target.Position, nil
	case persistence.PositionRight:
		r.shift(target.ParentID, target.Position+1, 1, excludeID)
		return target.ParentID, target.Position + 1, nil
	default:
		_, err := persistence.ParseTreePosition(string(position))
		if err == nil {
			err = persistence.ErrInvalidMove
		}
		return nil, 0, err
	}
}

func (r *MemoryRepository) inSubtree(rootID, candidateID uuid.UUID) bool {
	if rootID == candidateID {
		return true
	}
	current, ok := r.pages[candidateID]
	for ok && current.ParentID != nil {
		if *current.ParentID == rootID {
			return true
		}
		current, ok = r.pages[*current.ParentID]
	}
	return false
}

func (r *MemoryRepository) deleteSubtree(id uuid.UUID) {
	for _, child := range r.childrenOf(&id) {
		r.deleteSubtree(child.PageID)
	}
	for key := range r.content {
		if key.pageID == id {
			delete(r.content, key)
		}
	}
	delete(r.pageSites, id)
	delete(r.pages, id)
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
