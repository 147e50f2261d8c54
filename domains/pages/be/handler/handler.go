package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foliage-cms/foliage/domains/pages/be/service"
	platformlogging "github.com/foliage-cms/foliage/platform/go/logging"
	"github.com/foliage-cms/foliage/platform/go/requesttrace"
)

const (
	problemTypeValidation = "https://foliage-cms.org/problems/validation-error"
	problemTypeNotFound   = "https://foliage-cms.org/problems/not-found"
	problemTypeConflict   = "https://foliage-cms.org/problems/conflict"
	problemTypeInternal   = "https://foliage-cms.org/problems/internal-error"
	pagesBasePath         = "/api/v1/pages"
)

type operation string

const (
	createOperation       operation = "createPage"
	getOperation          operation = "getPage"
	updateOperation       operation = "updatePage"
	moveOperation         operation = "movePage"
	deleteOperation       operation = "deletePage"
	listRootsOperation    operation = "listRootPages"
	listChildrenOperation operation = "listChildPages"
	setContentOperation   operation = "setPageContent"
	getContentOperation   operation = "getPageContent"
	listContentOperation  operation = "listPageContent"
)

// Handler exposes the pages service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("pages service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Routes returns a standalone router with the pages endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Register mounts the pages endpoints on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/pages", h.createPage)
	r.Get("/pages/roots", h.listRoots)
	r.Get("/pages/{pageID}", h.getPage)
	r.Patch("/pages/{pageID}", h.updatePage)
	r.Delete("/pages/{pageID}", h.deletePage)
	r.Post("/pages/{pageID}/move", h.movePage)
	r.Get("/pages/{pageID}/children", h.listChildren)
	r.Get("/pages/{pageID}/content", h.listContent)
	r.Put("/pages/{pageID}/content/{language}/{contentType}", h.setContent)
	r.Get("/pages/{pageID}/content/{language}/{contentType}", h.getContent)
	r.Get("/templates", h.listTemplates)
}

type pageResponse struct {
	PageID           uuid.UUID   `json:"pageId"`
	ParentID         *uuid.UUID  `json:"parentId,omitempty"`
	Position         int         `json:"position"`
	Template         string      `json:"template"`
	Status           string      `json:"status"`
	FreezeDate       *time.Time  `json:"freezeDate,omitempty"`
	RedirectToPageID *uuid.UUID  `json:"redirectToPageId,omitempty"`
	DelegateTo       *string     `json:"delegateTo,omitempty"`
	Slug             string      `json:"slug"`
	Title            string      `json:"title"`
	SiteIDs          []uuid.UUID `json:"siteIds"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

type pageListResponse struct {
	Items []pageResponse `json:"items"`
}

type contentResponse struct {
	PageID    uuid.UUID `json:"pageId"`
	Language  string    `json:"language"`
	Type      string    `json:"type"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type contentListResponse struct {
	Items []contentResponse `json:"items"`
}

type templateResponse struct {
	Name         string                `json:"name"`
	Label        string                `json:"label"`
	Placeholders []placeholderResponse `json:"placeholders,omitempty"`
}

type placeholderResponse struct {
	Name   string `json:"name"`
	Widget string `json:"widget,omitempty"`
}

type templateListResponse struct {
	Items []templateResponse `json:"items"`
}

type problemDetails struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail"`
	Errors map[string][]string `json:"errors,omitempty"`
}

type createPageRequest struct {
	Title      string      `json:"title"`
	Slug       string      `json:"slug"`
	Language   string      `json:"language,omitempty"`
	Template   string      `json:"template,omitempty"`
	Status     string      `json:"status,omitempty"`
	FreezeDate *time.Time  `json:"freezeDate,omitempty"`
	RedirectTo *uuid.UUID  `json:"redirectToPageId,omitempty"`
	DelegateTo *string     `json:"delegateTo,omitempty"`
	TargetID   *uuid.UUID  `json:"targetId,omitempty"`
	Position   string      `json:"position,omitempty"`
	SiteIDs    []uuid.UUID `json:"siteIds,omitempty"`
}

type updatePageRequest struct {
	Language   string      `json:"language,omitempty"`
	Title      *string     `json:"title,omitempty"`
	Slug       *string     `json:"slug,omitempty"`
	Template   *string     `json:"template,omitempty"`
	Status     *string     `json:"status,omitempty"`
	FreezeDate *time.Time  `json:"freezeDate,omitempty"`
	RedirectTo *uuid.UUID  `json:"redirectToPageId,omitempty"`
	DelegateTo *string     `json:"delegateTo,omitempty"`
	TargetID   *uuid.UUID  `json:"targetId,omitempty"`
	Position   string      `json:"position,omitempty"`
	SiteIDs    []uuid.UUID `json:"siteIds,omitempty"`
}

type movePageRequest struct {
	TargetID uuid.UUID `json:"targetId"`
	Position string    `json:"position"`
}

type setContentRequest struct {
	Body string `json:"body"`
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, h.buildProblem("Invalid request body", "request body must be valid JSON", problemTypeValidation, http.StatusBadRequest, nil))
		return
	}

	page, err := h.svc.Create(r.Context(), service.CreateInput{
		Title:      req.Title,
		Slug:       req.Slug,
		Language:   req.Language,
		Template:   req.Template,
		Status:     req.Status,
		FreezeDate: req.FreezeDate,
		RedirectTo: req.RedirectTo,
		DelegateTo: req.DelegateTo,
		TargetID:   req.TargetID,
		Position:   req.Position,
		SiteIDs:    req.SiteIDs,
	})
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, createOperation))
		return
	}

	h.auditLog(r.Context(), "page created", zap.String("page_id", page.ID.String()), zap.String("slug", page.Slug))

	w.Header().Set("Location", fmt.Sprintf("%s/%s", pagesBasePath, page.ID))
	h.writeJSON(w, http.StatusCreated, toAPIPage(page))
}

func (h *Handler) getPage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(w, r)
	if !ok {
		return
	}

	page, err := h.svc.Get(r.Context(), id, r.URL.Query().Get("language"))
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, getOperation))
		return
	}

	h.writeJSON(w, http.StatusOK, toAPIPage(page))
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(w, r)
	if !ok {
		return
	}

	var req updatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, h.buildProblem("Invalid request body", "request body must be valid JSON", problemTypeValidation, http.StatusBadRequest, nil))
		return
	}

	page, err := h.svc.Update(r.Context(), id, service.UpdateInput{
		Language:   req.Language,
		Title:      req.Title,
		Slug:       req.Slug,
		Template:   req.Template,
		Status:     req.Status,
		FreezeDate: req.FreezeDate,
		RedirectTo: req.RedirectTo,
		DelegateTo: req.DelegateTo,
		TargetID:   req.TargetID,
		Position:   req.Position,
		SiteIDs:    req.SiteIDs,
	})
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, updateOperation))
		return
	}

	h.auditLog(r.Context(), "page updated", zap.String("page_id", page.ID.String()))

	h.writeJSON(w, http.StatusOK, toAPIPage(page))
}

func (h *Handler) movePage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(w, r)
	if !ok {
		return
	}

	var req movePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, h.buildProblem("Invalid request body", "request body must be valid JSON", problemTypeValidation, http.StatusBadRequest, nil))
		return
	}

	page, err := h.svc.Move(r.Context(), id, req.TargetID, req.Position)
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, moveOperation))
		return
	}

	h.auditLog(r.Context(), "page moved",
		zap.String("page_id", page.ID.String()),
		zap.String("target_id", req.TargetID.String()),
		zap.String("position", req.Position),
	)

	h.writeJSON(w, http.StatusOK, toAPIPage(page))
}

func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, deleteOperation))
		return
	}

	h.auditLog(r.Context(), "page deleted", zap.String("page_id", id.String()))

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRoots(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.ListRoots(r.Context(), r.URL.Query().Get("language"))
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, listRootsOperation))
		return
	}

	h.writeJSON(w, http.StatusOK, toAPIPageList(pages))
}

func (h *Handler) listChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(w, r)
	if !ok {
		return
	}

	pages, err := h.svc.ListChildren(r.Context(), id, r.URL.Query().Get("language"))
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, listChildrenOperation))
		return
	}

	h.writeJSON(w, http.StatusOK, toAPIPageList(pages))
}

func (h *Handler) setContent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(w, r)
	if !ok {
		return
	}

	var req setContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, h.buildProblem("Invalid request body", "request body must be valid JSON", problemTypeValidation, http.StatusBadRequest, nil))
		return
	}

	entry, err := h.svc.SetContent(r.Context(), id, chi.URLParam(r, "language"), chi.URLParam(r, "contentType"), req.Body)
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, setContentOperation))
		return
	}

	h.auditLog(r.Context(), "page content updated",
		zap.String("page_id", id.String()),
		zap.String("language", entry.Language),
		zap.String("content_type", entry.Type),
	)

	h.writeJSON(w, http.StatusOK, toAPIContent(entry))
}

func (h *Handler) getContent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(w, r)
	if !ok {
		return
	}

	fallback := r.URL.Query().Get("fallback") == "true"

	entry, err := h.svc.GetContent(r.Context(), id, chi.URLParam(r, "language"), chi.URLParam(r, "contentType"), fallback)
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, getContentOperation))
		return
	}

	h.writeJSON(w, http.StatusOK, toAPIContent(entry))
}

func (h *Handler) listContent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(w, r)
	if !ok {
		return
	}

	entries, err := h.svc.ListContent(r.Context(), id)
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, listContentOperation))
		return
	}

	items := make([]contentResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toAPIContent(entry))
	}

	h.writeJSON(w, http.StatusOK, contentListResponse{Items: items})
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	choices := h.svc.Templates()

	items := make([]templateResponse, 0, len(choices))
	for _, tpl := range choices {
		item := templateResponse{Name: tpl.Name, Label: tpl.Label}
		for _, p := range tpl.Placeholders {
			item.Placeholders = append(item.Placeholders, placeholderResponse{Name: p.Name, Widget: p.Widget})
		}
		items = append(items, item)
	}

	h.writeJSON(w, http.StatusOK, templateListResponse{Items: items})
}

func (h *Handler) pageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "pageID"))
	if err != nil {
		h.writeProblem(w, h.buildProblem("Validation failed", "pageID must be a valid UUID", problemTypeValidation, http.StatusBadRequest, nil))
		return uuid.Nil, false
	}
	return id, true
}

func toAPIPage(page service.Page) pageResponse {
	return pageResponse{
		PageID:           page.ID,
		ParentID:         page.ParentID,
		Position:         page.Position,
		Template:         page.Template,
		Status:           page.Status,
		FreezeDate:       page.FreezeDate,
		RedirectToPageID: page.RedirectTo,
		DelegateTo:       page.DelegateTo,
		Slug:             page.Slug,
		Title:            page.Title,
		SiteIDs:          page.SiteIDs,
		CreatedAt:        page.CreatedAt,
		UpdatedAt:        page.UpdatedAt,
	}
}

func toAPIPageList(pages []service.Page) pageListResponse {
	items := make([]pageResponse, 0, len(pages))
	for _, page := range pages {
		items = append(items, toAPIPage(page))
	}
	return pageListResponse{Items: items}
}

func toAPIContent(entry service.ContentEntry) contentResponse {
	return contentResponse{
		PageID:    entry.PageID,
		Language:  entry.Language,
		Type:      entry.Type,
		Body:      entry.Body,
		UpdatedAt: entry.UpdatedAt,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeProblem(w http.ResponseWriter, problem problemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	if err := json.NewEncoder(w).Encode(problem); err != nil {
		h.logger.Error("encode problem response", zap.Error(err))
	}
}

func (h *Handler) problemForError(ctx context.Context, err error, op operation) problemDetails {
	status, title, detail, problemType, fieldErrors := classifyError(err)

	logger := h.loggerFrom(ctx)
	fields := append([]zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}, auditFields(ctx)...)

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("pages operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("page not found", append(fields, zap.Error(err))...)
	default:
		logger.Warn("pages request rejected", append(fields, zap.Error(err))...)
	}

	return h.buildProblem(title, detail, problemType, status, fieldErrors)
}

func classifyError(err error) (status int, title, detail, problemType string, fieldErrors service.FieldErrors) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			problemTypeValidation,
			validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"page not found",
			problemTypeNotFound,
			nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			"Conflict",
			"page already exists",
			problemTypeConflict,
			nil
	case errors.Is(err, service.ErrInvalidMove):
		return http.StatusBadRequest,
			"Validation failed",
			"a page cannot move into its own subtree",
			problemTypeValidation,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal error",
			"an unexpected error occurred",
			problemTypeInternal,
			nil
	}
}

func (h *Handler) buildProblem(title, detail, problemType string, status int, fieldErrors service.FieldErrors) problemDetails {
	problem := problemDetails{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
	if len(fieldErrors) > 0 {
		problem.Errors = fieldErrors
	}
	return problem
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}

// auditLog records a completed mutation together with who performed it.
func (h *Handler) auditLog(ctx context.Context, msg string, fields ...zap.Field) {
	h.loggerFrom(ctx).Info(msg, append(fields, auditFields(ctx)...)...)
}

func auditFields(ctx context.Context) []zap.Field {
	info := requesttrace.FromContextOrAnonymous(ctx)
	fields := []zap.Field{zap.String("actor_kind", string(info.ActorKind))}
	if info.EditorID != nil {
		fields = append(fields, zap.String("editor_id", *info.EditorID))
	}
	return fields
}
