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

	"github.com/foliage-cms/foliage/domains/sites/be/service"
	platformlogging "github.com/foliage-cms/foliage/platform/go/logging"
	"github.com/foliage-cms/foliage/platform/go/requesttrace"
)

const (
	problemTypeValidation = "https://foliage-cms.org/problems/validation-error"
	problemTypeNotFound   = "https://foliage-cms.org/problems/not-found"
	problemTypeConflict   = "https://foliage-cms.org/problems/conflict"
	problemTypeInternal   = "https://foliage-cms.org/problems/internal-error"
	sitesBasePath         = "/api/v1/sites"
)

type operation string

const (
	createOperation operation = "createSite"
	getOperation    operation = "getSite"
	listOperation   operation = "listSites"
	deleteOperation operation = "deleteSite"
)

// Handler exposes the sites service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("sites service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Routes returns a standalone router with the sites endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Register mounts the sites endpoints on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sites", h.createSite)
	r.Get("/sites", h.listSites)
	r.Get("/sites/{siteID}", h.getSite)
	r.Delete("/sites/{siteID}", h.deleteSite)
}

type siteResponse struct {
	SiteID    uuid.UUID `json:"siteId"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type siteListResponse struct {
	Items []siteResponse `json:"items"`
}

type createSiteRequest struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

type problemDetails struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func (h *Handler) createSite(w http.ResponseWriter, r *http.Request) {
	var req createSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, problemDetails{
			Type:   problemTypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: "request body must be valid JSON",
		})
		return
	}

	site, err := h.svc.Create(r.Context(), service.CreateInput{
		Slug:   req.Slug,
		Name:   req.Name,
		Domain: req.Domain,
	})
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, createOperation))
		return
	}

	h.auditLog(r.Context(), "site created", zap.String("site_id", site.ID.String()), zap.String("slug", site.Slug))

	w.Header().Set("Location", fmt.Sprintf("%s/%s", sitesBasePath, site.ID))
	h.writeJSON(w, http.StatusCreated, toAPISite(site))
}

func (h *Handler) getSite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.siteID(w, r)
	if !ok {
		return
	}

	site, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, getOperation))
		return
	}

	h.writeJSON(w, http.StatusOK, toAPISite(site))
}

func (h *Handler) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.svc.List(r.Context())
	if err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, listOperation))
		return
	}

	items := make([]siteResponse, 0, len(sites))
	for _, site := range sites {
		items = append(items, toAPISite(site))
	}

	h.writeJSON(w, http.StatusOK, siteListResponse{Items: items})
}

func (h *Handler) deleteSite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.siteID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeProblem(w, h.problemForError(r.Context(), err, deleteOperation))
		return
	}

	h.auditLog(r.Context(), "site deleted", zap.String("site_id", id.String()))

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) siteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "siteID"))
	if err != nil {
		h.writeProblem(w, problemDetails{
			Type:   problemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "siteID must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

func toAPISite(site service.Site) siteResponse {
	return siteResponse{
		SiteID:    site.ID,
		Slug:      site.Slug,
		Name:      site.Name,
		Domain:    site.Domain,
		CreatedAt: site.CreatedAt,
		UpdatedAt: site.UpdatedAt,
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
		logger.Error("sites operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("site not found", append(fields, zap.Error(err))...)
	default:
		logger.Warn("sites request rejected", append(fields, zap.Error(err))...)
	}

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
			"site not found",
			problemTypeNotFound,
			nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			"Conflict",
			"site already exists",
			problemTypeConflict,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal error",
			"an unexpected error occurred",
			problemTypeInternal,
			nil
	}
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
