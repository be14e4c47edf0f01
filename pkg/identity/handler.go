package identity

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rankforge/rankforge/internal/apierr"
	"github.com/rankforge/rankforge/internal/httpserver"
)

// Handler provides HTTP handlers for the internal-plane identity API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates an identity Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with all identity routes mounted. Callers
// mount this behind internal-plane authentication (§6.1).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/tenants", h.handleCreateTenant)
	r.Post("/projects", h.handleCreateProject)
	r.Post("/api-keys", h.handleCreateApiKey)
	r.Post("/validate", h.handleValidate)
	return r
}

type createTenantRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.service.CreateTenant(r.Context(), req.Name, req.Email)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, t)
}

type createProjectRequest struct {
	TenantID string `json:"tenantId" validate:"required,uuid"`
	Name     string `json:"name" validate:"required"`
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid tenantId"))
		return
	}

	p, err := h.service.CreateProject(r.Context(), tenantID, req.Name)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, p)
}

type createApiKeyRequest struct {
	ProjectID string `json:"projectId" validate:"required,uuid"`
	Name      string `json:"name" validate:"required"`
}

type createApiKeyResponse struct {
	ApiKey
	Key string `json:"key"`
}

func (h *Handler) handleCreateApiKey(w http.ResponseWriter, r *http.Request) {
	var req createApiKeyRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid projectId"))
		return
	}

	result, err := h.service.CreateApiKey(r.Context(), projectID, req.Name)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, createApiKeyResponse{ApiKey: result.ApiKey, Key: result.PlainText})
}

type validateRequest struct {
	Key string `json:"key" validate:"required"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.ValidateApiKey(r.Context(), req.Key)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, result)
}
