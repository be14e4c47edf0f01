package leaderboard

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rankforge/rankforge/internal/apierr"
	"github.com/rankforge/rankforge/internal/httpserver"
	"github.com/rankforge/rankforge/pkg/gateway"
)

// Handler exposes Leaderboard Control's tenant-facing HTTP surface.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a leaderboard Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Mount registers leaderboard and season endpoints onto r, the gateway's
// tenant-facing router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/leaderboards", h.create)
	r.Get("/leaderboards", h.list)
	r.Get("/leaderboards/{id}", h.get)
	r.Put("/leaderboards/{id}", h.update)
	r.Delete("/leaderboards/{id}", h.delete)

	r.Post("/leaderboards/{id}/seasons", h.createSeason)
	r.Get("/leaderboards/{id}/seasons", h.listSeasons)
	r.Patch("/seasons/{seasonId}/activate", h.activateSeason)
	r.Patch("/seasons/{seasonId}/deactivate", h.deactivateSeason)
	r.Delete("/seasons/{seasonId}", h.deleteSeason)
}

type createRequest struct {
	Name          string         `json:"name" validate:"required"`
	Description   string         `json:"description"`
	SortOrder     string         `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	UpdateMode    string         `json:"updateMode" validate:"omitempty,oneof=replace increment best"`
	ResetSchedule string         `json:"resetSchedule"`
	TTLDays       int            `json:"ttlDays" validate:"gte=0"`
	Metadata      map[string]any `json:"metadata"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}

	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	lb, err := h.service.Create(r.Context(), tenantID, projectID, CreateRequest{
		Name: req.Name, Description: req.Description, SortOrder: req.SortOrder,
		UpdateMode: req.UpdateMode, ResetSchedule: req.ResetSchedule, TTLDays: req.TTLDays, Metadata: req.Metadata,
	})
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, lb)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest(err.Error()))
		return
	}

	lbs, total, err := h.service.List(r.Context(), tenantID, projectID, params.PageSize, params.Offset)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(lbs, params, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid leaderboard id"))
		return
	}
	lb, err := h.service.Get(r.Context(), tenantID, projectID, id)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, lb)
}

type updateRequest struct {
	Name          *string        `json:"name"`
	Description   *string        `json:"description"`
	SortOrder     *string        `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	UpdateMode    *string        `json:"updateMode" validate:"omitempty,oneof=replace increment best"`
	ResetSchedule *string        `json:"resetSchedule"`
	TTLDays       *int           `json:"ttlDays" validate:"omitempty,gte=0"`
	IsActive      *bool          `json:"isActive"`
	Metadata      map[string]any `json:"metadata"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid leaderboard id"))
		return
	}

	var req updateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	lb, err := h.service.Update(r.Context(), tenantID, projectID, id, UpdateRequest{
		Name: req.Name, Description: req.Description, SortOrder: req.SortOrder,
		UpdateMode: req.UpdateMode, ResetSchedule: req.ResetSchedule,
		TTLDays: req.TTLDays, IsActive: req.IsActive, Metadata: req.Metadata,
	})
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, lb)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid leaderboard id"))
		return
	}
	if err := h.service.Delete(r.Context(), tenantID, projectID, id); err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createSeasonRequest struct {
	Name     string     `json:"name" validate:"required"`
	StartsAt time.Time  `json:"startsAt" validate:"required"`
	EndsAt   *time.Time `json:"endsAt"`
}

func (h *Handler) createSeason(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}
	leaderboardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid leaderboard id"))
		return
	}

	var req createSeasonRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	season, err := h.service.CreateSeason(r.Context(), tenantID, projectID, leaderboardID, req.Name, req.StartsAt, req.EndsAt)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, season)
}

func (h *Handler) listSeasons(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}
	leaderboardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid leaderboard id"))
		return
	}
	seasons, err := h.service.ListSeasons(r.Context(), tenantID, projectID, leaderboardID)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"seasons": seasons})
}

func (h *Handler) activateSeason(w http.ResponseWriter, r *http.Request) {
	h.setSeasonActive(w, r, true)
}

func (h *Handler) deactivateSeason(w http.ResponseWriter, r *http.Request) {
	h.setSeasonActive(w, r, false)
}

func (h *Handler) setSeasonActive(w http.ResponseWriter, r *http.Request, active bool) {
	seasonID, err := uuid.Parse(chi.URLParam(r, "seasonId"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid season id"))
		return
	}
	if err := h.service.SetSeasonActive(r.Context(), seasonID, active); err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteSeason(w http.ResponseWriter, r *http.Request) {
	seasonID, err := uuid.Parse(chi.URLParam(r, "seasonId"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid season id"))
		return
	}
	if err := h.service.DeleteSeason(r.Context(), seasonID); err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
