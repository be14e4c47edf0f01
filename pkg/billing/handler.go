package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rankforge/rankforge/internal/apierr"
	"github.com/rankforge/rankforge/internal/httpserver"
)

// Handler provides HTTP handlers for the internal-plane billing API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a billing Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with all billing routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/subscriptions", h.handleCreateSubscription)
	r.Get("/subscriptions/tenant/{tenantId}", h.handleGetByTenant)
	r.Patch("/subscriptions/{id}/cancel", h.handleCancel)
	r.Get("/subscriptions/{id}/usage-check", h.handleUsageCheck)
	r.Post("/usage/record", h.handleRecordUsage)
	r.Get("/usage/tenant/{tenantId}", h.handleTenantUsage)
	return r
}

type createSubscriptionRequest struct {
	TenantID string `json:"tenantId" validate:"required,uuid"`
	PlanType string `json:"planType" validate:"required,oneof=free pro enterprise"`
}

func (h *Handler) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid tenantId"))
		return
	}

	sub, err := h.service.CreateSubscription(r.Context(), tenantID, PlanType(req.PlanType))
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, sub)
}

func (h *Handler) handleGetByTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantId"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid tenantId"))
		return
	}

	sub, err := h.service.GetActiveSubscription(r.Context(), tenantID)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, sub)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid subscription id"))
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "cancel_at_period_end"})
}

func (h *Handler) handleUsageCheck(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid subscription id"))
		return
	}

	result, err := h.service.UsageCheck(r.Context(), id)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, result)
}

type recordUsageRequest struct {
	TenantID         string `json:"tenantId" validate:"required,uuid"`
	ProjectID        string `json:"projectId" validate:"required,uuid"`
	ScoreUpdates     int64  `json:"scoreUpdates" validate:"gte=0"`
	LeaderboardReads int64  `json:"leaderboardReads" validate:"gte=0"`
}

func (h *Handler) handleRecordUsage(w http.ResponseWriter, r *http.Request) {
	var req recordUsageRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	tenantID, err1 := uuid.Parse(req.TenantID)
	projectID, err2 := uuid.Parse(req.ProjectID)
	if err1 != nil || err2 != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid tenantId or projectId"))
		return
	}

	if err := h.service.RecordUsage(r.Context(), tenantID, projectID, req.ScoreUpdates, req.LeaderboardReads); err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *Handler) handleTenantUsage(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantId"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid tenantId"))
		return
	}

	recs, err := h.service.TenantUsage(r.Context(), tenantID)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"records": recs})
}
