package scoring

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rankforge/rankforge/internal/apierr"
	"github.com/rankforge/rankforge/internal/httpserver"
	"github.com/rankforge/rankforge/pkg/gateway"
)

// Handler exposes the scoring engine's tenant-facing HTTP surface.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a scoring Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Mount registers the scoring endpoints onto r. Expected to be called on a
// router already wrapped in the gateway middleware chain, which populates
// tenant/project context.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/scores", h.updateScore)
	r.Post("/scores/batch-update", h.batchUpdateScore)
	r.Get("/leaderboards/{leaderboardId}/top", h.top)
	r.Get("/leaderboards/{leaderboardId}/rank/{userId}", h.rankOf)
}

type updateScoreRequest struct {
	LeaderboardID string  `json:"leaderboardId" validate:"required,uuid"`
	UserID        string  `json:"userId" validate:"required"`
	Score         float64 `json:"score"`
	Increment     bool    `json:"increment"`
}

func (h *Handler) updateScore(w http.ResponseWriter, r *http.Request) {
	var req updateScoreRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}

	leaderboardID, err := uuid.Parse(req.LeaderboardID)
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid leaderboardId"))
		return
	}

	result, err := h.service.UpdateScore(r.Context(), tenantID, projectID, UpdateRequest{
		LeaderboardID: leaderboardID,
		UserID:        req.UserID,
		Score:         req.Score,
		Increment:     req.Increment,
	})
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

type batchUpdateScoreRequest struct {
	Updates []updateScoreRequest `json:"updates" validate:"required,min=1,max=500,dive"`
}

func (h *Handler) batchUpdateScore(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateScoreRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}

	reqs := make([]UpdateRequest, len(req.Updates))
	for i, u := range req.Updates {
		leaderboardID, err := uuid.Parse(u.LeaderboardID)
		if err != nil {
			apierr.Write(w, r, h.logger, apierr.BadRequest("invalid leaderboardId in updates["+strconv.Itoa(i)+"]"))
			return
		}
		reqs[i] = UpdateRequest{LeaderboardID: leaderboardID, UserID: u.UserID, Score: u.Score, Increment: u.Increment}
	}

	results, err := h.service.BatchUpdateScore(r.Context(), tenantID, projectID, reqs)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) top(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}

	leaderboardID, err := uuid.Parse(chi.URLParam(r, "leaderboardId"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid leaderboardId"))
		return
	}

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest(err.Error()))
		return
	}

	result, err := h.service.Top(r.Context(), tenantID, projectID, leaderboardID, int64(params.PageSize), int64(params.Offset))
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(result.Entries, params, int(result.Total)))
}

func (h *Handler) rankOf(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := gateway.TenantFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, h.logger, apierr.Unauthenticated("missing tenant context"))
		return
	}

	leaderboardID, err := uuid.Parse(chi.URLParam(r, "leaderboardId"))
	if err != nil {
		apierr.Write(w, r, h.logger, apierr.BadRequest("invalid leaderboardId"))
		return
	}
	userID := chi.URLParam(r, "userId")

	withNeighbors := r.URL.Query().Get("withNeighbors") == "true"
	neighborCount := parseIntDefault(r.URL.Query().Get("neighborCount"), 5)
	if neighborCount < 0 || neighborCount > 50 {
		neighborCount = 5
	}

	result, err := h.service.RankOf(r.Context(), tenantID, projectID, leaderboardID, userID, withNeighbors, neighborCount)
	if err != nil {
		apierr.Write(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

func parseIntDefault(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
