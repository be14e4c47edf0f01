package leaderboard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rankforge/rankforge/internal/apierr"
	"github.com/rankforge/rankforge/pkg/billing"
	"github.com/rankforge/rankforge/pkg/events"
)

// QuotaChecker admission-gates leaderboard creation against the tenant's
// monthly plan limit.
type QuotaChecker interface {
	UsageCheckForTenant(ctx context.Context, tenantID uuid.UUID) (billing.UsageCheckResult, error)
}

// Service implements Leaderboard Control (§4.4).
type Service struct {
	store     *Store
	publisher *events.Publisher
	quota     QuotaChecker
	logger    *slog.Logger
}

// NewService creates a leaderboard Service.
func NewService(store *Store, publisher *events.Publisher, quota QuotaChecker, logger *slog.Logger) *Service {
	return &Service{store: store, publisher: publisher, quota: quota, logger: logger}
}

// Create inserts a leaderboard and emits leaderboard.created (§4.4), after
// checking the tenant hasn't exhausted its monthly leaderboard quota.
func (s *Service) Create(ctx context.Context, tenantID, projectID uuid.UUID, req CreateRequest) (Leaderboard, error) {
	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}
	if req.UpdateMode == "" {
		req.UpdateMode = "replace"
	}

	check, err := s.quota.UsageCheckForTenant(ctx, tenantID)
	if err != nil {
		return Leaderboard{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "checking quota", err)
	}
	if !check.Leaderboards.WithinLimit {
		return Leaderboard{}, apierr.QuotaExceeded("leaderboard quota exceeded for this plan")
	}

	lb, err := s.store.Create(ctx, tenantID, projectID, req)
	if err != nil {
		return Leaderboard{}, apierr.Wrap(apierr.KindInternal, "creating leaderboard", err)
	}

	s.emitCreated(lb)
	return lb, nil
}

// Get fetches a leaderboard, translating a missing row to apierr.NotFound.
func (s *Service) Get(ctx context.Context, tenantID, projectID, id uuid.UUID) (Leaderboard, error) {
	lb, err := s.store.Get(ctx, tenantID, projectID, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Leaderboard{}, apierr.NotFound("leaderboard not found")
	}
	if err != nil {
		return Leaderboard{}, apierr.Wrap(apierr.KindInternal, "fetching leaderboard", err)
	}
	return lb, nil
}

// List returns one page of a project's leaderboards along with the total
// count across all pages.
func (s *Service) List(ctx context.Context, tenantID, projectID uuid.UUID, limit, offset int) ([]Leaderboard, int, error) {
	lbs, err := s.store.ListByProject(ctx, tenantID, projectID, limit, offset)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindInternal, "listing leaderboards", err)
	}
	total, err := s.store.CountByProject(ctx, tenantID, projectID)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindInternal, "counting leaderboards", err)
	}
	return lbs, total, nil
}

// Update applies a partial update and re-emits leaderboard.created when a
// metadata-hash-affecting field changed.
func (s *Service) Update(ctx context.Context, tenantID, projectID, id uuid.UUID, req UpdateRequest) (Leaderboard, error) {
	current, err := s.Get(ctx, tenantID, projectID, id)
	if err != nil {
		return Leaderboard{}, err
	}

	resync := metadataAffecting(current, req)
	next := applyUpdate(current, req)

	updated, err := s.store.Update(ctx, next)
	if errors.Is(err, pgx.ErrNoRows) {
		return Leaderboard{}, apierr.NotFound("leaderboard not found")
	}
	if err != nil {
		return Leaderboard{}, apierr.Wrap(apierr.KindInternal, "updating leaderboard", err)
	}

	if resync {
		s.emitCreated(updated)
	}
	return updated, nil
}

// Delete removes a leaderboard and emits leaderboard.deleted, instructing
// the Worker to purge the sorted set and metadata hash.
func (s *Service) Delete(ctx context.Context, tenantID, projectID, id uuid.UUID) error {
	lb, err := s.Get(ctx, tenantID, projectID, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, tenantID, projectID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apierr.NotFound("leaderboard not found")
		}
		return apierr.Wrap(apierr.KindInternal, "deleting leaderboard", err)
	}

	s.publisher.PublishAsync(events.SubjectLeaderboardDeleted, events.LeaderboardDeletedPayload{
		Type:          "leaderboard.deleted",
		LeaderboardID: lb.ID,
		ProjectID:     lb.ProjectID,
		TenantID:      lb.TenantID,
		Name:          lb.Name,
		Timestamp:     time.Now().UTC(),
	})
	return nil
}

func (s *Service) emitCreated(lb Leaderboard) {
	var ttlDays *int
	if lb.TTLDays > 0 {
		ttlDays = &lb.TTLDays
	}
	s.publisher.PublishAsync(events.SubjectLeaderboardCreated, events.LeaderboardCreatedPayload{
		Type:          "leaderboard.created",
		LeaderboardID: lb.ID,
		ProjectID:     lb.ProjectID,
		TenantID:      lb.TenantID,
		Name:          lb.Name,
		SortOrder:     lb.SortOrder,
		UpdateMode:    lb.UpdateMode,
		TTLDays:       ttlDays,
		Timestamp:     time.Now().UTC(),
	})
}

// CreateSeason creates a season under a leaderboard, after confirming the
// leaderboard exists and belongs to tenant/project.
func (s *Service) CreateSeason(ctx context.Context, tenantID, projectID, leaderboardID uuid.UUID, name string, startsAt time.Time, endsAt *time.Time) (Season, error) {
	if _, err := s.Get(ctx, tenantID, projectID, leaderboardID); err != nil {
		return Season{}, err
	}
	season, err := s.store.CreateSeason(ctx, leaderboardID, name, startsAt, endsAt)
	if err != nil {
		return Season{}, apierr.Wrap(apierr.KindInternal, "creating season", err)
	}
	return season, nil
}

// ListSeasons lists every season for a leaderboard.
func (s *Service) ListSeasons(ctx context.Context, tenantID, projectID, leaderboardID uuid.UUID) ([]Season, error) {
	if _, err := s.Get(ctx, tenantID, projectID, leaderboardID); err != nil {
		return nil, err
	}
	seasons, err := s.store.ListSeasonsByLeaderboard(ctx, leaderboardID)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "listing seasons", err)
	}
	return seasons, nil
}

// SetSeasonActive activates or deactivates a season.
func (s *Service) SetSeasonActive(ctx context.Context, seasonID uuid.UUID, active bool) error {
	if err := s.store.SetSeasonActive(ctx, seasonID, active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apierr.NotFound("season not found")
		}
		return apierr.Wrap(apierr.KindInternal, "updating season", err)
	}
	return nil
}

// DeleteSeason removes a season.
func (s *Service) DeleteSeason(ctx context.Context, seasonID uuid.UUID) error {
	if err := s.store.DeleteSeason(ctx, seasonID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apierr.NotFound("season not found")
		}
		return apierr.Wrap(apierr.KindInternal, "deleting season", err)
	}
	return nil
}
