package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rankforge/rankforge/internal/apierr"
)

// Service encapsulates subscription and usage business logic.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a billing Service backed by the given connection pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), logger: logger}
}

// CreateSubscription opens a one-month subscription for a tenant. A tenant
// may have at most one active subscription.
func (s *Service) CreateSubscription(ctx context.Context, tenantID uuid.UUID, planType PlanType) (Subscription, error) {
	if _, err := s.store.ActiveSubscription(ctx, tenantID); err == nil {
		return Subscription{}, apierr.Conflict("tenant already has an active subscription")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, apierr.Internal("checking active subscription", err)
	}

	now := time.Now().UTC()
	sub, err := s.store.CreateSubscription(ctx, tenantID, planType, now, now.AddDate(0, 1, 0))
	if err != nil {
		return Subscription{}, apierr.Internal("creating subscription", err)
	}
	return sub, nil
}

// GetActiveSubscription returns a tenant's active subscription.
func (s *Service) GetActiveSubscription(ctx context.Context, tenantID uuid.UUID) (Subscription, error) {
	sub, err := s.store.ActiveSubscription(ctx, tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, apierr.NotFound("no active subscription for tenant")
	}
	if err != nil {
		return Subscription{}, apierr.Internal("fetching subscription", err)
	}
	return sub, nil
}

// Cancel marks a subscription to not renew at period end.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.store.CancelAtPeriodEnd(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apierr.NotFound("subscription not found")
		}
		return apierr.Internal("cancelling subscription", err)
	}
	return nil
}

// UsageCheck computes the {current, limit, withinLimit} gauges for a
// subscription's tenant, per §4.6.
func (s *Service) UsageCheck(ctx context.Context, subscriptionID uuid.UUID) (UsageCheckResult, error) {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UsageCheckResult{}, apierr.NotFound("subscription not found")
		}
		return UsageCheckResult{}, apierr.Internal("fetching subscription", err)
	}

	limits := LimitsFor(sub.PlanType)

	requests, err := s.store.MonthToDateRequests(ctx, sub.TenantID)
	if err != nil {
		return UsageCheckResult{}, apierr.Internal("summing month-to-date requests", err)
	}
	leaderboards, err := s.store.LeaderboardCount(ctx, sub.TenantID)
	if err != nil {
		return UsageCheckResult{}, apierr.Internal("counting leaderboards", err)
	}
	apiKeys, err := s.store.ActiveApiKeyCount(ctx, sub.TenantID)
	if err != nil {
		return UsageCheckResult{}, apierr.Internal("counting active api keys", err)
	}

	result := UsageCheckResult{
		Requests:     newGauge(requests, limits.Requests),
		Leaderboards: newGauge(leaderboards, limits.Leaderboards),
		ApiKeys:      newGauge(apiKeys, limits.ApiKeys),
	}
	result.WithinLimits = result.Requests.WithinLimit && result.Leaderboards.WithinLimit && result.ApiKeys.WithinLimit
	return result, nil
}

// UsageCheckForTenant is a convenience wrapper for callers (the gateway's
// write-admission path) that only have a tenant ID on hand.
func (s *Service) UsageCheckForTenant(ctx context.Context, tenantID uuid.UUID) (UsageCheckResult, error) {
	sub, err := s.store.ActiveSubscription(ctx, tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		// No subscription on file defaults to the free plan's limits so the
		// hot path never hard-fails on a missing billing row.
		limits := LimitsFor(PlanFree)
		requests, rErr := s.store.MonthToDateRequests(ctx, tenantID)
		if rErr != nil {
			return UsageCheckResult{}, apierr.Internal("summing month-to-date requests", rErr)
		}
		leaderboards, lErr := s.store.LeaderboardCount(ctx, tenantID)
		if lErr != nil {
			return UsageCheckResult{}, apierr.Internal("counting leaderboards", lErr)
		}
		apiKeys, kErr := s.store.ActiveApiKeyCount(ctx, tenantID)
		if kErr != nil {
			return UsageCheckResult{}, apierr.Internal("counting active api keys", kErr)
		}
		result := UsageCheckResult{
			Requests:     newGauge(requests, limits.Requests),
			Leaderboards: newGauge(leaderboards, limits.Leaderboards),
			ApiKeys:      newGauge(apiKeys, limits.ApiKeys),
		}
		result.WithinLimits = result.Requests.WithinLimit && result.Leaderboards.WithinLimit && result.ApiKeys.WithinLimit
		return result, nil
	}
	if err != nil {
		return UsageCheckResult{}, apierr.Internal("fetching subscription", err)
	}
	return s.UsageCheck(ctx, sub.ID)
}

// RecordUsage upserts today's usage row for a tenant/project, adding deltas.
func (s *Service) RecordUsage(ctx context.Context, tenantID, projectID uuid.UUID, scoreUpdates, leaderboardReads int64) error {
	if err := s.store.RecordUsage(ctx, tenantID, projectID, scoreUpdates, leaderboardReads); err != nil {
		return apierr.Internal("recording usage", err)
	}
	return nil
}

// TenantUsage returns the usage history for a tenant.
func (s *Service) TenantUsage(ctx context.Context, tenantID uuid.UUID) ([]UsageRecord, error) {
	recs, err := s.store.TenantUsage(ctx, tenantID)
	if err != nil {
		return nil, apierr.Internal("listing usage records", err)
	}
	return recs, nil
}
