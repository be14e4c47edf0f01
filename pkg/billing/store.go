package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for subscriptions and usage records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a billing Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ActiveSubscription returns the current active subscription for a tenant,
// or pgx.ErrNoRows if none exists.
func (s *Store) ActiveSubscription(ctx context.Context, tenantID uuid.UUID) (Subscription, error) {
	const query = `
		SELECT id, tenant_id, plan_type, status, period_start, period_end, cancel_at_period_end
		FROM subscriptions WHERE tenant_id = $1 AND status = 'active'
		ORDER BY period_start DESC LIMIT 1`
	var sub Subscription
	err := s.pool.QueryRow(ctx, query, tenantID).Scan(
		&sub.ID, &sub.TenantID, &sub.PlanType, &sub.Status, &sub.PeriodStart, &sub.PeriodEnd, &sub.CancelAtPeriodEnd,
	)
	return sub, err
}

// GetSubscription fetches a subscription by ID.
func (s *Store) GetSubscription(ctx context.Context, id uuid.UUID) (Subscription, error) {
	const query = `
		SELECT id, tenant_id, plan_type, status, period_start, period_end, cancel_at_period_end
		FROM subscriptions WHERE id = $1`
	var sub Subscription
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID, &sub.TenantID, &sub.PlanType, &sub.Status, &sub.PeriodStart, &sub.PeriodEnd, &sub.CancelAtPeriodEnd,
	)
	return sub, err
}

// CreateSubscription inserts a new subscription for a tenant.
func (s *Store) CreateSubscription(ctx context.Context, tenantID uuid.UUID, planType PlanType, periodStart, periodEnd time.Time) (Subscription, error) {
	const query = `
		INSERT INTO subscriptions (tenant_id, plan_type, status, period_start, period_end)
		VALUES ($1, $2, 'active', $3, $4)
		RETURNING id, tenant_id, plan_type, status, period_start, period_end, cancel_at_period_end`
	var sub Subscription
	err := s.pool.QueryRow(ctx, query, tenantID, planType, periodStart, periodEnd).Scan(
		&sub.ID, &sub.TenantID, &sub.PlanType, &sub.Status, &sub.PeriodStart, &sub.PeriodEnd, &sub.CancelAtPeriodEnd,
	)
	if err != nil {
		return Subscription{}, fmt.Errorf("inserting subscription: %w", err)
	}
	return sub, nil
}

// CancelAtPeriodEnd marks a subscription to not renew.
func (s *Store) CancelAtPeriodEnd(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE subscriptions SET cancel_at_period_end = true WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("cancelling subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MonthToDateRequests sums total_requests for a tenant's current UTC month.
func (s *Store) MonthToDateRequests(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(total_requests), 0) FROM usage_records
		WHERE tenant_id = $1 AND date >= date_trunc('month', now() AT TIME ZONE 'utc')::date`
	var n int64
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("summing usage records: %w", err)
	}
	return n, nil
}

// LeaderboardCount returns the number of leaderboards owned by a tenant.
func (s *Store) LeaderboardCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	const query = `
		SELECT count(*) FROM leaderboards l
		JOIN projects p ON p.id = l.project_id
		WHERE p.tenant_id = $1`
	var n int64
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting leaderboards: %w", err)
	}
	return n, nil
}

// ActiveApiKeyCount returns the number of non-revoked API keys for a tenant.
func (s *Store) ActiveApiKeyCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	const query = `
		SELECT count(*) FROM api_keys k
		JOIN projects p ON p.id = k.project_id
		WHERE p.tenant_id = $1 AND k.revoked_at IS NULL`
	var n int64
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting active api keys: %w", err)
	}
	return n, nil
}

// RecordUsage upserts today's usage row, adding the given deltas.
func (s *Store) RecordUsage(ctx context.Context, tenantID, projectID uuid.UUID, scoreUpdates, leaderboardReads int64) error {
	const query = `
		INSERT INTO usage_records (tenant_id, project_id, date, score_updates, leaderboard_reads, total_requests)
		VALUES ($1, $2, (now() AT TIME ZONE 'utc')::date, $3, $4, $3 + $4)
		ON CONFLICT (tenant_id, project_id, date) DO UPDATE SET
			score_updates     = usage_records.score_updates + excluded.score_updates,
			leaderboard_reads = usage_records.leaderboard_reads + excluded.leaderboard_reads,
			total_requests    = usage_records.total_requests + excluded.total_requests`
	_, err := s.pool.Exec(ctx, query, tenantID, projectID, scoreUpdates, leaderboardReads)
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

// TenantUsage returns every usage row for a tenant across all projects,
// newest date first.
func (s *Store) TenantUsage(ctx context.Context, tenantID uuid.UUID) ([]UsageRecord, error) {
	const query = `
		SELECT tenant_id, project_id, date, score_updates, leaderboard_reads, total_requests
		FROM usage_records WHERE tenant_id = $1 ORDER BY date DESC`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing usage records: %w", err)
	}
	defer rows.Close()

	var out []UsageRecord
	for rows.Next() {
		var rec UsageRecord
		var date time.Time
		if err := rows.Scan(&rec.TenantID, &rec.ProjectID, &date, &rec.ScoreUpdates, &rec.LeaderboardReads, &rec.TotalRequests); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		rec.Date = date.Format("2006-01-02")
		out = append(out, rec)
	}
	return out, rows.Err()
}
