package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the relational persistence for leaderboards/seasons.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanLeaderboard(row pgx.Row) (Leaderboard, error) {
	var lb Leaderboard
	var metaBytes []byte
	var resetSchedule pgtype.Text
	err := row.Scan(
		&lb.ID, &lb.ProjectID, &lb.TenantID, &lb.Name, &lb.Description,
		&lb.SortOrder, &lb.UpdateMode, &resetSchedule, &lb.TTLDays, &lb.IsActive,
		&metaBytes, &lb.CreatedAt, &lb.UpdatedAt,
	)
	if err != nil {
		return Leaderboard{}, err
	}
	lb.ResetSchedule = resetSchedule.String
	if len(metaBytes) > 0 {
		_ = json.Unmarshal(metaBytes, &lb.Metadata)
	}
	return lb, nil
}

const leaderboardColumns = `id, project_id, tenant_id, name, description, sort_order, update_mode, reset_schedule, ttl_days, is_active, metadata, created_at, updated_at`

// Create inserts a new leaderboard row.
func (s *Store) Create(ctx context.Context, tenantID, projectID uuid.UUID, req CreateRequest) (Leaderboard, error) {
	metaBytes, err := json.Marshal(req.Metadata)
	if err != nil {
		return Leaderboard{}, fmt.Errorf("marshaling metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO leaderboards (id, project_id, tenant_id, name, description, sort_order, update_mode, reset_schedule, ttl_days, is_active, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, $10, now(), now())
		RETURNING %s`, leaderboardColumns)

	row := s.pool.QueryRow(ctx, query,
		uuid.New(), projectID, tenantID, req.Name, req.Description,
		req.SortOrder, req.UpdateMode, req.ResetSchedule, req.TTLDays, metaBytes,
	)
	return scanLeaderboard(row)
}

// Get fetches a leaderboard scoped to tenant/project.
func (s *Store) Get(ctx context.Context, tenantID, projectID, id uuid.UUID) (Leaderboard, error) {
	query := fmt.Sprintf(`SELECT %s FROM leaderboards WHERE id = $1 AND tenant_id = $2 AND project_id = $3`, leaderboardColumns)
	row := s.pool.QueryRow(ctx, query, id, tenantID, projectID)
	return scanLeaderboard(row)
}

// ListByProject lists leaderboards for a project, newest first, page by page.
func (s *Store) ListByProject(ctx context.Context, tenantID, projectID uuid.UUID, limit, offset int) ([]Leaderboard, error) {
	query := fmt.Sprintf(`SELECT %s FROM leaderboards WHERE tenant_id = $1 AND project_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`, leaderboardColumns)
	rows, err := s.pool.Query(ctx, query, tenantID, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing leaderboards: %w", err)
	}
	defer rows.Close()

	var out []Leaderboard
	for rows.Next() {
		lb, err := scanLeaderboard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning leaderboard: %w", err)
		}
		out = append(out, lb)
	}
	return out, rows.Err()
}

// CountByProject returns the total number of leaderboards in a project,
// independent of any page window, for populating pagination totals.
func (s *Store) CountByProject(ctx context.Context, tenantID, projectID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM leaderboards WHERE tenant_id = $1 AND project_id = $2`, tenantID, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting leaderboards: %w", err)
	}
	return count, nil
}

// Update persists the already-merged leaderboard state.
func (s *Store) Update(ctx context.Context, lb Leaderboard) (Leaderboard, error) {
	metaBytes, err := json.Marshal(lb.Metadata)
	if err != nil {
		return Leaderboard{}, fmt.Errorf("marshaling metadata: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE leaderboards
		SET name = $1, description = $2, sort_order = $3, update_mode = $4, reset_schedule = $5,
		    ttl_days = $6, is_active = $7, metadata = $8, updated_at = now()
		WHERE id = $9 AND tenant_id = $10 AND project_id = $11
		RETURNING %s`, leaderboardColumns)

	row := s.pool.QueryRow(ctx, query,
		lb.Name, lb.Description, lb.SortOrder, lb.UpdateMode, lb.ResetSchedule,
		lb.TTLDays, lb.IsActive, metaBytes, lb.ID, lb.TenantID, lb.ProjectID,
	)
	return scanLeaderboard(row)
}

// Delete removes a leaderboard row. Returns pgx.ErrNoRows if none matched.
func (s *Store) Delete(ctx context.Context, tenantID, projectID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leaderboards WHERE id = $1 AND tenant_id = $2 AND project_id = $3`, id, tenantID, projectID)
	if err != nil {
		return fmt.Errorf("deleting leaderboard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CreateSeason inserts a new season row.
func (s *Store) CreateSeason(ctx context.Context, leaderboardID uuid.UUID, name string, startsAt time.Time, endsAt *time.Time) (Season, error) {
	var end pgtype.Timestamptz
	if endsAt != nil {
		end = pgtype.Timestamptz{Time: *endsAt, Valid: true}
	}

	var season Season
	var endRow pgtype.Timestamptz
	err := s.pool.QueryRow(ctx, `
		INSERT INTO seasons (id, leaderboard_id, name, starts_at, ends_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())
		RETURNING id, leaderboard_id, name, starts_at, ends_at, is_active, created_at`,
		uuid.New(), leaderboardID, name, startsAt, end,
	).Scan(&season.ID, &season.LeaderboardID, &season.Name, &season.StartsAt, &endRow, &season.IsActive, &season.CreatedAt)
	if err != nil {
		return Season{}, fmt.Errorf("creating season: %w", err)
	}
	if endRow.Valid {
		season.EndsAt = &endRow.Time
	}
	return season, nil
}

// ListSeasonsByLeaderboard lists every season for a leaderboard.
func (s *Store) ListSeasonsByLeaderboard(ctx context.Context, leaderboardID uuid.UUID) ([]Season, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, leaderboard_id, name, starts_at, ends_at, is_active, created_at
		FROM seasons WHERE leaderboard_id = $1 ORDER BY starts_at DESC`, leaderboardID)
	if err != nil {
		return nil, fmt.Errorf("listing seasons: %w", err)
	}
	defer rows.Close()

	var out []Season
	for rows.Next() {
		var season Season
		var endRow pgtype.Timestamptz
		if err := rows.Scan(&season.ID, &season.LeaderboardID, &season.Name, &season.StartsAt, &endRow, &season.IsActive, &season.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning season: %w", err)
		}
		if endRow.Valid {
			season.EndsAt = &endRow.Time
		}
		out = append(out, season)
	}
	return out, rows.Err()
}

// SetSeasonActive activates or deactivates a season.
func (s *Store) SetSeasonActive(ctx context.Context, seasonID uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE seasons SET is_active = $1 WHERE id = $2`, active, seasonID)
	if err != nil {
		return fmt.Errorf("updating season: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteSeason removes a season row.
func (s *Store) DeleteSeason(ctx context.Context, seasonID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM seasons WHERE id = $1`, seasonID)
	if err != nil {
		return fmt.Errorf("deleting season: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
