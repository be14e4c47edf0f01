package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for tenants, projects, and API keys.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an identity Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateTenant inserts a new tenant.
func (s *Store) CreateTenant(ctx context.Context, name, email string) (Tenant, error) {
	const query = `INSERT INTO tenants (name, email) VALUES ($1, $2) RETURNING id, name, email, created_at`
	var t Tenant
	err := s.pool.QueryRow(ctx, query, name, email).Scan(&t.ID, &t.Name, &t.Email, &t.CreatedAt)
	if err != nil {
		return Tenant{}, fmt.Errorf("inserting tenant: %w", err)
	}
	return t, nil
}

// CreateProject inserts a new project under a tenant.
func (s *Store) CreateProject(ctx context.Context, tenantID uuid.UUID, name string) (Project, error) {
	const query = `INSERT INTO projects (tenant_id, name) VALUES ($1, $2) RETURNING id, tenant_id, name`
	var p Project
	err := s.pool.QueryRow(ctx, query, tenantID, name).Scan(&p.ID, &p.TenantID, &p.Name)
	if err != nil {
		return Project{}, fmt.Errorf("inserting project: %w", err)
	}
	return p, nil
}

// GetProject fetches a project by ID.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	const query = `SELECT id, tenant_id, name FROM projects WHERE id = $1`
	var p Project
	err := s.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.TenantID, &p.Name)
	if err != nil {
		return Project{}, fmt.Errorf("fetching project: %w", err)
	}
	return p, nil
}

// CountActiveApiKeys returns the number of non-revoked keys under a project's tenant.
func (s *Store) CountActiveApiKeys(ctx context.Context, tenantID uuid.UUID) (int, error) {
	const query = `
		SELECT count(*) FROM api_keys k
		JOIN projects p ON p.id = k.project_id
		WHERE p.tenant_id = $1 AND k.revoked_at IS NULL`
	var n int
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting active api keys: %w", err)
	}
	return n, nil
}

// CreateApiKey inserts a new API key row, storing only its adaptive hash.
func (s *Store) CreateApiKey(ctx context.Context, projectID uuid.UUID, name, keyHash string) (ApiKey, error) {
	const query = `
		INSERT INTO api_keys (project_id, name, key_hash)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, name, key_hash, last_used_at, revoked_at, created_at`
	var k ApiKey
	var lastUsed, revoked pgtype.Timestamptz
	err := s.pool.QueryRow(ctx, query, projectID, name, keyHash).Scan(
		&k.ID, &k.ProjectID, &k.Name, &k.KeyHash, &lastUsed, &revoked, &k.CreatedAt,
	)
	if err != nil {
		return ApiKey{}, fmt.Errorf("inserting api key: %w", err)
	}
	k.LastUsedAt = tsPtr(lastUsed)
	k.RevokedAt = tsPtr(revoked)
	return k, nil
}

// RevokeApiKey sets revoked_at on an API key, if not already revoked.
func (s *Store) RevokeApiKey(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListKeys returns all API keys belonging to a project.
func (s *Store) ListKeys(ctx context.Context, projectID uuid.UUID) ([]ApiKey, error) {
	const query = `
		SELECT id, project_id, name, key_hash, last_used_at, revoked_at, created_at
		FROM api_keys WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var out []ApiKey
	for rows.Next() {
		var k ApiKey
		var lastUsed, revoked pgtype.Timestamptz
		if err := rows.Scan(&k.ID, &k.ProjectID, &k.Name, &k.KeyHash, &lastUsed, &revoked, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		k.LastUsedAt = tsPtr(lastUsed)
		k.RevokedAt = tsPtr(revoked)
		out = append(out, k)
	}
	return out, rows.Err()
}

// candidateRow is a non-revoked key joined with its tenant/project/plan,
// for ValidateApiKey's constant-time scan.
type candidateRow struct {
	Key      ApiKey
	PlanType string
}

// ActiveCandidates returns every non-revoked API key along with its tenant's
// current plan type, filtering revoked keys out before any hash comparison
// happens (spec's "revoked-filter-first" discipline).
func (s *Store) ActiveCandidates(ctx context.Context) ([]candidateRow, error) {
	const query = `
		SELECT k.id, k.project_id, k.name, k.key_hash, k.last_used_at, k.revoked_at, k.created_at,
		       COALESCE(sub.plan_type, 'free') AS plan_type
		FROM api_keys k
		JOIN projects p ON p.id = k.project_id
		LEFT JOIN LATERAL (
			SELECT plan_type FROM subscriptions
			WHERE tenant_id = p.tenant_id AND status = 'active'
			ORDER BY period_start DESC LIMIT 1
		) sub ON true
		WHERE k.revoked_at IS NULL`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing active api key candidates: %w", err)
	}
	defer rows.Close()

	var out []candidateRow
	for rows.Next() {
		var c candidateRow
		var lastUsed, revoked pgtype.Timestamptz
		if err := rows.Scan(&c.Key.ID, &c.Key.ProjectID, &c.Key.Name, &c.Key.KeyHash, &lastUsed, &revoked, &c.Key.CreatedAt, &c.PlanType); err != nil {
			return nil, fmt.Errorf("scanning api key candidate: %w", err)
		}
		c.Key.LastUsedAt = tsPtr(lastUsed)
		c.Key.RevokedAt = tsPtr(revoked)
		out = append(out, c)
	}
	return out, rows.Err()
}

// TenantIDForProject resolves a project's owning tenant.
func (s *Store) TenantIDForProject(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	const query = `SELECT tenant_id FROM projects WHERE id = $1`
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query, projectID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolving tenant for project: %w", err)
	}
	return id, nil
}

// TouchLastUsed updates last_used_at for a key, best-effort.
func (s *Store) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) {
	const query = `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`
	_, _ = s.pool.Exec(ctx, query, id, at)
}

func tsPtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
