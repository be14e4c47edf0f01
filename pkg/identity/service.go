package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/rankforge/rankforge/internal/apierr"
)

// bcryptCost is the adaptive work factor for key hashing. Spec.md §4.1
// requires a work factor of at least 10; bcrypt.DefaultCost is 10.
const bcryptCost = bcrypt.DefaultCost

// keyPrefix marks every issued API key so operators can recognize them in logs.
const keyPrefix = "ak_"

// Service encapsulates tenant, project, and API-key business logic.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates an identity Service backed by the given connection pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), logger: logger}
}

// CreateTenant registers a new tenant.
func (s *Service) CreateTenant(ctx context.Context, name, email string) (Tenant, error) {
	t, err := s.store.CreateTenant(ctx, name, email)
	if err != nil {
		return Tenant{}, apierr.Wrap(apierr.KindConflict, "tenant could not be created (email may already exist)", err)
	}
	return t, nil
}

// CreateProject registers a new project under a tenant.
func (s *Service) CreateProject(ctx context.Context, tenantID uuid.UUID, name string) (Project, error) {
	p, err := s.store.CreateProject(ctx, tenantID, name)
	if err != nil {
		return Project{}, apierr.Internal("creating project", err)
	}
	return p, nil
}

// CreateApiKeyResult carries the plaintext key, shown exactly once.
type CreateApiKeyResult struct {
	ApiKey
	PlainText string
}

// CreateApiKey mints a new key for a project: a 256-bit random secret,
// URL-safe encoded and prefixed "ak_", whose bcrypt hash alone is persisted.
func (s *Service) CreateApiKey(ctx context.Context, projectID uuid.UUID, name string) (CreateApiKeyResult, error) {
	plain, err := generateKey()
	if err != nil {
		return CreateApiKeyResult{}, apierr.Internal("generating api key", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return CreateApiKeyResult{}, apierr.Internal("hashing api key", err)
	}

	row, err := s.store.CreateApiKey(ctx, projectID, name, string(hash))
	if err != nil {
		return CreateApiKeyResult{}, apierr.Internal("storing api key", err)
	}

	return CreateApiKeyResult{ApiKey: row, PlainText: plain}, nil
}

// RotateApiKey revokes an existing key and issues a replacement in one call,
// so there is never more than one usable key for a given logical slot.
func (s *Service) RotateApiKey(ctx context.Context, oldID, projectID uuid.UUID, name string) (CreateApiKeyResult, error) {
	if err := s.store.RevokeApiKey(ctx, oldID); err != nil {
		return CreateApiKeyResult{}, apierr.NotFound("api key not found")
	}
	return s.CreateApiKey(ctx, projectID, name)
}

// RevokeApiKey invalidates a key. Callers MUST also invalidate any cached
// positive validation for it (the gateway's auth cache).
func (s *Service) RevokeApiKey(ctx context.Context, id uuid.UUID) error {
	if err := s.store.RevokeApiKey(ctx, id); err != nil {
		return apierr.NotFound("api key not found")
	}
	return nil
}

// ListKeys returns every key (active and revoked) belonging to a project.
func (s *Service) ListKeys(ctx context.Context, projectID uuid.UUID) ([]ApiKey, error) {
	keys, err := s.store.ListKeys(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("listing api keys", err)
	}
	return keys, nil
}

// ValidateApiKey resolves a plaintext key to its tenant/project/plan. Revoked
// keys are filtered out before any hash comparison (§4.1): only active
// candidates are scanned, and each comparison runs in constant time via
// bcrypt's own constant-time byte comparison.
func (s *Service) ValidateApiKey(ctx context.Context, plaintext string) (ValidationResult, error) {
	if len(plaintext) == 0 {
		return ValidationResult{}, nil
	}

	candidates, err := s.store.ActiveCandidates(ctx)
	if err != nil {
		return ValidationResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "identity store unavailable", err)
	}

	for _, c := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(c.Key.KeyHash), []byte(plaintext)) != nil {
			continue
		}

		tenantID, err := s.store.TenantIDForProject(ctx, c.Key.ProjectID)
		if err != nil {
			return ValidationResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "resolving tenant for key", err)
		}

		s.store.TouchLastUsed(ctx, c.Key.ID, time.Now().UTC())

		return ValidationResult{
			Valid:     true,
			TenantID:  tenantID,
			ProjectID: c.Key.ProjectID,
			PlanType:  c.PlanType,
		}, nil
	}

	return ValidationResult{}, nil
}

// CountActiveApiKeys returns the number of active keys for a tenant, for
// quota enforcement (plan limit "Active API keys").
func (s *Service) CountActiveApiKeys(ctx context.Context, tenantID uuid.UUID) (int, error) {
	n, err := s.store.CountActiveApiKeys(ctx, tenantID)
	if err != nil {
		return 0, apierr.Internal("counting active api keys", err)
	}
	return n, nil
}

func generateKey() (string, error) {
	b := make([]byte, 32) // 256 bits
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return keyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}
