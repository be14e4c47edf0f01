// Package identity manages tenants, projects, and API keys: the only
// external identity surface this system exposes (§4.1).
package identity

import (
	"time"

	"github.com/google/uuid"
)

// Tenant owns projects; deleting a tenant cascades to everything beneath it.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Project scopes leaderboards and API keys under a tenant.
type Project struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantId"`
	Name     string    `json:"name"`
}

// ApiKey is the persisted record of an issued key. The plaintext is never
// stored; only KeyHash, produced by an adaptive hash, survives creation.
type ApiKey struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  uuid.UUID  `json:"projectId"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ValidationResult is what the gateway gets back from ValidateApiKey.
type ValidationResult struct {
	Valid     bool
	TenantID  uuid.UUID
	ProjectID uuid.UUID
	PlanType  string
}
