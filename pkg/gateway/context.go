// Package gateway implements the authenticated ingress path shared by every
// tenant-facing route: API-key resolution with a bounded-TTL auth cache,
// atomic token-bucket rate limiting, tenant-context propagation, and usage
// accounting (§4.2).
package gateway

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const tenantCtxKey ctxKey = "gateway_tenant_context"

// TenantContext is the request-scoped metadata propagated to downstream
// components after successful authentication (§4.2 step 4).
type TenantContext struct {
	TenantID  uuid.UUID
	ProjectID uuid.UUID
	PlanType  string
}

// NewContext stores the tenant context on ctx.
func NewContext(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, tenantCtxKey, tc)
}

// FromContext extracts the tenant context, if any.
func FromContext(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(tenantCtxKey).(TenantContext)
	return tc, ok
}

// TenantFromContext is a convenience accessor for the common case of needing
// just the tenant/project IDs.
func TenantFromContext(ctx context.Context) (tenantID, projectID uuid.UUID, ok bool) {
	tc, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return tc.TenantID, tc.ProjectID, true
}
