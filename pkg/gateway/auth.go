package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge/internal/apierr"
	"github.com/rankforge/rankforge/internal/keys"
	"github.com/rankforge/rankforge/internal/telemetry"
	"github.com/rankforge/rankforge/pkg/identity"
)

// apiKeyHeader is the configured header name API keys are presented in
// (§4.2 step 1).
const apiKeyHeader = "X-Api-Key"

// Validator resolves a plaintext API key to its tenant/project/plan. Only
// identity.Service's ValidateApiKey method is used.
type Validator interface {
	ValidateApiKey(ctx context.Context, plaintext string) (identity.ValidationResult, error)
}

// Authenticator wraps handlers with API-key auth, memoizing positive results
// in the shared cache for a bounded TTL (§4.1, §4.2 step 2).
type Authenticator struct {
	validator Validator
	rdb       *redis.Client
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(validator Validator, rdb *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Authenticator {
	return &Authenticator{validator: validator, rdb: rdb, cacheTTL: cacheTTL, logger: logger}
}

// Middleware extracts the API key, resolves it (via cache or Validator), and
// stores the resulting TenantContext for downstream handlers. A negative
// result is never cached, preserving revocation latency.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get(apiKeyHeader)
		if rawKey == "" {
			telemetry.AuthCacheHitsTotal.WithLabelValues("missing").Inc()
			apierr.Write(w, r, a.logger, apierr.Unauthenticated("missing "+apiKeyHeader+" header"))
			return
		}

		result, err := a.resolve(r.Context(), rawKey)
		if err != nil {
			apierr.Write(w, r, a.logger, apierr.Wrap(apierr.KindUpstreamUnavailable, "resolving API key", err))
			return
		}
		if !result.Valid {
			apierr.Write(w, r, a.logger, apierr.Unauthenticated("invalid or revoked API key"))
			return
		}

		tc := TenantContext{TenantID: result.TenantID, ProjectID: result.ProjectID, PlanType: result.PlanType}
		ctx := NewContext(r.Context(), tc)

		r.Header.Set("X-Tenant-Id", tc.TenantID.String())
		r.Header.Set("X-Project-Id", tc.ProjectID.String())
		if tc.PlanType != "" {
			r.Header.Set("X-Plan-Type", tc.PlanType)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) resolve(ctx context.Context, rawKey string) (identity.ValidationResult, error) {
	cacheKey := keys.AuthCache(rawKey)

	cached, err := a.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var result identity.ValidationResult
		if jsonErr := json.Unmarshal([]byte(cached), &result); jsonErr == nil {
			telemetry.AuthCacheHitsTotal.WithLabelValues("hit").Inc()
			return result, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		a.logger.Warn("auth cache read failed, falling through to validator", "error", err)
	}

	telemetry.AuthCacheHitsTotal.WithLabelValues("miss").Inc()
	result, err := a.validator.ValidateApiKey(ctx, rawKey)
	if err != nil {
		return identity.ValidationResult{}, err
	}

	if result.Valid {
		if body, marshalErr := json.Marshal(result); marshalErr == nil {
			if err := a.rdb.Set(ctx, cacheKey, body, a.cacheTTL).Err(); err != nil {
				a.logger.Warn("auth cache write failed", "error", err)
			}
		}
	}

	return result, nil
}

// InternalSecretAuth gates internal-plane routes (identity/billing CRUD)
// behind a shared secret compared in constant time.
func InternalSecretAuth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Internal-Secret")
			if !constantTimeEqual(presented, secret) {
				apierr.Write(w, r, logger, apierr.Forbidden("invalid internal secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
