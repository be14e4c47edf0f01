package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge/internal/keys"
)

const usageRetention = 90 * 24 * time.Hour

// statusCapturingWriter records the status code so usage tracking can skip
// 4xx/5xx responses per §4.2.2.
type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// UsageTracker increments per-tenant/per-project request counters on every
// non-4xx, non-5xx tenanted response (§4.2.2).
type UsageTracker struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewUsageTracker creates a UsageTracker.
func NewUsageTracker(rdb *redis.Client, logger *slog.Logger) *UsageTracker {
	return &UsageTracker{rdb: rdb, logger: logger}
}

// Middleware wraps next, recording usage after the response is emitted.
func (u *UsageTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		if sw.status >= 400 {
			return
		}
		tc, ok := FromContext(r.Context())
		if !ok {
			return
		}

		if err := u.record(context.WithoutCancel(r.Context()), tc); err != nil {
			u.logger.Warn("recording usage", "tenant_id", tc.TenantID, "error", err)
		}
	})
}

// record performs the batched, atomic increment described in §4.2.2: the
// tenant-date hash (requests + hourly bucket) and the tenant-project-date
// hash, each re-armed with a 90-day expiry on every write.
func (u *UsageTracker) record(ctx context.Context, tc TenantContext) error {
	now := time.Now().UTC()
	hourField := "hour:" + now.Format("15")

	tenantKey := keys.UsageTenant(tc.TenantID, now)
	projectKey := keys.UsageProject(tc.TenantID, tc.ProjectID, now)

	pipe := u.rdb.TxPipeline()
	pipe.HIncrBy(ctx, tenantKey, "requests", 1)
	pipe.HIncrBy(ctx, tenantKey, hourField, 1)
	pipe.Expire(ctx, tenantKey, usageRetention)
	pipe.HIncrBy(ctx, projectKey, "requests", 1)
	pipe.HIncrBy(ctx, projectKey, hourField, 1)
	pipe.Expire(ctx, projectKey, usageRetention)
	_, err := pipe.Exec(ctx)
	return err
}
