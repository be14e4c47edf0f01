package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge/internal/apierr"
	"github.com/rankforge/rankforge/internal/keys"
	"github.com/rankforge/rankforge/internal/telemetry"
)

// bucketParams are the per-plan token-bucket parameters (§4.2.1).
type bucketParams struct {
	capacity float64
	refill   float64 // tokens/sec
}

var plansByType = map[string]bucketParams{
	"free":       {capacity: 10, refill: 1},
	"pro":        {capacity: 100, refill: 50},
	"enterprise": {capacity: 500, refill: 200},
}

func paramsFor(planType string) bucketParams {
	if p, ok := plansByType[planType]; ok {
		return p
	}
	return plansByType["free"]
}

// rateLimitScript performs the read-refill-consume-write sequence as a
// single atomic operation, as required by §4.2.1 ("any non-atomic
// implementation is incorrect"). KEYS[1] is the bucket key; ARGV is
// capacity, refill rate, cost, now (ms), ttl (seconds).
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local tokens = capacity
local lastRefill = now

local state = redis.call("HMGET", key, "tokens", "lastRefillMillis")
if state[1] and state[2] then
  tokens = tonumber(state[1])
  lastRefill = tonumber(state[2])
  local elapsedSeconds = (now - lastRefill) / 1000.0
  if elapsedSeconds > 0 then
    tokens = math.min(capacity, tokens + elapsedSeconds * refill)
  end
end

local allowed = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
end

redis.call("HSET", key, "tokens", tostring(tokens), "lastRefillMillis", tostring(now))
redis.call("EXPIRE", key, ttl)

return {allowed, tostring(tokens)}
`)

// RateLimitResult is the outcome of one bucket consumption.
type RateLimitResult struct {
	Allowed   bool
	Capacity  float64
	Remaining float64
	Refill    float64
	ResetAt   time.Time
}

// RateLimiter enforces the per-tenant token bucket described in §4.2.1.
type RateLimiter struct {
	rdb      *redis.Client
	keyTTL   time.Duration
	failOpen bool
}

// NewRateLimiter creates a RateLimiter. Unreachable cache state fails open
// (logged), not closed.
func NewRateLimiter(rdb *redis.Client, keyTTL time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, keyTTL: keyTTL, failOpen: true}
}

// Allow consumes one token (cost=1) from tenantID's bucket for planType.
func (rl *RateLimiter) Allow(ctx context.Context, tenantID uuid.UUID, planType string) (RateLimitResult, error) {
	params := paramsFor(planType)
	key := keys.RateLimit(tenantID)
	now := float64(time.Now().UnixMilli())

	res, err := rateLimitScript.Run(ctx, rl.rdb, []string{key}, params.capacity, params.refill, 1, now, int(rl.keyTTL.Seconds())).Result()
	if err != nil {
		return RateLimitResult{}, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return RateLimitResult{}, fmt.Errorf("unexpected rate limit script result: %v", res)
	}
	allowed, _ := vals[0].(int64)
	var remaining float64
	fmt.Sscanf(fmt.Sprint(vals[1]), "%f", &remaining)

	resetIn := time.Duration(math.Ceil((params.capacity-remaining)/params.refill)) * time.Second
	return RateLimitResult{
		Allowed:   allowed == 1,
		Capacity:  params.capacity,
		Remaining: remaining,
		Refill:    params.refill,
		ResetAt:   time.Now().Add(resetIn),
	}, nil
}

// Middleware applies the rate limiter using the plan from the request's
// tenant context, which must already be populated by Authenticator.
func (rl *RateLimiter) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := FromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r) // no tenant context (e.g. unauthenticated route); nothing to limit
				return
			}

			result, err := rl.Allow(r.Context(), tc.TenantID, tc.PlanType)
			if err != nil {
				if !rl.failOpen {
					apierr.Write(w, r, logger, apierr.UpstreamUnavailable("rate limiter unavailable"))
					return
				}
				logger.Warn("rate limiter unreachable, failing open", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", int64(result.Capacity)))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int64(result.Remaining)))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

			if !result.Allowed {
				retryAfter := int64(math.Ceil((1 - result.Remaining) / result.Refill))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				telemetry.RateLimitRejectionsTotal.WithLabelValues(tc.TenantID.String()).Inc()
				apierr.Write(w, r, logger, apierr.RateLimited("rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
