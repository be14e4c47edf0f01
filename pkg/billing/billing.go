// Package billing tracks subscriptions, plan limits, and daily usage, and
// admits or rejects writes against the monthly quota (§4.6).
package billing

import (
	"time"

	"github.com/google/uuid"
)

type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanPro        PlanType = "pro"
	PlanEnterprise PlanType = "enterprise"
)

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusPastDue   SubscriptionStatus = "past_due"
)

// Subscription is a tenant's billing plan for a period. At most one
// Subscription per tenant may have StatusActive at a time.
type Subscription struct {
	ID                uuid.UUID          `json:"id"`
	TenantID          uuid.UUID          `json:"tenantId"`
	PlanType          PlanType           `json:"planType"`
	Status            SubscriptionStatus `json:"status"`
	PeriodStart       time.Time          `json:"periodStart"`
	PeriodEnd         time.Time          `json:"periodEnd"`
	CancelAtPeriodEnd bool               `json:"cancelAtPeriodEnd"`
}

// UsageRecord is the daily, per-project usage rollup used for monthly
// quota admission. Unique per (tenantId, projectId, date).
type UsageRecord struct {
	TenantID         uuid.UUID `json:"tenantId"`
	ProjectID        uuid.UUID `json:"projectId"`
	Date             string    `json:"date"` // YYYY-MM-DD, UTC
	ScoreUpdates     int64     `json:"scoreUpdates"`
	LeaderboardReads int64     `json:"leaderboardReads"`
	TotalRequests    int64     `json:"totalRequests"`
}

// PlanLimits are the monthly caps for a plan (§4.6).
type PlanLimits struct {
	Requests     int64
	Leaderboards int64
	ApiKeys      int64
}

var limitsByPlan = map[PlanType]PlanLimits{
	PlanFree:       {Requests: 10_000, Leaderboards: 5, ApiKeys: 2},
	PlanPro:        {Requests: 1_000_000, Leaderboards: 50, ApiKeys: 10},
	PlanEnterprise: {Requests: 10_000_000, Leaderboards: 9999, ApiKeys: 9999},
}

// LimitsFor returns the plan limits for planType, defaulting to free for an
// unrecognized value.
func LimitsFor(planType PlanType) PlanLimits {
	if l, ok := limitsByPlan[planType]; ok {
		return l
	}
	return limitsByPlan[PlanFree]
}

// Gauge is a single {current, limit, withinLimit} triple from UsageCheck.
type Gauge struct {
	Current     int64 `json:"current"`
	Limit       int64 `json:"limit"`
	WithinLimit bool  `json:"withinLimit"`
}

// UsageCheckResult is the admission-control response for a subscription.
type UsageCheckResult struct {
	Requests     Gauge `json:"requests"`
	Leaderboards Gauge `json:"leaderboards"`
	ApiKeys      Gauge `json:"apiKeys"`
	WithinLimits bool  `json:"withinLimits"`
}

func newGauge(current, limit int64) Gauge {
	return Gauge{Current: current, Limit: limit, WithinLimit: current < limit}
}
