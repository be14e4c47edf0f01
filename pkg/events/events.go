// Package events publishes and consumes the three lifecycle subjects the
// rest of the system agrees on (§4.5): score.updated, leaderboard.created,
// leaderboard.deleted. Redis Streams (go-redis/v9) provides the durable,
// at-least-once, consumer-group transport; the sorted-set store remains the
// real-time source of truth, so publish failures are logged, never fatal.
package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubjectScoreUpdated       = "score.updated"
	SubjectLeaderboardCreated = "leaderboard.created"
	SubjectLeaderboardDeleted = "leaderboard.deleted"
)

// streamName maps a subject to its Redis Stream key.
func streamName(subject string) string {
	return "rankforge:events:" + subject
}

// ScoreUpdatedPayload is the body of a score.updated event.
type ScoreUpdatedPayload struct {
	TenantID      uuid.UUID `json:"tenantId"`
	ProjectID     uuid.UUID `json:"projectId"`
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	UserID        string    `json:"userId"`
	Score         float64   `json:"score"`
	Increment     bool      `json:"increment"`
	Timestamp     time.Time `json:"timestamp"`
}

// LeaderboardCreatedPayload is the body of a leaderboard.created event. It
// also serves as the metadata re-sync event.
type LeaderboardCreatedPayload struct {
	Type          string    `json:"type"`
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	ProjectID     uuid.UUID `json:"projectId"`
	TenantID      uuid.UUID `json:"tenantId"`
	Name          string    `json:"name"`
	SortOrder     string    `json:"sortOrder"`
	UpdateMode    string    `json:"updateMode"`
	TTLDays       *int      `json:"ttlDays,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// LeaderboardDeletedPayload is the body of a leaderboard.deleted event.
type LeaderboardDeletedPayload struct {
	Type          string    `json:"type"`
	LeaderboardID uuid.UUID `json:"leaderboardId"`
	ProjectID     uuid.UUID `json:"projectId"`
	TenantID      uuid.UUID `json:"tenantId"`
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
}
