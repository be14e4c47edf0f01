package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge/internal/keys"
)

// Projection wires the Worker's three handlers to the relational store (for
// score.updated) and the Redis metadata keyspace (for the leaderboard
// lifecycle subjects), per §4.5.
type Projection struct {
	db     *pgxpool.Pool
	rdb    *redis.Client
	logger *slog.Logger
}

// NewProjection creates a Projection.
func NewProjection(db *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) *Projection {
	return &Projection{db: db, rdb: rdb, logger: logger}
}

// Register attaches the projection's handlers to a Worker.
func (p *Projection) Register(w *Worker) {
	w.Handle(SubjectScoreUpdated, p.handleScoreUpdated)
	w.Handle(SubjectLeaderboardCreated, p.handleLeaderboardCreated)
	w.Handle(SubjectLeaderboardDeleted, p.handleLeaderboardDeleted)
}

// handleScoreUpdated inserts an append-only ScoreEvent row, deduplicating on
// the event id so redelivery is safe.
func (p *Projection) handleScoreUpdated(ctx context.Context, eventID uuid.UUID, payload json.RawMessage) error {
	var body ScoreUpdatedPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("decoding score.updated payload: %w", err)
	}

	const query = `
		INSERT INTO score_events (id, tenant_id, project_id, leaderboard_id, user_id, score, increment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`
	_, err := p.db.Exec(ctx, query,
		eventID, body.TenantID, body.ProjectID, body.LeaderboardID, body.UserID, body.Score, body.Increment, body.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting score event: %w", err)
	}
	return nil
}

// handleLeaderboardCreated upserts the metadata hash without a TTL — only
// the score set itself expires.
func (p *Projection) handleLeaderboardCreated(ctx context.Context, _ uuid.UUID, payload json.RawMessage) error {
	var body LeaderboardCreatedPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("decoding leaderboard.created payload: %w", err)
	}

	ttlDays := 0
	if body.TTLDays != nil {
		ttlDays = *body.TTLDays
	}

	metaKey := keys.Meta(body.TenantID, body.ProjectID, body.LeaderboardID)
	err := p.rdb.HSet(ctx, metaKey, map[string]any{
		"name":       body.Name,
		"projectId":  body.ProjectID.String(),
		"tenantId":   body.TenantID.String(),
		"createdAt":  body.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		"ttlDays":    ttlDays,
		"updateMode": body.UpdateMode,
		"sortOrder":  body.SortOrder,
	}).Err()
	if err != nil {
		return fmt.Errorf("upserting leaderboard metadata: %w", err)
	}
	return nil
}

// handleLeaderboardDeleted purges the sorted set and its metadata hash.
func (p *Projection) handleLeaderboardDeleted(ctx context.Context, _ uuid.UUID, payload json.RawMessage) error {
	var body LeaderboardDeletedPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("decoding leaderboard.deleted payload: %w", err)
	}

	scoreKey := keys.Score(body.TenantID, body.ProjectID, body.LeaderboardID)
	metaKey := keys.Meta(body.TenantID, body.ProjectID, body.LeaderboardID)
	if err := p.rdb.Del(ctx, scoreKey, metaKey).Err(); err != nil {
		return fmt.Errorf("deleting leaderboard keys: %w", err)
	}
	return nil
}
