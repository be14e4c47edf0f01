package scoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge/internal/keys"
)

// Store holds the raw Redis sorted-set and metadata-hash operations.
type Store struct {
	rdb *redis.Client
}

// NewStore creates a Store over the given Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Metadata fetches a leaderboard's metadata hash, returning defaults when
// it hasn't been written yet (§4.3.1 step 1).
func (s *Store) Metadata(ctx context.Context, tenantID, projectID, leaderboardID uuid.UUID) (Metadata, error) {
	key := keys.Meta(tenantID, projectID, leaderboardID)
	vals, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Metadata{}, fmt.Errorf("fetching metadata hash: %w", err)
	}
	if len(vals) == 0 {
		return defaultMetadata(), nil
	}

	meta := Metadata{
		Name:       vals["name"],
		TenantID:   tenantID,
		ProjectID:  projectID,
		UpdateMode: UpdateMode(valueOr(vals["updateMode"], string(ModeReplace))),
		SortOrder:  SortOrder(valueOr(vals["sortOrder"], string(SortDesc))),
	}
	if ttl, err := strconv.Atoi(vals["ttlDays"]); err == nil {
		meta.TTLDays = ttl
	}
	return meta, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Score returns the current score for a member, or nil if absent.
func (s *Store) Score(ctx context.Context, key, member string) (*float64, error) {
	v, err := s.rdb.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching score: %w", err)
	}
	return &v, nil
}

// Set issues an absolute ZADD.
func (s *Store) Set(ctx context.Context, key, member string, score float64) error {
	return s.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// Increment issues a ZINCRBY and returns the resulting score.
func (s *Store) Increment(ctx context.Context, key, member string, delta float64) (float64, error) {
	return s.rdb.ZIncrBy(ctx, key, delta, member).Result()
}

// ArmTTL (re-)arms the sorted-set key's expiry. Idempotent.
func (s *Store) ArmTTL(ctx context.Context, key string, ttlDays int) error {
	if ttlDays <= 0 {
		return nil
	}
	return s.rdb.Expire(ctx, key, time.Duration(ttlDays)*24*time.Hour).Err()
}

// Rank returns a member's 1-based rank under sortOrder, or nil if absent.
func (s *Store) Rank(ctx context.Context, key, member string, sortOrder SortOrder) (*int64, error) {
	var rank int64
	var err error
	if sortOrder == SortDesc {
		rank, err = s.rdb.ZRevRank(ctx, key, member).Result()
	} else {
		rank, err = s.rdb.ZRank(ctx, key, member).Result()
	}
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching rank: %w", err)
	}
	oneBased := rank + 1
	return &oneBased, nil
}

// Range returns entries [offset, offset+limit) ordered by sortOrder, with
// continuous 1-based ranks starting at offset+1.
func (s *Store) Range(ctx context.Context, key string, sortOrder SortOrder, offset, limit int64) ([]Entry, error) {
	if limit <= 0 {
		// A stop index of -1 would mean "through the last member" to Redis.
		return []Entry{}, nil
	}
	start, stop := offset, offset+limit-1
	var zs []redis.Z
	var err error
	if sortOrder == SortDesc {
		zs, err = s.rdb.ZRevRangeWithScores(ctx, key, start, stop).Result()
	} else {
		zs, err = s.rdb.ZRangeWithScores(ctx, key, start, stop).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("ranging sorted set: %w", err)
	}

	entries := make([]Entry, len(zs))
	for i, z := range zs {
		entries[i] = Entry{
			Rank:   offset + int64(i) + 1,
			UserID: z.Member.(string),
			Score:  z.Score,
		}
	}
	return entries, nil
}

// Count returns the number of members in the sorted set.
func (s *Store) Count(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("counting sorted set: %w", err)
	}
	return n, nil
}
