package scoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge/internal/apierr"
	"github.com/rankforge/rankforge/internal/keys"
	"github.com/rankforge/rankforge/internal/telemetry"
	"github.com/rankforge/rankforge/pkg/billing"
	"github.com/rankforge/rankforge/pkg/events"
)

// QuotaChecker admission-gates scoring writes against the tenant's monthly
// request quota. Reads are never quota-gated — only the rate limiter
// applies to them.
type QuotaChecker interface {
	UsageCheckForTenant(ctx context.Context, tenantID uuid.UUID) (billing.UsageCheckResult, error)
	RecordUsage(ctx context.Context, tenantID, projectID uuid.UUID, scoreUpdates, leaderboardReads int64) error
}

// Service implements the Scoring Engine (§4.3).
type Service struct {
	store     *Store
	publisher *events.Publisher
	quota     QuotaChecker
	logger    *slog.Logger
}

// NewService creates a scoring Service.
func NewService(rdb *redis.Client, publisher *events.Publisher, quota QuotaChecker, logger *slog.Logger) *Service {
	return &Service{store: NewStore(rdb), publisher: publisher, quota: quota, logger: logger}
}

// recordUsageAsync mirrors events.Publisher.PublishAsync's pattern: usage
// accounting must never slow down or fail the originating request.
func (s *Service) recordUsageAsync(tenantID, projectID uuid.UUID, scoreUpdates, leaderboardReads int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.quota.RecordUsage(ctx, tenantID, projectID, scoreUpdates, leaderboardReads); err != nil {
			s.logger.Error("recording usage", "tenant_id", tenantID, "error", err)
		}
	}()
}

// UpdateScore applies one score submission under the leaderboard's
// configured update mode (§4.3.1).
func (s *Service) UpdateScore(ctx context.Context, tenantID, projectID uuid.UUID, req UpdateRequest) (UpdateResult, error) {
	start := time.Now()
	defer func() { telemetry.ScoreWriteDuration.Observe(time.Since(start).Seconds()) }()

	check, err := s.quota.UsageCheckForTenant(ctx, tenantID)
	if err != nil {
		return UpdateResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "checking quota", err)
	}
	if !check.Requests.WithinLimit {
		return UpdateResult{}, apierr.QuotaExceeded("monthly request quota exceeded for this plan")
	}

	meta, err := s.store.Metadata(ctx, tenantID, projectID, req.LeaderboardID)
	if err != nil {
		return UpdateResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "sorted-set store unavailable", err)
	}

	mode := effectiveMode(meta, req)
	key := keys.Score(tenantID, projectID, req.LeaderboardID)

	wrote, finalScore, err := s.applyWrite(ctx, key, req.UserID, mode, meta.SortOrder, req.Score)
	if err != nil {
		telemetry.ScoreUpdatesTotal.WithLabelValues(string(mode), "error").Inc()
		return UpdateResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "writing score", err)
	}

	if meta.TTLDays > 0 {
		if err := s.store.ArmTTL(ctx, key, meta.TTLDays); err != nil {
			s.logger.Error("arming leaderboard TTL", "leaderboard_id", req.LeaderboardID, "error", err)
		}
	}

	rank, err := s.store.Rank(ctx, key, req.UserID, meta.SortOrder)
	if err != nil {
		return UpdateResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "reading rank", err)
	}

	result := UpdateResult{LeaderboardID: req.LeaderboardID, UserID: req.UserID, FinalScore: finalScore}
	if rank != nil {
		result.Rank = *rank
	}

	if wrote {
		telemetry.ScoreUpdatesTotal.WithLabelValues(string(mode), "written").Inc()
		s.publisher.PublishAsync(events.SubjectScoreUpdated, events.ScoreUpdatedPayload{
			TenantID:      tenantID,
			ProjectID:     projectID,
			LeaderboardID: req.LeaderboardID,
			UserID:        req.UserID,
			Score:         req.Score,
			Increment:     mode == ModeIncrement,
			Timestamp:     time.Now().UTC(),
		})
	} else {
		telemetry.ScoreUpdatesTotal.WithLabelValues(string(mode), "skipped").Inc()
	}
	s.recordUsageAsync(tenantID, projectID, 1, 0)

	return result, nil
}

// applyWrite performs the mode-specific write and returns whether a write
// actually occurred (false for a best-mode tie/loss) and the resulting score.
func (s *Service) applyWrite(ctx context.Context, key, userID string, mode UpdateMode, sortOrder SortOrder, score float64) (wrote bool, finalScore float64, err error) {
	switch mode {
	case ModeIncrement:
		newScore, err := s.store.Increment(ctx, key, userID, score)
		if err != nil {
			return false, 0, err
		}
		return true, newScore, nil

	case ModeBest:
		current, err := s.store.Score(ctx, key, userID)
		if err != nil {
			return false, 0, err
		}
		decision := apply(mode, sortOrder, current, score)
		if decision.skip {
			return false, *current, nil
		}
		if err := s.store.Set(ctx, key, userID, decision.absScore); err != nil {
			return false, 0, err
		}
		return true, decision.absScore, nil

	default: // replace
		if err := s.store.Set(ctx, key, userID, score); err != nil {
			return false, 0, err
		}
		return true, score, nil
	}
}

// BatchUpdateScore applies up to N updates, grouping by leaderboard to fetch
// metadata and re-arm TTL once per distinct leaderboard (§4.3.2). Each
// update still emits its own score.updated event.
func (s *Service) BatchUpdateScore(ctx context.Context, tenantID, projectID uuid.UUID, reqs []UpdateRequest) ([]UpdateResult, error) {
	check, err := s.quota.UsageCheckForTenant(ctx, tenantID)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamUnavailable, "checking quota", err)
	}
	if !check.Requests.WithinLimit {
		return nil, apierr.QuotaExceeded("monthly request quota exceeded for this plan")
	}

	byLeaderboard := make(map[uuid.UUID][]UpdateRequest)
	order := make([]uuid.UUID, 0)
	for _, r := range reqs {
		if _, ok := byLeaderboard[r.LeaderboardID]; !ok {
			order = append(order, r.LeaderboardID)
		}
		byLeaderboard[r.LeaderboardID] = append(byLeaderboard[r.LeaderboardID], r)
	}

	results := make([]UpdateResult, 0, len(reqs))
	for _, lid := range order {
		group := byLeaderboard[lid]

		meta, err := s.store.Metadata(ctx, tenantID, projectID, lid)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindUpstreamUnavailable, "sorted-set store unavailable", err)
		}
		key := keys.Score(tenantID, projectID, lid)

		for _, req := range group {
			mode := effectiveMode(meta, req)
			wrote, finalScore, err := s.applyWrite(ctx, key, req.UserID, mode, meta.SortOrder, req.Score)
			if err != nil {
				telemetry.ScoreUpdatesTotal.WithLabelValues(string(mode), "error").Inc()
				return nil, apierr.Wrap(apierr.KindUpstreamUnavailable, "writing batch score", err)
			}

			rank, err := s.store.Rank(ctx, key, req.UserID, meta.SortOrder)
			if err != nil {
				return nil, apierr.Wrap(apierr.KindUpstreamUnavailable, "reading rank", err)
			}
			result := UpdateResult{LeaderboardID: lid, UserID: req.UserID, FinalScore: finalScore}
			if rank != nil {
				result.Rank = *rank
			}
			results = append(results, result)

			if wrote {
				telemetry.ScoreUpdatesTotal.WithLabelValues(string(mode), "written").Inc()
				s.publisher.PublishAsync(events.SubjectScoreUpdated, events.ScoreUpdatedPayload{
					TenantID:      tenantID,
					ProjectID:     projectID,
					LeaderboardID: lid,
					UserID:        req.UserID,
					Score:         req.Score,
					Increment:     mode == ModeIncrement,
					Timestamp:     time.Now().UTC(),
				})
			} else {
				telemetry.ScoreUpdatesTotal.WithLabelValues(string(mode), "skipped").Inc()
			}
			s.recordUsageAsync(tenantID, projectID, 1, 0)
		}

		if meta.TTLDays > 0 {
			if err := s.store.ArmTTL(ctx, key, meta.TTLDays); err != nil {
				s.logger.Error("arming leaderboard TTL", "leaderboard_id", lid, "error", err)
			}
		}
	}

	return results, nil
}

// Top returns the top entries for a leaderboard, ordered by its sortOrder.
func (s *Service) Top(ctx context.Context, tenantID, projectID, leaderboardID uuid.UUID, limit, offset int64) (TopResult, error) {
	meta, err := s.store.Metadata(ctx, tenantID, projectID, leaderboardID)
	if err != nil {
		return TopResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "sorted-set store unavailable", err)
	}
	key := keys.Score(tenantID, projectID, leaderboardID)

	entries, err := s.store.Range(ctx, key, meta.SortOrder, offset, limit)
	if err != nil {
		return TopResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "reading leaderboard range", err)
	}
	total, err := s.store.Count(ctx, key)
	if err != nil {
		return TopResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "counting leaderboard", err)
	}
	s.recordUsageAsync(tenantID, projectID, 0, 1)

	return TopResult{Entries: entries, Total: total}, nil
}

// RankOf looks up a single member's rank, optionally with neighboring
// entries (§4.3.3). A missing member returns a nil rank/score, never an error.
func (s *Service) RankOf(ctx context.Context, tenantID, projectID, leaderboardID uuid.UUID, userID string, withNeighbors bool, neighborCount int64) (RankResult, error) {
	meta, err := s.store.Metadata(ctx, tenantID, projectID, leaderboardID)
	if err != nil {
		return RankResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "sorted-set store unavailable", err)
	}
	key := keys.Score(tenantID, projectID, leaderboardID)

	rank, err := s.store.Rank(ctx, key, userID, meta.SortOrder)
	if err != nil {
		return RankResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "reading rank", err)
	}
	if rank == nil {
		return RankResult{}, nil
	}

	score, err := s.store.Score(ctx, key, userID)
	if err != nil {
		return RankResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "reading score", err)
	}

	result := RankResult{Rank: rank, Score: score}
	s.recordUsageAsync(tenantID, projectID, 0, 1)

	if withNeighbors && neighborCount > 0 {
		offset := *rank - 1
		aboveStart := offset - neighborCount
		if aboveStart < 0 {
			aboveStart = 0
		}
		above, err := s.store.Range(ctx, key, meta.SortOrder, aboveStart, offset-aboveStart)
		if err != nil {
			return RankResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "reading neighbors", err)
		}
		below, err := s.store.Range(ctx, key, meta.SortOrder, offset+1, neighborCount)
		if err != nil {
			return RankResult{}, apierr.Wrap(apierr.KindUpstreamUnavailable, "reading neighbors", err)
		}
		result.Neighbors = &Neighbors{Above: above, Below: below}
	}

	return result, nil
}
