package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/arcade-score-engine/internal/config"
	"github.com/arcade-score-engine/internal/domain"
	"github.com/arcade-score-engine/internal/scoring"
	"github.com/arcade-score-engine/internal/websocket"
	"github.com/google/uuid"
)

// Store is the persistence surface the engine needs: the play_results
// ledger plus the denormalized aggregates derived from it
type Store interface {
	GetGame(ctx context.Context, gameID string) (*domain.Game, error)
	GameExists(ctx context.Context, gameID string) (bool, error)
	InsertPlayResult(ctx context.Context, result *domain.PlayResult) error
	GetPlayResult(ctx context.Context, scoreID string) (*domain.PlayResult, error)
	DeletePlayResult(ctx context.Context, scoreID string) error
	AddUserPoints(ctx context.Context, userID string, delta int64) (int64, error)
	IncrementPopularity(ctx context.Context, gameID string) (int64, error)
	GetUserScores(ctx context.Context, userID string, limit int) ([]domain.PlayResult, error)
	GetUserSummary(ctx context.Context, userID string) (domain.ScoreSummary, error)
	GetUserRank(ctx context.Context, userID string) (*domain.RankInfo, error)
	GetGlobalLeaderboard(ctx context.Context, limit int) ([]domain.GlobalEntry, error)
	GetGameLeaderboard(ctx context.Context, gameID string, limit int) ([]domain.GameEntry, error)
	GetUserCount(ctx context.Context) (int64, error)
}

// Cache is the eventually-consistent read path for rank and global
// leaderboard queries
type Cache interface {
	SetUserTotal(ctx context.Context, userID string, total int64) error
	GetUserRank(ctx context.Context, userID string) (*domain.RankInfo, error)
	GetTopN(ctx context.Context, n int) ([]domain.GlobalEntry, error)
	GetCount(ctx context.Context) (int64, error)
}

// ScoreService runs the ingestion pipeline and answers rank and
// leaderboard queries
type ScoreService struct {
	store   Store
	cache   Cache
	scoring *config.ScoringConfig
	limits  *config.LeaderboardConfig
	logger  *slog.Logger
	hub     *websocket.Hub
}

// NewScoreService creates a new score service
func NewScoreService(
	store Store,
	cache Cache,
	scoringCfg *config.ScoringConfig,
	limits *config.LeaderboardConfig,
	logger *slog.Logger,
) *ScoreService {
	return &ScoreService{
		store:   store,
		cache:   cache,
		scoring: scoringCfg,
		limits:  limits,
		logger:  logger,
	}
}

// SetHub attaches the WebSocket hub for live board broadcasts
func (s *ScoreService) SetHub(hub *websocket.Hub) {
	s.hub = hub
}

// SubmitScore runs the full ingestion pipeline for one play:
// validate game → normalize and compose → persist the ledger entry →
// propagate aggregates. The ledger insert is the durability boundary;
// a propagation failure after it is surfaced as ErrAggregateLag
// together with the created result, never as a full failure.
func (s *ScoreService) SubmitScore(ctx context.Context, userID string, req domain.SubmitRequest) (*domain.SubmitResult, error) {
	if userID == "" || req.GameID == "" {
		return nil, domain.ErrInvalidRequest
	}

	// Validating: the referenced game must exist before any write
	game, err := s.store.GetGame(ctx, req.GameID)
	if err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("validating game: %w", err)
	}

	// Composing: the policy is snapshotted once so the submission is
	// internally consistent even if configuration changes mid-flight
	policy := scoring.NewPolicy(s.scoring)
	metrics := scoring.Normalize(req, game.Category)

	tier := req.Difficulty
	if !tier.Valid() {
		tier = game.Difficulty
	}
	if !tier.Valid() {
		tier = domain.DifficultyMedium
	}

	finalScore, breakdown := policy.Compose(metrics, tier)

	// Persisting: once this write is acknowledged the play happened
	result := &domain.PlayResult{
		ID:               uuid.New().String(),
		UserID:           userID,
		GameID:           game.ID,
		SpeedScore:       metrics.Speed,
		AccuracyScore:    metrics.Accuracy,
		ConsistencyScore: metrics.Consistency,
		FinalScore:       finalScore,
		TimeTaken:        req.TimeTaken,
		Difficulty:       tier,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.InsertPlayResult(ctx, result); err != nil {
		return nil, fmt.Errorf("persisting play result: %w", err)
	}

	submitResult := &domain.SubmitResult{
		PlayResult:   result,
		Breakdown:    breakdown,
		PointsEarned: finalScore,
	}

	// Propagating: two single-statement atomic adds, one per aggregate.
	// A failure here leaves a repairable gap between the ledger and the
	// aggregates, which the reconciliation worker closes.
	total, err := s.store.AddUserPoints(ctx, userID, finalScore)
	if err != nil {
		s.logger.Error("failed to propagate user points",
			"user_id", userID,
			"score_id", result.ID,
			"points", finalScore,
			"error", err,
		)
		return submitResult, domain.ErrAggregateLag
	}

	if _, err := s.store.IncrementPopularity(ctx, game.ID); err != nil {
		s.logger.Error("failed to propagate game popularity",
			"game_id", game.ID,
			"score_id", result.ID,
			"error", err,
		)
		return submitResult, domain.ErrAggregateLag
	}

	s.refreshCachedTotal(ctx, userID, total)
	s.broadcastBoards(ctx, game.ID)

	return submitResult, nil
}

// DeleteScore retracts a play (moderation): the user's total is
// reversed by exactly the composed score, floored at zero, and the
// ledger entry is removed. Popularity measures how many times the game
// has ever been played and is intentionally not decremented.
func (s *ScoreService) DeleteScore(ctx context.Context, scoreID string) (*domain.DeleteResult, error) {
	result, err := s.store.GetPlayResult(ctx, scoreID)
	if err != nil {
		if errors.Is(err, domain.ErrScoreNotFound) {
			return nil, domain.ErrScoreNotFound
		}
		return nil, fmt.Errorf("loading play result: %w", err)
	}

	total, err := s.store.AddUserPoints(ctx, result.UserID, -result.FinalScore)
	if err != nil {
		return nil, fmt.Errorf("reversing user points: %w", err)
	}

	if err := s.store.DeletePlayResult(ctx, scoreID); err != nil {
		// Points were already deducted; the reconciliation worker will
		// restore them from the still-present ledger entry
		s.logger.Error("failed to delete play result after reversal",
			"score_id", scoreID,
			"user_id", result.UserID,
			"error", err,
		)
		return nil, fmt.Errorf("deleting play result: %w", err)
	}

	s.refreshCachedTotal(ctx, result.UserID, total)
	s.broadcastBoards(ctx, result.GameID)

	return &domain.DeleteResult{
		ScoreID:         scoreID,
		PointsDeducted:  result.FinalScore,
		UserTotalPoints: total,
	}, nil
}

// GetUserScores returns a user's history, newest first, with summary
// statistics over the non-deleted ledger entries
func (s *ScoreService) GetUserScores(ctx context.Context, userID string) (*domain.UserScores, error) {
	if userID == "" {
		return nil, domain.ErrInvalidRequest
	}

	scores, err := s.store.GetUserScores(ctx, userID, s.limits.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("getting user scores: %w", err)
	}

	summary, err := s.store.GetUserSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting user summary: %w", err)
	}
	if summary.GamesPlayed > 0 {
		summary.SkillImpact = domain.SkillImpact{
			Focus:       int(math.Round((summary.AvgAccuracy + summary.AvgConsistency) / 2)),
			Reflex:      int(math.Round(summary.AvgSpeed)),
			Accuracy:    int(math.Round(summary.AvgAccuracy)),
			Consistency: int(math.Round(summary.AvgConsistency)),
		}
	}

	return &domain.UserScores{
		UserID:  userID,
		Scores:  scores,
		Summary: summary,
	}, nil
}

// GetUserRank answers the count-based rank query, preferring the cache
// and falling back to the database when the user is not cached
func (s *ScoreService) GetUserRank(ctx context.Context, userID string) (*domain.RankInfo, error) {
	if userID == "" {
		return nil, domain.ErrInvalidRequest
	}

	if s.cache != nil {
		info, err := s.cache.GetUserRank(ctx, userID)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Warn("rank cache read failed, falling back to database", "error", err)
		}
	}

	return s.store.GetUserRank(ctx, userID)
}

// GetGlobalLeaderboard returns the top users by total points
func (s *ScoreService) GetGlobalLeaderboard(ctx context.Context, limit int) ([]domain.GlobalEntry, error) {
	limit = s.clampLimit(limit)

	if s.cache != nil {
		entries, err := s.cache.GetTopN(ctx, limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			s.logger.Warn("leaderboard cache read failed, falling back to database", "error", err)
		}
	}

	return s.store.GetGlobalLeaderboard(ctx, limit)
}

// GetGameLeaderboard returns a game's top plays, ties broken by the
// earliest achiever
func (s *ScoreService) GetGameLeaderboard(ctx context.Context, gameID string, limit int) ([]domain.GameEntry, error) {
	if gameID == "" {
		return nil, domain.ErrInvalidRequest
	}
	limit = s.clampLimit(limit)

	exists, err := s.store.GameExists(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("checking game existence: %w", err)
	}
	if !exists {
		return nil, domain.ErrGameNotFound
	}

	return s.store.GetGameLeaderboard(ctx, gameID, limit)
}

// GetStats reports operator-facing counters: how many users hold
// points, and how many of them the ranking cache currently covers
func (s *ScoreService) GetStats(ctx context.Context) (*domain.EngineStats, error) {
	total, err := s.store.GetUserCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	stats := &domain.EngineStats{TotalUsers: total}
	if s.cache != nil {
		if ranked, err := s.cache.GetCount(ctx); err == nil {
			stats.RankedUsers = ranked
		}
	}
	return stats, nil
}

// clampLimit bounds a caller-supplied limit between the configured
// default and the hard cap
func (s *ScoreService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.limits.DefaultLimit
	}
	if limit > s.limits.MaxLimit {
		return s.limits.MaxLimit
	}
	return limit
}

// refreshCachedTotal mirrors the post-update total into the ranking
// cache; failures are logged only, the reconciler rebuilds the cache
func (s *ScoreService) refreshCachedTotal(ctx context.Context, userID string, total int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetUserTotal(ctx, userID, total); err != nil {
		s.logger.Warn("failed to refresh ranking cache", "user_id", userID, "error", err)
	}
}

// broadcastBoards pushes fresh global and per-game boards to
// subscribed WebSocket clients
func (s *ScoreService) broadcastBoards(ctx context.Context, gameID string) {
	if s.hub == nil {
		return
	}

	if entries, err := s.GetGlobalLeaderboard(ctx, 10); err == nil {
		s.hub.BroadcastGlobalUpdate(entries)
	}
	if entries, err := s.store.GetGameLeaderboard(ctx, gameID, 10); err == nil {
		s.hub.BroadcastGameUpdate(gameID, entries)
	}
}
