package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/arcade-score-engine/internal/config"
	"github.com/arcade-score-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	rankingKey   = "ranking:global"
	usernamesKey = "ranking:usernames"
)

// RankingCache serves rank and global-leaderboard reads from a Redis
// sorted set. It is a projection of the users table, refreshed on every
// write and rebuilt by the reconciliation worker; reads through it are
// eventually consistent by design.
type RankingCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRankingCache creates a new Redis ranking cache
func NewRankingCache(cfg *config.RedisConfig, logger *slog.Logger) (*RankingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RankingCache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *RankingCache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client
func (c *RankingCache) Client() *redis.Client {
	return c.client
}

// SetUserTotal records a user's authoritative point total in the
// ranking set. The caller passes the post-update total returned by the
// database, so the floor-at-zero behavior is carried over exactly.
func (c *RankingCache) SetUserTotal(ctx context.Context, userID string, total int64) error {
	err := c.client.ZAdd(ctx, rankingKey, redis.Z{
		Score:  float64(total),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting user total: %w", err)
	}
	return nil
}

// GetUserRank answers the count-based rank query from the sorted set:
// the rank is 1 plus the number of members with a strictly greater
// score, so tied users share a rank.
func (c *RankingCache) GetUserRank(ctx context.Context, userID string) (*domain.RankInfo, error) {
	score, err := c.client.ZScore(ctx, rankingKey, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user score: %w", err)
	}

	exclusiveMin := "(" + strconv.FormatInt(int64(score), 10)

	pipe := c.client.Pipeline()
	higherCmd := pipe.ZCount(ctx, rankingKey, exclusiveMin, "+inf")
	nextCmd := pipe.ZRangeByScoreWithScores(ctx, rankingKey, &redis.ZRangeBy{
		Min:    exclusiveMin,
		Max:    "+inf",
		Offset: 0,
		Count:  1,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("getting rank: %w", err)
	}

	higher, err := higherCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("counting higher totals: %w", err)
	}

	info := &domain.RankInfo{
		UserID:      userID,
		Rank:        higher + 1,
		TotalPoints: int64(score),
	}

	// Smallest strictly-higher total determines the gap to the next rank
	if next, err := nextCmd.Result(); err == nil && len(next) > 0 {
		info.PointsToNextRank = int64(next[0].Score) - info.TotalPoints
	}

	return info, nil
}

// GetTopN returns the top N users by total points
func (c *RankingCache) GetTopN(ctx context.Context, n int) ([]domain.GlobalEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, rankingKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	userIDs := make([]string, len(results))
	for i, result := range results {
		userIDs[i] = result.Member.(string)
	}
	usernames, err := c.client.HMGet(ctx, usernamesKey, userIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("getting usernames: %w", err)
	}

	entries := make([]domain.GlobalEntry, len(results))
	for i, result := range results {
		entries[i] = domain.GlobalEntry{
			UserID:      userIDs[i],
			TotalPoints: int64(result.Score),
		}
		if name, ok := usernames[i].(string); ok {
			entries[i].Username = name
		}
	}

	domain.RankGlobalEntries(entries)
	return entries, nil
}

// GetCount returns the number of ranked users
func (c *RankingCache) GetCount(ctx context.Context) (int64, error) {
	count, err := c.client.ZCard(ctx, rankingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// Rebuild replaces the ranking set with authoritative totals from the
// database, including display names
func (c *RankingCache) Rebuild(ctx context.Context, totals map[string]int64, usernames map[string]string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, rankingKey)

	for userID, total := range totals {
		pipe.ZAdd(ctx, rankingKey, redis.Z{
			Score:  float64(total),
			Member: userID,
		})
	}
	for userID, username := range usernames {
		if username != "" {
			pipe.HSet(ctx, usernamesKey, userID, username)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuilding ranking cache: %w", err)
	}
	return nil
}
