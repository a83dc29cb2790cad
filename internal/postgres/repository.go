package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arcade-score-engine/internal/config"
	"github.com/arcade-score-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL-based data access. The play_results
// ledger is the authoritative record; the counters on users and games
// are denormalized projections of it.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			total_points BIGINT NOT NULL DEFAULT 0 CHECK (total_points >= 0),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(20) NOT NULL DEFAULT 'speed',
			difficulty VARCHAR(10) NOT NULL DEFAULT 'medium',
			popularity BIGINT NOT NULL DEFAULT 0 CHECK (popularity >= 0),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS play_results (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			game_id VARCHAR(64) NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			speed_score INT NOT NULL DEFAULT 0,
			accuracy_score INT NOT NULL DEFAULT 0,
			consistency_score INT NOT NULL DEFAULT 0,
			final_score BIGINT NOT NULL CHECK (final_score >= 0),
			time_taken DOUBLE PRECISION NOT NULL DEFAULT 0,
			difficulty VARCHAR(10) NOT NULL DEFAULT 'medium',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_play_results_user_history ON play_results(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_play_results_game_board ON play_results(game_id, final_score DESC, created_at ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_play_results_score ON play_results(final_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_users_points ON users(total_points DESC)`,
		// Starter catalog; the real catalog is synced from the games service
		`INSERT INTO games (id, name, category, difficulty) VALUES
			('speed-sprint', 'Speed Sprint', 'speed', 'easy'),
			('logic-grid', 'Logic Grid', 'logic', 'medium'),
			('puzzle-cascade', 'Puzzle Cascade', 'puzzle', 'medium'),
			('memory-match', 'Memory Match', 'memory', 'easy'),
			('reflex-rush', 'Reflex Rush', 'reflex', 'hard')
		ON CONFLICT (id) DO NOTHING`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetGame retrieves a game's catalog fields by ID
func (r *Repository) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	query := `
		SELECT id, name, category, difficulty, popularity
		FROM games
		WHERE id = $1
	`
	var game domain.Game
	err := r.pool.QueryRow(ctx, query, gameID).Scan(
		&game.ID,
		&game.Name,
		&game.Category,
		&game.Difficulty,
		&game.Popularity,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting game: %w", err)
	}
	return &game, nil
}

// GameExists checks if a game exists
func (r *Repository) GameExists(ctx context.Context, gameID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM games WHERE id = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, gameID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking game existence: %w", err)
	}
	return exists, nil
}

// InsertPlayResult writes one immutable ledger entry. This is the
// durability boundary of the ingestion pipeline.
func (r *Repository) InsertPlayResult(ctx context.Context, result *domain.PlayResult) error {
	query := `
		INSERT INTO play_results
			(id, user_id, game_id, speed_score, accuracy_score, consistency_score,
			 final_score, time_taken, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		result.ID,
		result.UserID,
		result.GameID,
		result.SpeedScore,
		result.AccuracyScore,
		result.ConsistencyScore,
		result.FinalScore,
		result.TimeTaken,
		string(result.Difficulty),
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting play result: %w", err)
	}
	return nil
}

// GetPlayResult retrieves a single ledger entry by ID
func (r *Repository) GetPlayResult(ctx context.Context, scoreID string) (*domain.PlayResult, error) {
	query := `
		SELECT id, user_id, game_id, speed_score, accuracy_score, consistency_score,
		       final_score, time_taken, difficulty, created_at
		FROM play_results
		WHERE id = $1
	`
	var result domain.PlayResult
	err := r.pool.QueryRow(ctx, query, scoreID).Scan(
		&result.ID,
		&result.UserID,
		&result.GameID,
		&result.SpeedScore,
		&result.AccuracyScore,
		&result.ConsistencyScore,
		&result.FinalScore,
		&result.TimeTaken,
		&result.Difficulty,
		&result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScoreNotFound
		}
		return nil, fmt.Errorf("getting play result: %w", err)
	}
	return &result, nil
}

// DeletePlayResult removes a ledger entry (moderation only)
func (r *Repository) DeletePlayResult(ctx context.Context, scoreID string) error {
	query := `DELETE FROM play_results WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, scoreID)
	if err != nil {
		return fmt.Errorf("deleting play result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrScoreNotFound
	}
	return nil
}

// AddUserPoints applies a signed delta to a user's cumulative point
// total as a single atomic statement, flooring at zero. Two concurrent
// submissions for the same user never lose an update because the add
// happens inside the database, not as a read-modify-write.
func (r *Repository) AddUserPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	query := `
		INSERT INTO users (id, total_points, created_at, updated_at)
		VALUES ($1, GREATEST(0, $2::bigint), CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (id)
		DO UPDATE SET
			total_points = GREATEST(0, users.total_points + $2),
			updated_at = CURRENT_TIMESTAMP
		RETURNING total_points
	`
	var totalPoints int64
	err := r.pool.QueryRow(ctx, query, userID, delta).Scan(&totalPoints)
	if err != nil {
		return 0, fmt.Errorf("adding user points: %w", err)
	}
	return totalPoints, nil
}

// IncrementPopularity bumps a game's play counter. Popularity counts
// how many times the game has ever been played, so deletion never
// decrements it.
func (r *Repository) IncrementPopularity(ctx context.Context, gameID string) (int64, error) {
	query := `
		UPDATE games
		SET popularity = popularity + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING popularity
	`
	var popularity int64
	err := r.pool.QueryRow(ctx, query, gameID).Scan(&popularity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrGameNotFound
		}
		return 0, fmt.Errorf("incrementing popularity: %w", err)
	}
	return popularity, nil
}

// GetUserScores retrieves a user's ledger entries, newest first
func (r *Repository) GetUserScores(ctx context.Context, userID string, limit int) ([]domain.PlayResult, error) {
	query := `
		SELECT id, user_id, game_id, speed_score, accuracy_score, consistency_score,
		       final_score, time_taken, difficulty, created_at
		FROM play_results
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("getting user scores: %w", err)
	}
	defer rows.Close()

	var results []domain.PlayResult
	for rows.Next() {
		var result domain.PlayResult
		err := rows.Scan(
			&result.ID,
			&result.UserID,
			&result.GameID,
			&result.SpeedScore,
			&result.AccuracyScore,
			&result.ConsistencyScore,
			&result.FinalScore,
			&result.TimeTaken,
			&result.Difficulty,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning play result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// GetUserSummary computes derived statistics over a user's ledger
func (r *Repository) GetUserSummary(ctx context.Context, userID string) (domain.ScoreSummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(MAX(final_score), 0),
		       COALESCE(AVG(final_score), 0),
		       COALESCE(AVG(speed_score), 0),
		       COALESCE(AVG(accuracy_score), 0),
		       COALESCE(AVG(consistency_score), 0)
		FROM play_results
		WHERE user_id = $1
	`
	var summary domain.ScoreSummary
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&summary.GamesPlayed,
		&summary.BestScore,
		&summary.AverageScore,
		&summary.AvgSpeed,
		&summary.AvgAccuracy,
		&summary.AvgConsistency,
	)
	if err != nil {
		return domain.ScoreSummary{}, fmt.Errorf("getting user summary: %w", err)
	}
	return summary, nil
}

// GetUserRank answers the count-based rank query: 1 plus the number of
// users with strictly more points, and the smallest positive gap to a
// strictly-higher total (0 when already at the top)
func (r *Repository) GetUserRank(ctx context.Context, userID string) (*domain.RankInfo, error) {
	query := `
		SELECT u.total_points,
		       (SELECT COUNT(*) FROM users WHERE total_points > u.total_points),
		       (SELECT COALESCE(MIN(total_points), 0) FROM users WHERE total_points > u.total_points)
		FROM users u
		WHERE u.id = $1
	`
	var totalPoints, higher, nextTotal int64
	err := r.pool.QueryRow(ctx, query, userID).Scan(&totalPoints, &higher, &nextTotal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user rank: %w", err)
	}

	info := &domain.RankInfo{
		UserID:      userID,
		Rank:        higher + 1,
		TotalPoints: totalPoints,
	}
	if nextTotal > totalPoints {
		info.PointsToNextRank = nextTotal - totalPoints
	}
	return info, nil
}

// GetGlobalLeaderboard retrieves the top users by total points
func (r *Repository) GetGlobalLeaderboard(ctx context.Context, limit int) ([]domain.GlobalEntry, error) {
	query := `
		SELECT id, username, total_points
		FROM users
		ORDER BY total_points DESC, id ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting global leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.GlobalEntry
	for rows.Next() {
		var entry domain.GlobalEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.TotalPoints); err != nil {
			return nil, fmt.Errorf("scanning leaderboard entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leaderboard entries: %w", err)
	}

	domain.RankGlobalEntries(entries)
	return entries, nil
}

// GetGameLeaderboard retrieves a game's top plays, ties broken by the
// earliest achiever
func (r *Repository) GetGameLeaderboard(ctx context.Context, gameID string, limit int) ([]domain.GameEntry, error) {
	query := `
		SELECT pr.id, pr.user_id, COALESCE(u.username, ''), pr.final_score, pr.created_at
		FROM play_results pr
		LEFT JOIN users u ON u.id = pr.user_id
		WHERE pr.game_id = $1
		ORDER BY pr.final_score DESC, pr.created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("getting game leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.GameEntry
	for rows.Next() {
		var entry domain.GameEntry
		err := rows.Scan(&entry.ScoreID, &entry.UserID, &entry.Username, &entry.FinalScore, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning game entry: %w", err)
		}
		entry.Rank = int64(len(entries) + 1)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RecomputeUserTotals repairs the denormalized point totals from the
// authoritative ledger sums. The upsert is driven off play_results, not
// users, so a user whose aggregate row was never created (the ledger
// insert landed but the points update failed) is seeded here rather
// than staying invisible forever. Returns the number of users corrected.
func (r *Repository) RecomputeUserTotals(ctx context.Context) (int64, error) {
	upsert := `
		INSERT INTO users (id, total_points, created_at, updated_at)
		SELECT pr.user_id, SUM(pr.final_score), CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
		FROM play_results pr
		GROUP BY pr.user_id
		ON CONFLICT (id)
		DO UPDATE SET
			total_points = EXCLUDED.total_points,
			updated_at = CURRENT_TIMESTAMP
		WHERE users.total_points <> EXCLUDED.total_points
	`
	result, err := r.pool.Exec(ctx, upsert)
	if err != nil {
		return 0, fmt.Errorf("recomputing user totals: %w", err)
	}
	corrected := result.RowsAffected()

	// Users with no ledger entries left (all plays moderated away) have
	// no source row above, so zero their totals separately
	reset := `
		UPDATE users
		SET total_points = 0, updated_at = CURRENT_TIMESTAMP
		WHERE total_points <> 0
		  AND NOT EXISTS (SELECT 1 FROM play_results pr WHERE pr.user_id = users.id)
	`
	result, err = r.pool.Exec(ctx, reset)
	if err != nil {
		return 0, fmt.Errorf("resetting ledgerless user totals: %w", err)
	}
	return corrected + result.RowsAffected(), nil
}

// GetAllUserTotals retrieves every user's point total and display name
// (for cache rebuild)
func (r *Repository) GetAllUserTotals(ctx context.Context) (map[string]int64, map[string]string, error) {
	query := `SELECT id, username, total_points FROM users`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("getting all user totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	usernames := make(map[string]string)
	for rows.Next() {
		var userID, username string
		var points int64
		if err := rows.Scan(&userID, &username, &points); err != nil {
			return nil, nil, fmt.Errorf("scanning user total: %w", err)
		}
		totals[userID] = points
		usernames[userID] = username
	}
	return totals, usernames, rows.Err()
}

// GetUserCount returns the total number of ranked users
func (r *Repository) GetUserCount(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM users`
	var count int64
	err := r.pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("getting user count: %w", err)
	}
	return count, nil
}
