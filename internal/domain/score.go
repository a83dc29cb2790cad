package domain

import (
	"time"
)

// Category represents a game archetype, which determines how raw
// telemetry is normalized into sub-metrics
type Category string

const (
	CategorySpeed  Category = "speed"
	CategoryLogic  Category = "logic"
	CategoryPuzzle Category = "puzzle"
	CategoryMemory Category = "memory"
	CategoryReflex Category = "reflex"
)

// Difficulty represents a game's declared difficulty tier
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Metrics holds the three normalized sub-metrics, each in [0,100]
type Metrics struct {
	Speed       int `json:"speed_score"`
	Accuracy    int `json:"accuracy_score"`
	Consistency int `json:"consistency_score"`
}

// Game represents the catalog fields the engine reads. The catalog
// itself is owned by an external collaborator.
type Game struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   Category   `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	Popularity int64      `json:"popularity"`
}

// PlayResult is one immutable ledger entry for a completed game attempt.
// It is created exactly once by the ingestion pipeline, never mutated,
// and deleted only through moderation.
type PlayResult struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	GameID           string     `json:"game_id"`
	SpeedScore       int        `json:"speed_score"`
	AccuracyScore    int        `json:"accuracy_score"`
	ConsistencyScore int        `json:"consistency_score"`
	FinalScore       int64      `json:"final_score"`
	TimeTaken        float64    `json:"time_taken"`
	Difficulty       Difficulty `json:"difficulty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Metrics returns the sub-metrics stored on the ledger entry
func (p *PlayResult) Metrics() Metrics {
	return Metrics{
		Speed:       p.SpeedScore,
		Accuracy:    p.AccuracyScore,
		Consistency: p.ConsistencyScore,
	}
}

// SubmitRequest is the raw submission payload. Either the client
// supplies pre-computed sub-metrics (FinalMetricsProvided) or raw
// telemetry that the normalizer derives them from.
type SubmitRequest struct {
	GameID string `json:"game_id"`

	// Enhanced path: pre-computed sub-metrics, clamped and used as-is
	FinalMetricsProvided bool    `json:"final_metrics_provided"`
	SpeedScore           float64 `json:"speed_score,omitempty"`
	AccuracyScore        float64 `json:"accuracy_score,omitempty"`
	ConsistencyScore     float64 `json:"consistency_score,omitempty"`

	// Raw telemetry path. Attempts and TimeBudget default to 1 and 60
	// when the field is omitted, so they are pointers to tell an absent
	// field apart from an explicit zero.
	Score          float64 `json:"score,omitempty"`
	CorrectAnswers int     `json:"correct_answers,omitempty"`
	TotalQuestions int     `json:"total_questions,omitempty"`
	Attempts       *int    `json:"attempts,omitempty"`

	TimeTaken  float64  `json:"time_taken,omitempty"`
	TimeBudget *float64 `json:"time_budget,omitempty"`

	// Optional tier override; defaults to the game's declared tier
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// MetricContribution is one sub-metric's share of the final score
type MetricContribution struct {
	Value        int     `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution int     `json:"contribution"`
}

// Breakdown explains how a final score was composed, for caller display
type Breakdown struct {
	Speed       MetricContribution `json:"speed"`
	Accuracy    MetricContribution `json:"accuracy"`
	Consistency MetricContribution `json:"consistency"`
	Multiplier  float64            `json:"multiplier"`
	Total       int64              `json:"total"`
}

// SubmitResult is the response to a successful (or partially
// successful) score submission
type SubmitResult struct {
	PlayResult   *PlayResult `json:"play_result"`
	Breakdown    Breakdown   `json:"breakdown"`
	PointsEarned int64       `json:"points_earned"`
}

// DeleteResult reports the aggregate reversal applied by a moderation
// deletion
type DeleteResult struct {
	ScoreID         string `json:"score_id"`
	PointsDeducted  int64  `json:"points_deducted"`
	UserTotalPoints int64  `json:"user_total_points"`
}

// SkillImpact summarizes a user's play history as skill dimensions
type SkillImpact struct {
	Focus       int `json:"focus"`
	Reflex      int `json:"reflex"`
	Accuracy    int `json:"accuracy"`
	Consistency int `json:"consistency"`
}

// ScoreSummary holds derived statistics over a user's score history
type ScoreSummary struct {
	GamesPlayed    int         `json:"games_played"`
	BestScore      int64       `json:"best_score"`
	AverageScore   float64     `json:"average_score"`
	AvgSpeed       float64     `json:"avg_speed"`
	AvgAccuracy    float64     `json:"avg_accuracy"`
	AvgConsistency float64     `json:"avg_consistency"`
	SkillImpact    SkillImpact `json:"skill_impact"`
}

// UserScores is a user's score history (newest first) plus summary
type UserScores struct {
	UserID  string       `json:"user_id"`
	Scores  []PlayResult `json:"scores"`
	Summary ScoreSummary `json:"summary"`
}

// EngineStats reports ingestion-side counters for operators
type EngineStats struct {
	TotalUsers  int64 `json:"total_users"`
	RankedUsers int64 `json:"ranked_users"`
}

// RankInfo is the answer to a per-user rank query. Rank follows the
// count-based definition: 1 + number of users with strictly more points.
type RankInfo struct {
	UserID           string `json:"user_id"`
	Rank             int64  `json:"rank"`
	TotalPoints      int64  `json:"total_points"`
	PointsToNextRank int64  `json:"points_to_next_rank"`
}
