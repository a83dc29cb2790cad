package scoring

import (
	"math"

	"github.com/arcade-score-engine/internal/domain"
)

// Normalize converts a raw submission into three bounded sub-metrics
// for the game's archetype. When the caller already supplies
// pre-computed sub-metrics the derivation is bypassed and the values
// are clamped as-is. An unrecognized archetype degrades to the generic
// rule rather than failing the request.
func Normalize(req domain.SubmitRequest, category domain.Category) domain.Metrics {
	if req.FinalMetricsProvided {
		return domain.Metrics{
			Speed:       clampRound(req.SpeedScore),
			Accuracy:    clampRound(req.AccuracyScore),
			Consistency: clampRound(req.ConsistencyScore),
		}
	}

	// Omitted optionals carry non-zero defaults: one attempt and a
	// 60-second budget. An explicit zero still means "no usable data"
	// and falls through to the per-archetype fallback.
	budget := 60.0
	if req.TimeBudget != nil {
		budget = *req.TimeBudget
	}
	attempts := 1
	if req.Attempts != nil {
		attempts = *req.Attempts
	}

	var speed, accuracy, consistency float64

	switch category {
	case domain.CategorySpeed:
		// Time-pressured: remaining budget drives speed, with an
		// additive floor so a minimal completion is still non-zero
		speed = timeFraction(budget, req.TimeTaken, 50, 70)
		accuracy = rawOrDefault(req.Score, 1, 50)
		consistency = 70

	case domain.CategoryLogic:
		accuracy = accuracyFraction(req, 2)
		speed = timeFraction(budget, req.TimeTaken, 30, 60)
		consistency = retryDecay(attempts, 10, 80)

	case domain.CategoryPuzzle:
		accuracy = accuracyFraction(req, 2)
		consistency = retryDecay(attempts, 15, 75)
		speed = timeFraction(budget, req.TimeTaken, 20, 50)

	case domain.CategoryMemory:
		accuracy = accuracyFraction(req, 3)
		consistency = retryDecay(attempts, 15, 75)
		speed = timeFraction(budget, req.TimeTaken, 20, 50)

	case domain.CategoryReflex:
		// Reflex: speed is everything, the raw score is the reaction metric
		speed = rawOrDefault(req.Score, 1, 50)
		accuracy = 80
		consistency = 70

	default:
		speed = math.Min(100, req.Score*0.8)
		accuracy = math.Min(100, req.Score*1.2)
		consistency = 70
	}

	return domain.Metrics{
		Speed:       clampRound(speed),
		Accuracy:    clampRound(accuracy),
		Consistency: clampRound(consistency),
	}
}

// timeFraction maps "time remaining as a fraction of the budget" into a
// sub-metric with an additive floor, or returns fallback when either
// the budget or the elapsed time is missing
func timeFraction(budget, taken, floor, fallback float64) float64 {
	if budget <= 0 || taken <= 0 {
		return fallback
	}
	return math.Min(100, (budget-taken)/budget*100+floor)
}

// accuracyFraction maps correct/total into the accuracy sub-metric,
// falling back to a scaled raw score when no question counts were sent
func accuracyFraction(req domain.SubmitRequest, scoreScale float64) float64 {
	if req.TotalQuestions > 0 {
		return float64(req.CorrectAnswers) / float64(req.TotalQuestions) * 100
	}
	return math.Min(100, req.Score*scoreScale)
}

// retryDecay decays the consistency sub-metric per extra attempt, or
// returns fallback when the attempt count is zero or negative
func retryDecay(attempts int, penalty, fallback float64) float64 {
	if attempts <= 0 {
		return fallback
	}
	return math.Max(0, 100-float64(attempts-1)*penalty)
}

// rawOrDefault scales the raw score into a sub-metric, or returns
// fallback when no raw score was sent
func rawOrDefault(score, scale, fallback float64) float64 {
	if score <= 0 {
		return fallback
	}
	return math.Min(100, score*scale)
}

// clampRound bounds a derived value into [0,100] and rounds to the
// nearest integer. Applied as the final step on every path.
func clampRound(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
