package scoring

import (
	"math"

	"github.com/arcade-score-engine/internal/config"
	"github.com/arcade-score-engine/internal/domain"
)

// Policy is the score composition policy in effect for one submission:
// sub-metric weights plus the difficulty multiplier table. A Policy is
// captured once at the start of a composition so a single submission is
// internally consistent even if configuration changes mid-flight.
type Policy struct {
	SpeedWeight       float64
	AccuracyWeight    float64
	ConsistencyWeight float64
	Multipliers       map[domain.Difficulty]float64
}

// NewPolicy builds a Policy snapshot from the scoring configuration
func NewPolicy(cfg *config.ScoringConfig) Policy {
	return Policy{
		SpeedWeight:       cfg.SpeedWeight,
		AccuracyWeight:    cfg.AccuracyWeight,
		ConsistencyWeight: cfg.ConsistencyWeight,
		Multipliers: map[domain.Difficulty]float64{
			domain.DifficultyEasy:   cfg.EasyMultiplier,
			domain.DifficultyMedium: cfg.MediumMultiplier,
			domain.DifficultyHard:   cfg.HardMultiplier,
		},
	}
}

// Multiplier returns the multiplier for a tier, or 1.0 for an
// unrecognized tier
func (p Policy) Multiplier(tier domain.Difficulty) float64 {
	if m, ok := p.Multipliers[tier]; ok && m > 0 {
		return m
	}
	return 1.0
}

// Compose converts three sub-metrics and a difficulty tier into the
// final score. Pure and deterministic: identical inputs always yield an
// identical output, which is what makes aggregate reversal exact.
//
// finalScore = round((speed*wS + accuracy*wA + consistency*wC) * multiplier)
func (p Policy) Compose(m domain.Metrics, tier domain.Difficulty) (int64, domain.Breakdown) {
	// Inputs are clamped even though the normalizer already clamps
	speed := clampMetric(m.Speed)
	accuracy := clampMetric(m.Accuracy)
	consistency := clampMetric(m.Consistency)

	weighted := float64(speed)*p.SpeedWeight +
		float64(accuracy)*p.AccuracyWeight +
		float64(consistency)*p.ConsistencyWeight

	multiplier := p.Multiplier(tier)
	final := int64(math.Round(weighted * multiplier))
	if final < 0 {
		final = 0
	}

	breakdown := domain.Breakdown{
		Speed: domain.MetricContribution{
			Value:        speed,
			Weight:       p.SpeedWeight,
			Contribution: int(math.Round(float64(speed) * p.SpeedWeight)),
		},
		Accuracy: domain.MetricContribution{
			Value:        accuracy,
			Weight:       p.AccuracyWeight,
			Contribution: int(math.Round(float64(accuracy) * p.AccuracyWeight)),
		},
		Consistency: domain.MetricContribution{
			Value:        consistency,
			Weight:       p.ConsistencyWeight,
			Contribution: int(math.Round(float64(consistency) * p.ConsistencyWeight)),
		},
		Multiplier: multiplier,
		Total:      final,
	}

	return final, breakdown
}

// clampMetric bounds a sub-metric into [0,100]
func clampMetric(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
