package scoring

import (
	"testing"

	"github.com/arcade-score-engine/internal/config"
	"github.com/arcade-score-engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

func testPolicy() Policy {
	return NewPolicy(&config.ScoringConfig{
		SpeedWeight:       0.4,
		AccuracyWeight:    0.4,
		ConsistencyWeight: 0.2,
		EasyMultiplier:    1.0,
		MediumMultiplier:  1.25,
		HardMultiplier:    1.5,
	})
}

func TestCompose_WeightedSumWithMultiplier(t *testing.T) {
	p := testPolicy()
	m := domain.Metrics{Speed: 80, Accuracy: 90, Consistency: 70}

	// 0.4*80 + 0.4*90 + 0.2*70 = 82
	tests := []struct {
		tier domain.Difficulty
		want int64
	}{
		{domain.DifficultyEasy, 82},
		{domain.DifficultyMedium, 103}, // round(82 * 1.25)
		{domain.DifficultyHard, 123},   // round(82 * 1.5)
	}

	for _, tt := range tests {
		final, breakdown := p.Compose(m, tt.tier)
		assert.Equal(t, tt.want, final, "tier %s", tt.tier)
		assert.Equal(t, tt.want, breakdown.Total)
	}
}

func TestCompose_Breakdown(t *testing.T) {
	p := testPolicy()
	_, breakdown := p.Compose(domain.Metrics{Speed: 80, Accuracy: 90, Consistency: 70}, domain.DifficultyMedium)

	assert.Equal(t, 32, breakdown.Speed.Contribution)
	assert.Equal(t, 36, breakdown.Accuracy.Contribution)
	assert.Equal(t, 14, breakdown.Consistency.Contribution)
	assert.Equal(t, 1.25, breakdown.Multiplier)
	assert.Equal(t, 0.4, breakdown.Speed.Weight)
}

func TestCompose_ClampsInputs(t *testing.T) {
	p := testPolicy()

	over, _ := p.Compose(domain.Metrics{Speed: 150, Accuracy: 90, Consistency: 70}, domain.DifficultyMedium)
	max, _ := p.Compose(domain.Metrics{Speed: 100, Accuracy: 90, Consistency: 70}, domain.DifficultyMedium)
	assert.Equal(t, max, over, "over-range input should behave like 100")

	under, _ := p.Compose(domain.Metrics{Speed: -20, Accuracy: 90, Consistency: 70}, domain.DifficultyMedium)
	zero, _ := p.Compose(domain.Metrics{Speed: 0, Accuracy: 90, Consistency: 70}, domain.DifficultyMedium)
	assert.Equal(t, zero, under, "negative input should behave like 0")
}

func TestCompose_NeverNegative(t *testing.T) {
	p := testPolicy()
	for _, m := range []domain.Metrics{
		{Speed: 0, Accuracy: 0, Consistency: 0},
		{Speed: -50, Accuracy: -50, Consistency: -50},
		{Speed: 100, Accuracy: 100, Consistency: 100},
	} {
		for _, tier := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard} {
			final, _ := p.Compose(m, tier)
			assert.GreaterOrEqual(t, final, int64(0))
		}
	}
}

func TestCompose_Deterministic(t *testing.T) {
	p := testPolicy()
	m := domain.Metrics{Speed: 63, Accuracy: 47, Consistency: 91}

	first, firstBreakdown := p.Compose(m, domain.DifficultyHard)
	second, secondBreakdown := p.Compose(m, domain.DifficultyHard)

	assert.Equal(t, first, second)
	assert.Equal(t, firstBreakdown, secondBreakdown)
}

func TestCompose_UnknownTierDefaultsToNeutralMultiplier(t *testing.T) {
	p := testPolicy()
	final, breakdown := p.Compose(domain.Metrics{Speed: 80, Accuracy: 90, Consistency: 70}, "nightmare")
	assert.Equal(t, int64(82), final)
	assert.Equal(t, 1.0, breakdown.Multiplier)
}

func TestNewPolicy_AlternateMultiplierTable(t *testing.T) {
	p := NewPolicy(&config.ScoringConfig{
		SpeedWeight:       0.4,
		AccuracyWeight:    0.4,
		ConsistencyWeight: 0.2,
		EasyMultiplier:    1.0,
		MediumMultiplier:  1.5,
		HardMultiplier:    2.0,
	})

	final, _ := p.Compose(domain.Metrics{Speed: 80, Accuracy: 90, Consistency: 70}, domain.DifficultyHard)
	assert.Equal(t, int64(164), final) // round(82 * 2.0)
}
