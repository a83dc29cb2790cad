package scoring

import (
	"testing"

	"github.com/arcade-score-engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestNormalize_EnhancedSubmissionBypassesDerivation(t *testing.T) {
	req := domain.SubmitRequest{
		FinalMetricsProvided: true,
		SpeedScore:           150,
		AccuracyScore:        -20,
		ConsistencyScore:     66.6,
	}

	m := Normalize(req, domain.CategoryLogic)
	assert.Equal(t, 100, m.Speed, "over-range clamps to 100")
	assert.Equal(t, 0, m.Accuracy, "negative clamps to 0")
	assert.Equal(t, 67, m.Consistency, "rounded to nearest integer")
}

func TestNormalize_SpeedArchetype(t *testing.T) {
	// Half the budget left: (60-30)/60*100 + 50 = 100
	m := Normalize(domain.SubmitRequest{TimeBudget: floatPtr(60), TimeTaken: 30, Score: 85}, domain.CategorySpeed)
	assert.Equal(t, 100, m.Speed)
	assert.Equal(t, 85, m.Accuracy)
	assert.Equal(t, 70, m.Consistency)

	// Slow completion still gets the additive floor
	m = Normalize(domain.SubmitRequest{TimeBudget: floatPtr(60), TimeTaken: 45, Score: 40}, domain.CategorySpeed)
	assert.Equal(t, 75, m.Speed) // 25 + 50

	// No elapsed time at all degrades to defaults
	m = Normalize(domain.SubmitRequest{}, domain.CategorySpeed)
	assert.Equal(t, 70, m.Speed)
	assert.Equal(t, 50, m.Accuracy)
}

func TestNormalize_OmittedBudgetDefaultsToSixtySeconds(t *testing.T) {
	// Budget absent but elapsed time present: the default 60-second
	// budget applies instead of the archetype fallback
	m := Normalize(domain.SubmitRequest{TimeTaken: 30}, domain.CategorySpeed)
	assert.Equal(t, 100, m.Speed) // (60-30)/60*100 + 50, capped

	m = Normalize(domain.SubmitRequest{TimeTaken: 45, CorrectAnswers: 5, TotalQuestions: 10}, domain.CategoryLogic)
	assert.Equal(t, 55, m.Speed) // (60-45)/60*100 + 30

	// An explicit zero budget is unusable data, not a default
	m = Normalize(domain.SubmitRequest{TimeBudget: floatPtr(0), TimeTaken: 30}, domain.CategorySpeed)
	assert.Equal(t, 70, m.Speed)
}

func TestNormalize_OmittedAttemptsDefaultToOne(t *testing.T) {
	// Attempts absent: counted as a single attempt, full consistency
	m := Normalize(domain.SubmitRequest{CorrectAnswers: 8, TotalQuestions: 10}, domain.CategoryLogic)
	assert.Equal(t, 100, m.Consistency)

	m = Normalize(domain.SubmitRequest{CorrectAnswers: 8, TotalQuestions: 10}, domain.CategoryPuzzle)
	assert.Equal(t, 100, m.Consistency)

	// An explicit zero falls back to the archetype default
	m = Normalize(domain.SubmitRequest{CorrectAnswers: 8, TotalQuestions: 10, Attempts: intPtr(0)}, domain.CategoryLogic)
	assert.Equal(t, 80, m.Consistency)

	m = Normalize(domain.SubmitRequest{CorrectAnswers: 8, TotalQuestions: 10, Attempts: intPtr(0)}, domain.CategoryPuzzle)
	assert.Equal(t, 75, m.Consistency)
}

func TestNormalize_LogicArchetype(t *testing.T) {
	req := domain.SubmitRequest{
		CorrectAnswers: 8,
		TotalQuestions: 10,
		TimeBudget:     floatPtr(120),
		TimeTaken:      60,
		Attempts:       intPtr(3),
	}

	m := Normalize(req, domain.CategoryLogic)
	assert.Equal(t, 80, m.Accuracy)    // 8/10
	assert.Equal(t, 80, m.Speed)       // 50 + 30
	assert.Equal(t, 80, m.Consistency) // 100 - 2*10
}

func TestNormalize_RetryDecay(t *testing.T) {
	base := domain.SubmitRequest{CorrectAnswers: 5, TotalQuestions: 5}

	first := base
	first.Attempts = intPtr(1)
	m := Normalize(first, domain.CategoryPuzzle)
	assert.Equal(t, 100, m.Consistency)

	fourth := base
	fourth.Attempts = intPtr(4)
	m = Normalize(fourth, domain.CategoryPuzzle)
	assert.Equal(t, 55, m.Consistency) // 100 - 3*15

	many := base
	many.Attempts = intPtr(20)
	m = Normalize(many, domain.CategoryPuzzle)
	assert.Equal(t, 0, m.Consistency, "decay floors at zero")
}

func TestNormalize_MemoryFallbackScale(t *testing.T) {
	// No question counts: raw score scaled x3 for memory games
	m := Normalize(domain.SubmitRequest{Score: 20}, domain.CategoryMemory)
	assert.Equal(t, 60, m.Accuracy)
}

func TestNormalize_ReflexArchetype(t *testing.T) {
	m := Normalize(domain.SubmitRequest{Score: 85}, domain.CategoryReflex)
	assert.Equal(t, 85, m.Speed)
	assert.Equal(t, 80, m.Accuracy)
	assert.Equal(t, 70, m.Consistency)

	m = Normalize(domain.SubmitRequest{}, domain.CategoryReflex)
	assert.Equal(t, 50, m.Speed)
}

func TestNormalize_UnknownArchetypeUsesGenericRule(t *testing.T) {
	m := Normalize(domain.SubmitRequest{Score: 50}, "rhythm")
	assert.Equal(t, 40, m.Speed)       // 50 * 0.8
	assert.Equal(t, 60, m.Accuracy)    // 50 * 1.2
	assert.Equal(t, 70, m.Consistency)
}

func TestNormalize_AlwaysBounded(t *testing.T) {
	reqs := []domain.SubmitRequest{
		{Score: 100000, TimeBudget: floatPtr(1), TimeTaken: 0.001, CorrectAnswers: 500, TotalQuestions: 1},
		{Score: -100, TimeBudget: floatPtr(10), TimeTaken: 500, Attempts: intPtr(99)},
		{Score: 42, TimeTaken: 30},
		{FinalMetricsProvided: true, SpeedScore: 1e9, AccuracyScore: -1e9},
	}
	categories := []domain.Category{
		domain.CategorySpeed, domain.CategoryLogic, domain.CategoryPuzzle,
		domain.CategoryMemory, domain.CategoryReflex, "unknown",
	}

	for _, req := range reqs {
		for _, cat := range categories {
			m := Normalize(req, cat)
			for _, v := range []int{m.Speed, m.Accuracy, m.Consistency} {
				assert.GreaterOrEqual(t, v, 0)
				assert.LessOrEqual(t, v, 100)
			}
		}
	}
}
