package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreComplexity(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		concepts int
		want     ComplexityScore
	}{
		{"trivial", "show population", 1, 1},
		{"no concepts", "hello there", 0, 0},
		{"concept count capped at 4", "many concepts", 9, 4},
		{"statistical vocabulary", "correlation between income and age", 2, 4},
		{"temporal marker", "population trend by area", 1, 3},
		{"comparison marker", "compare income in region a against region b", 1, 3},
		{"everything capped at 10", "compare the correlation trend of a vs b", 9, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreComplexity(NormalizeText(tt.text), tt.concepts)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, float64(got), 0.0)
			assert.LessOrEqual(t, float64(got), 10.0)
		})
	}
}

func TestScoreComplexityDeterministic(t *testing.T) {
	text := NormalizeText("compare correlation of income vs population over time")
	first := ScoreComplexity(text, 3)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ScoreComplexity(text, 3))
	}
}

func TestHasComparison(t *testing.T) {
	assert.True(t, HasComparison(NormalizeText("brand a vs brand b")))
	assert.True(t, HasComparison(NormalizeText("compare income levels")))
	assert.False(t, HasComparison(NormalizeText("show income levels")))
	// "vs" only matches as a delimited token.
	assert.False(t, HasComparison(NormalizeText("the vswitch config")))
}

func TestOverridesIsZero(t *testing.T) {
	assert.True(t, Overrides{}.IsZero())
	assert.False(t, Overrides{EndpointID: "demographic_analysis"}.IsZero())
	assert.False(t, Overrides{SampleSize: 10}.IsZero())
}
