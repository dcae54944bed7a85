package actionable

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"ride-pricing-console/internal/normalize"
	"ride-pricing-console/internal/types"
)

func TestBatchNotice(t *testing.T) {
	n := BatchNotice(normalize.Summary{Total: 3, Succeeded: 2, Failed: 1})
	assert.Equal(t, LevelWarning, n.Level)
	assert.Equal(t, "Processed 2 records, 1 had errors", n.Text)

	n = BatchNotice(normalize.Summary{Total: 4, Succeeded: 4})
	assert.Equal(t, LevelSuccess, n.Level)
	assert.Equal(t, "Successfully processed 4 records", n.Text)
}

func TestRecommendationNotice(t *testing.T) {
	n := RecommendationNotice(types.RecommendationResult{PriceRecommended: 123.456})
	assert.Equal(t, "Recommended price: 123.46", n.Text)

	n = RecommendationNotice(types.RecommendationResult{PriceRecommended: 300})
	assert.Equal(t, "Recommended price: 300.00", n.Text)
}

func TestErrorNotice(t *testing.T) {
	assert.Equal(t, Notice{Level: LevelError, Text: "Cannot connect to API server"}, ErrorNotice("Cannot connect to API server"))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "NaN", Money(math.NaN()))
	assert.Equal(t, "71.0%", Percent(0.71))
	assert.Equal(t, "NaN", Percent(math.Inf(1)))
}

func TestKPITone(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  Tone
	}{
		{"Completion_Lift_pp", 2.5, TonePositive},
		{"Margin_Delta", -0.1, ToneNegative},
		{"Conversion_Rate", 0, ToneNeutral},
		{"Avg_Price", -5, ToneInfo},
		{"rows", 100, ToneInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KPITone(tt.name, tt.value))
		})
	}
}
