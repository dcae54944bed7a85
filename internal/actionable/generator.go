// Package actionable turns results into short operator-facing notices.
package actionable

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"ride-pricing-console/internal/normalize"
	"ride-pricing-console/internal/types"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notice struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
	ToneInfo     Tone = "info"
)

// BatchNotice reports how many rows came back and how many failed.
func BatchNotice(s normalize.Summary) Notice {
	if s.Failed > 0 {
		return Notice{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Processed %d records, %d had errors", s.Succeeded, s.Failed),
		}
	}
	return Notice{
		Level: LevelSuccess,
		Text:  fmt.Sprintf("Successfully processed %d records", s.Succeeded),
	}
}

// RecommendationNotice formats the recommended price to two decimals.
func RecommendationNotice(r types.RecommendationResult) Notice {
	return Notice{Level: LevelSuccess, Text: "Recommended price: " + Money(r.PriceRecommended)}
}

// ErrorNotice wraps an already user-facing message.
func ErrorNotice(msg string) Notice {
	return Notice{Level: LevelError, Text: msg}
}

// Money renders v with two decimals, or "NaN" for values that are not numbers.
func Money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NaN"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Percent renders a 0..1 probability as a percentage with one decimal.
func Percent(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "NaN"
	}
	return decimal.NewFromFloat(p).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

// KPITone colours lift, margin and conversion metrics by sign.
// Every other metric is informational.
func KPITone(name string, value float64) Tone {
	if !strings.Contains(name, "Lift") && !strings.Contains(name, "Margin") && !strings.Contains(name, "Conversion") {
		return ToneInfo
	}
	switch {
	case value > 0:
		return TonePositive
	case value < 0:
		return ToneNegative
	default:
		return ToneNeutral
	}
}
