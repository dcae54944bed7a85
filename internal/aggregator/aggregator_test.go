package aggregator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-pricing-console/internal/normalize"
	"ride-pricing-console/internal/types"
)

func rowsFrom(t *testing.T, body string) []normalize.BatchRow {
	t.Helper()
	var raw []types.RawRow
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return normalize.Normalize(raw)
}

func TestProjectScenario(t *testing.T) {
	rows := rowsFrom(t, `[
		{"price_recommended": "100.5", "gm_pct": 12},
		{"error": "timeout"},
		{"index": 5, "price_recommended": 200}
	]`)

	points := Points(rows)
	require.Len(t, points, 2)

	assert.Equal(t, "#1", points[0].Label)
	assert.Equal(t, 100.5, *points[0].Price)
	assert.Equal(t, 12.0, *points[0].MarginPct)
	assert.Nil(t, points[0].CompletionPct)

	assert.Equal(t, "#2", points[1].Label)
	assert.Equal(t, 200.0, *points[1].Price)
	assert.Nil(t, points[1].MarginPct)
}

func TestProjectSkipsFailedRowsAndKeepsOrder(t *testing.T) {
	rows := rowsFrom(t, `[
		{"error": "a"},
		{"index": 10, "price_recommended": 1},
		{"error": "b"},
		{"index": 3, "price_recommended": 2, "p_complete_recommended": 0.25},
		{"error": "c"},
		{"index": 1, "price_recommended": 3}
	]`)

	points := Points(rows)
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Equal(t, "#"+string(rune('1'+i)), p.Label)
		assert.Equal(t, float64(i+1), *p.Price)
	}
	assert.Equal(t, 25.0, *points[1].CompletionPct)
}

func TestProjectIsRestartableAndReadOnly(t *testing.T) {
	rows := rowsFrom(t, `[{"price_recommended": 5}, {"price_recommended": 6}]`)
	before := normalize.Raw(rows)

	seq := Project(rows)
	first := 0
	for p := range seq {
		*p.Price = 999
		first++
	}
	second := 0
	for range seq {
		second++
	}

	assert.Equal(t, 2, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, before, normalize.Raw(rows))
}

func TestProjectStopsEarly(t *testing.T) {
	rows := rowsFrom(t, `[{}, {}, {}]`)
	n := 0
	for range Project(rows) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestChartPointJSON(t *testing.T) {
	nan := math.NaN()
	price := 10.0
	b, err := json.Marshal(ChartPoint{Label: "#1", Price: &price, MarginPct: &nan})
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"#1","price":10,"marginPct":null,"completionPct":null}`, string(b))
}

func TestAggregate(t *testing.T) {
	rows := rowsFrom(t, `[
		{"price_recommended": 100, "gm_pct": 10, "p_complete_recommended": 0.8, "p_complete_baseline": 0.6},
		{"price_recommended": 200, "gm_pct": "bad", "p_complete_recommended": 0.6},
		{"error": "timeout", "price_recommended": 1000}
	]`)

	st := Aggregate(rows)
	assert.Equal(t, normalize.Summary{Total: 3, Succeeded: 2, Failed: 1}, st.Summary)
	assert.Equal(t, Mean{Value: 150, Count: 2}, st.Price)
	assert.Equal(t, Mean{Value: 10, Count: 1}, st.GMPct)
	assert.InDelta(t, 0.7, st.PCompleteRecommended.Value, 1e-9)
	assert.Equal(t, 1, st.CompletionLift.Count)
	assert.InDelta(t, 0.2, st.CompletionLift.Value, 1e-9)
}
