package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-pricing-console/internal/types"
)

func num(f float64) *float64 { return &f }

func decodeRows(t *testing.T, body string) []types.RawRow {
	t.Helper()
	var rows []types.RawRow
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	return rows
}

func TestNormalizeMixedBatch(t *testing.T) {
	raw := decodeRows(t, `[
		{"price_recommended": "100.5", "gm_pct": 12},
		{"error": "timeout"},
		{"index": 5, "price_recommended": 200}
	]`)

	got := Normalize(raw)

	want := []BatchRow{
		{Index: 0, Outcome: Succeeded{Metrics{PriceRecommended: num(100.5), GMPct: num(12)}}},
		{Index: 1, Outcome: Failed{Reason: "timeout"}},
		{Index: 5, Outcome: Succeeded{Metrics{PriceRecommended: num(200)}}},
	}
	assert.Equal(t, want, got)
}

func TestNormalizeAbsentFieldsStayAbsent(t *testing.T) {
	got := Normalize(decodeRows(t, `[{"index": 0}, {"gm_pct": 0}]`))

	m, ok := got[0].Metrics()
	require.True(t, ok)
	assert.Equal(t, Metrics{}, m)

	m, ok = got[1].Metrics()
	require.True(t, ok)
	assert.Nil(t, m.PriceRecommended)
	require.NotNil(t, m.GMPct)
	assert.Equal(t, 0.0, *m.GMPct)
}

func TestNormalizeIndexFallsBackToPosition(t *testing.T) {
	raw := decodeRows(t, `[
		{"index": "7"},
		{"index": null},
		{"index": -1},
		{"index": 2.5},
		{"index": 9},
		{"index": {"n": 1}},
		{}
	]`)
	got := Normalize(raw)

	indexes := make([]int, len(got))
	for i, r := range got {
		indexes[i] = r.Index
	}
	assert.Equal(t, []int{0, 1, 2, 3, 9, 5, 6}, indexes)
}

func TestNormalizeUnreadableNumbersBecomeNaN(t *testing.T) {
	got := Normalize(decodeRows(t, `[{"price_recommended": "abc", "bound_low": "", "bound_high": null}]`))

	m, ok := got[0].Metrics()
	require.True(t, ok)
	require.NotNil(t, m.PriceRecommended)
	assert.True(t, math.IsNaN(*m.PriceRecommended))
	require.NotNil(t, m.BoundLow)
	assert.Equal(t, 0.0, *m.BoundLow)
	require.NotNil(t, m.BoundHigh)
	assert.Equal(t, 0.0, *m.BoundHigh)
}

func TestNormalizeErrorPassthrough(t *testing.T) {
	raw := decodeRows(t, `[
		{"error": "", "price_recommended": 1},
		{"error": null, "price_recommended": 2},
		{"error": false, "price_recommended": 3},
		{"error": 0, "price_recommended": 4},
		{"error": {"code": 42}},
		{"error": "bad vehicle", "price_recommended": 99}
	]`)
	got := Normalize(raw)

	for i := 0; i < 4; i++ {
		assert.True(t, got[i].OK(), "row %d should be successful", i)
	}

	reason, failed := got[4].Failure()
	assert.True(t, failed)
	assert.Equal(t, `{"code":42}`, reason)

	reason, failed = got[5].Failure()
	assert.True(t, failed)
	assert.Equal(t, "bad vehicle", reason)
	_, ok := got[5].Metrics()
	assert.False(t, ok, "failed rows carry no metrics")
}

func TestNormalizeNonObjectElements(t *testing.T) {
	got := Normalize([]types.RawRow{nil, "row", 3.0, []any{1}})

	require.Len(t, got, 4)
	for i, r := range got {
		assert.Equal(t, i, r.Index)
		m, ok := r.Metrics()
		assert.True(t, ok)
		assert.Equal(t, Metrics{}, m)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := decodeRows(t, `[
		{"price_recommended": "100.5", "p_complete_recommended": 0.8, "p_complete_baseline": "0.6", "gm_pct": -3, "bound_low": 90, "bound_high": 110},
		{"index": 4, "error": "driver shortage", "price_recommended": 10},
		{"index": "x", "gm_pct": "12"}
	]`)

	once := Normalize(raw)
	twice := Normalize(Raw(once))
	assert.Equal(t, once, twice)
}

func TestNormalizeIdempotentThroughJSON(t *testing.T) {
	once := Normalize(decodeRows(t, `[{"price_recommended": "oops", "gm_pct": 5}, {"error": "x"}]`))

	b, err := json.Marshal(once)
	require.NoError(t, err)
	twice := Normalize(decodeRows(t, string(b)))

	require.Len(t, twice, 2)
	m, ok := twice[0].Metrics()
	require.True(t, ok)
	assert.True(t, math.IsNaN(*m.PriceRecommended))
	assert.Equal(t, 5.0, *m.GMPct)
	assert.Equal(t, once[1], twice[1])
}

func TestNormalizeDoesNotDependOnPriorCalls(t *testing.T) {
	raw := decodeRows(t, `[{"price_recommended": 1}, {"error": "e"}]`)
	first := Normalize(raw)
	_ = Normalize(decodeRows(t, `[{"index": 100}]`))
	assert.Equal(t, first, Normalize(raw))
}

func TestMarshalJSON(t *testing.T) {
	rows := []BatchRow{
		{Index: 0, Outcome: Succeeded{Metrics{PriceRecommended: num(100.5), GMPct: num(math.NaN())}}},
		{Index: 3, Outcome: Failed{Reason: "timeout"}},
	}
	b, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"index":0,"price_recommended":100.5,"gm_pct":"NaN","error":null},
		{"index":3,"error":"timeout"}
	]`, string(b))
}

func TestSummarize(t *testing.T) {
	rows := Normalize(decodeRows(t, `[{}, {"error": "a"}, {"price_recommended": 3}, {"error": "b"}]`))
	assert.Equal(t, Summary{Total: 4, Succeeded: 2, Failed: 2}, Summarize(rows))
	assert.Equal(t, Summary{}, Summarize(nil))
}
