// Package normalize turns the engine's batch rows into typed BatchRows.
//
// The engine returns one loosely shaped object per uploaded record. Normalize
// never rejects a row: it assigns a stable index, coerces the numeric fields
// it knows about and keeps the engine's per-row error, so one bad record
// cannot hide the others.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"

	"ride-pricing-console/internal/numeric"
	"ride-pricing-console/internal/types"
)

// Engine field names for the per-row numbers.
const (
	FieldIndex                = "index"
	FieldPriceRecommended     = "price_recommended"
	FieldPCompleteRecommended = "p_complete_recommended"
	FieldPCompleteBaseline    = "p_complete_baseline"
	FieldGMPct                = "gm_pct"
	FieldBoundLow             = "bound_low"
	FieldBoundHigh            = "bound_high"
	FieldError                = "error"
)

// Metrics holds the numbers computed for a successful row. A nil field was
// not computed by the engine; a NaN field was sent but could not be read.
type Metrics struct {
	PriceRecommended     *float64
	PCompleteRecommended *float64
	PCompleteBaseline    *float64
	GMPct                *float64
	BoundLow             *float64
	BoundHigh            *float64
}

func (m *Metrics) fields() []struct {
	name string
	ptr  **float64
} {
	return []struct {
		name string
		ptr  **float64
	}{
		{FieldPriceRecommended, &m.PriceRecommended},
		{FieldPCompleteRecommended, &m.PCompleteRecommended},
		{FieldPCompleteBaseline, &m.PCompleteBaseline},
		{FieldGMPct, &m.GMPct},
		{FieldBoundLow, &m.BoundLow},
		{FieldBoundHigh, &m.BoundHigh},
	}
}

// Outcome is either Succeeded or Failed.
type Outcome interface {
	outcome()
}

type Succeeded struct {
	Metrics
}

type Failed struct {
	Reason string
}

func (Succeeded) outcome() {}
func (Failed) outcome()    {}

// BatchRow is one normalized result. Rows are immutable once built; callers
// must not write through the Metrics pointers.
type BatchRow struct {
	Index   int
	Outcome Outcome
}

// OK reports whether the engine computed this row.
func (r BatchRow) OK() bool {
	_, ok := r.Outcome.(Succeeded)
	return ok
}

// Metrics returns the row's numbers when it succeeded.
func (r BatchRow) Metrics() (Metrics, bool) {
	s, ok := r.Outcome.(Succeeded)
	return s.Metrics, ok
}

// Failure returns the engine's error message when the row failed.
func (r BatchRow) Failure() (string, bool) {
	f, ok := r.Outcome.(Failed)
	return f.Reason, ok
}

// Normalize maps raw engine rows to BatchRows, one per input element and in
// the same order. It is pure: the output depends only on raw.
func Normalize(raw []types.RawRow) []BatchRow {
	out := make([]BatchRow, len(raw))
	for i, el := range raw {
		out[i] = normalizeRow(i, el)
	}
	return out
}

func normalizeRow(pos int, el types.RawRow) BatchRow {
	// non-object elements read as objects with no fields
	obj, _ := el.(map[string]any)

	row := BatchRow{Index: rowIndex(pos, obj[FieldIndex])}
	if errv, ok := obj[FieldError]; ok && numeric.Truthy(errv) {
		row.Outcome = Failed{Reason: errorText(errv)}
		return row
	}

	var m Metrics
	for _, f := range m.fields() {
		v, ok := obj[f.name]
		if !ok {
			continue
		}
		n := numeric.Coerce(v)
		*f.ptr = &n
	}
	row.Outcome = Succeeded{Metrics: m}
	return row
}

func rowIndex(pos int, v any) int {
	f, ok := numeric.Finite(v)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return pos
	}
	return int(f)
}

func errorText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

// Raw renders the row back into the engine's shape. Normalize(Raw(rows))
// returns rows unchanged.
func (r BatchRow) Raw() map[string]any {
	out := map[string]any{FieldIndex: float64(r.Index)}
	switch o := r.Outcome.(type) {
	case Failed:
		out[FieldError] = o.Reason
	case Succeeded:
		m := o.Metrics
		for _, f := range m.fields() {
			if *f.ptr != nil {
				out[f.name] = **f.ptr
			}
		}
		out[FieldError] = nil
	}
	return out
}

// Raw converts a whole row set, see BatchRow.Raw.
func Raw(rows []BatchRow) []types.RawRow {
	out := make([]types.RawRow, len(rows))
	for i, r := range rows {
		out[i] = r.Raw()
	}
	return out
}

// Summary counts successful and failed rows of one batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func Summarize(rows []BatchRow) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
