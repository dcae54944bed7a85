package aggregator

import (
	"encoding/json"
	"iter"
	"math"
	"slices"
	"strconv"

	"ride-pricing-console/internal/normalize"
)

// ChartPoint is one x position of the batch charts. Nil means the engine did
// not compute that series for the row.
type ChartPoint struct {
	Label         string
	Price         *float64
	MarginPct     *float64
	CompletionPct *float64
}

// Project yields one point per successful row, in row order, labelled
// #1..#n by position among successful rows. The sequence can be ranged over
// any number of times and never modifies rows.
func Project(rows []normalize.BatchRow) iter.Seq[ChartPoint] {
	return func(yield func(ChartPoint) bool) {
		pos := 0
		for _, r := range rows {
			m, ok := r.Metrics()
			if !ok {
				continue
			}
			pos++
			p := ChartPoint{
				Label:     "#" + strconv.Itoa(pos),
				Price:     copyOf(m.PriceRecommended),
				MarginPct: copyOf(m.GMPct),
			}
			if m.PCompleteRecommended != nil {
				pct := *m.PCompleteRecommended * 100
				p.CompletionPct = &pct
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Points collects Project into a slice.
func Points(rows []normalize.BatchRow) []ChartPoint {
	return slices.Collect(Project(rows))
}

func copyOf(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// MarshalJSON writes null for missing or non-finite values so chart
// libraries skip them.
func (p ChartPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Label         string   `json:"label"`
		Price         *float64 `json:"price"`
		MarginPct     *float64 `json:"marginPct"`
		CompletionPct *float64 `json:"completionPct"`
	}{p.Label, plottable(p.Price), plottable(p.MarginPct), plottable(p.CompletionPct)})
}

func plottable(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
