package aggregator

import (
	"math"

	"ride-pricing-console/internal/normalize"
)

// Mean is an average together with the number of values behind it.
type Mean struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

func (m *Mean) add(v *float64) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return
	}
	m.Count++
	m.Value += (*v - m.Value) / float64(m.Count)
}

// Stats summarizes a batch locally. It is a display aid next to the
// engine's KPI snapshot, never a replacement for it.
type Stats struct {
	normalize.Summary
	Price                Mean `json:"mean_price_recommended"`
	GMPct                Mean `json:"mean_gm_pct"`
	PCompleteRecommended Mean `json:"mean_p_complete_recommended"`
	PCompleteBaseline    Mean `json:"mean_p_complete_baseline"`
	CompletionLift       Mean `json:"mean_completion_lift"`
}

// Aggregate averages the numbers of successful rows. Absent and unreadable
// values are skipped per field.
func Aggregate(rows []normalize.BatchRow) Stats {
	st := Stats{Summary: normalize.Summarize(rows)}
	for _, r := range rows {
		m, ok := r.Metrics()
		if !ok {
			continue
		}
		st.Price.add(m.PriceRecommended)
		st.GMPct.add(m.GMPct)
		st.PCompleteRecommended.add(m.PCompleteRecommended)
		st.PCompleteBaseline.add(m.PCompleteBaseline)
		if m.PCompleteRecommended != nil && m.PCompleteBaseline != nil {
			lift := *m.PCompleteRecommended - *m.PCompleteBaseline
			st.CompletionLift.add(&lift)
		}
	}
	return st
}
