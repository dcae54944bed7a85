package session

import (
	"maps"
	"slices"

	"ride-pricing-console/internal/normalize"
	"ride-pricing-console/internal/types"
)

// Action names an operator action that talks to the engine.
type Action string

const (
	ActionHealth  Action = "health"
	ActionSingle  Action = "single"
	ActionBatch   Action = "batch"
	ActionCompare Action = "compare"
)

// State is everything the console shows. Each slot is replaced only by its
// own action.
type State struct {
	ID       string          `json:"id"`
	InFlight map[Action]bool `json:"in_flight"`
	Error    string          `json:"error,omitempty"`

	// Health is nil until a check succeeds and after one fails.
	Health *types.HealthStatus         `json:"health"`
	Single *types.RecommendationResult `json:"single"`

	// Rows, KPIs and BatchSummary always come from the same upload.
	Rows         []normalize.BatchRow `json:"rows"`
	KPIs         types.KPIMap         `json:"kpis"`
	BatchSummary *normalize.Summary   `json:"batch_summary"`
	BatchSeq     int                  `json:"batch_seq"`

	Comparison types.KPIMap `json:"comparison"`
}

// Loading reports whether any action is waiting on the engine.
func (s State) Loading() bool {
	for _, busy := range s.InFlight {
		if busy {
			return true
		}
	}
	return false
}

// HealthOK is false while health is unknown.
func (s State) HealthOK() bool {
	return s.Health != nil && s.Health.OK
}

func (s State) clone() State {
	out := s
	out.InFlight = maps.Clone(s.InFlight)
	out.Rows = slices.Clone(s.Rows)
	out.KPIs = maps.Clone(s.KPIs)
	out.Comparison = maps.Clone(s.Comparison)
	if s.Health != nil {
		h := *s.Health
		h.Details = maps.Clone(s.Health.Details)
		out.Health = &h
	}
	if s.Single != nil {
		r := *s.Single
		out.Single = &r
	}
	if s.BatchSummary != nil {
		sum := *s.BatchSummary
		out.BatchSummary = &sum
	}
	return out
}

// Event is a state transition input. See Reduce.
type Event interface {
	event()
}

type (
	Started      struct{ Action Action }
	HealthLoaded struct{ Status types.HealthStatus }
	HealthFailed struct{ Message string }
	SingleLoaded struct{ Result types.RecommendationResult }
	SingleFailed struct{ Message string }
	BatchFailed  struct{ Message string }
)

// BatchLoaded carries one upload's rows and KPI snapshot together.
type BatchLoaded struct {
	Rows []normalize.BatchRow
	KPIs types.KPIMap
}

type (
	ComparisonLoaded struct{ KPIs types.KPIMap }
	ComparisonFailed struct{ Message string }
)

func (Started) event()          {}
func (HealthLoaded) event()     {}
func (HealthFailed) event()     {}
func (SingleLoaded) event()     {}
func (SingleFailed) event()     {}
func (BatchLoaded) event()      {}
func (BatchFailed) event()      {}
func (ComparisonLoaded) event() {}
func (ComparisonFailed) event() {}

// Reduce returns the state after ev. It does not modify s.
func Reduce(s State, ev Event) State {
	next := s.clone()
	if next.InFlight == nil {
		next.InFlight = map[Action]bool{}
	}

	switch e := ev.(type) {
	case Started:
		next.InFlight[e.Action] = true

	case HealthLoaded:
		h := e.Status
		next.Health = &h
		next.Error = ""
		next.InFlight[ActionHealth] = false
	case HealthFailed:
		next.Health = nil
		next.Error = e.Message
		next.InFlight[ActionHealth] = false

	case SingleLoaded:
		r := e.Result
		next.Single = &r
		next.Error = ""
		next.InFlight[ActionSingle] = false
	case SingleFailed:
		next.Single = nil
		next.Error = e.Message
		next.InFlight[ActionSingle] = false

	case BatchLoaded:
		// rows and KPIs are swapped together, never merged
		sum := normalize.Summarize(e.Rows)
		next.Rows = slices.Clone(e.Rows)
		next.KPIs = maps.Clone(e.KPIs)
		next.BatchSummary = &sum
		next.BatchSeq++
		next.Error = ""
		next.InFlight[ActionBatch] = false
	case BatchFailed:
		// a failed re-upload keeps the previous batch on screen
		next.Error = e.Message
		next.InFlight[ActionBatch] = false

	case ComparisonLoaded:
		next.Comparison = maps.Clone(e.KPIs)
		next.Error = ""
		next.InFlight[ActionCompare] = false
	case ComparisonFailed:
		next.Error = e.Message
		next.InFlight[ActionCompare] = false
	}
	return next
}
