// Package session holds the console's state and runs operator actions
// against the pricing engine.
//
// Every action follows the same shape: claim the action's in-flight flag
// (a second claim fails with ErrInFlight), call the engine without holding
// the lock, then apply exactly one result event through Reduce.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ride-pricing-console/internal/aggregator"
	"ride-pricing-console/internal/logger"
	"ride-pricing-console/internal/normalize"
	"ride-pricing-console/internal/pricing"
	"ride-pricing-console/internal/types"
)

// ErrInFlight rejects an action while the same action is still running.
var ErrInFlight = errors.New("request already in flight")

// Engine is the part of the pricing client the controller needs.
type Engine interface {
	Health(ctx context.Context) (types.HealthStatus, error)
	Recommend(ctx context.Context, rec types.RideRecord) (types.RecommendationResult, error)
	RecommendBatch(ctx context.Context, file pricing.Upload) (types.BatchResponse, error)
	CompareKPIs(ctx context.Context, base, scenario pricing.Upload) (types.KPIMap, error)
}

type Controller struct {
	engine Engine
	log    *logger.Logger

	mu    sync.Mutex
	state State
}

func New(engine Engine, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.New()
	}
	id := uuid.New().String()
	return &Controller{
		engine: engine,
		log:    log.Component("session").With("session_id", id),
		state:  State{ID: id, InFlight: map[Action]bool{}},
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// ChartPoints projects the current rows for charting.
func (c *Controller) ChartPoints() []aggregator.ChartPoint {
	return aggregator.Points(c.Snapshot().Rows)
}

// Stats aggregates the current rows.
func (c *Controller) Stats() aggregator.Stats {
	return aggregator.Aggregate(c.Snapshot().Rows)
}

func (c *Controller) begin(a Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.InFlight[a] {
		c.log.WithField("action", a).Warn("rejected duplicate request")
		return ErrInFlight
	}
	c.state = Reduce(c.state, Started{Action: a})
	return nil
}

func (c *Controller) apply(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, ev)
}

// engineCtx detaches the call from caller cancellation. The client's own
// timeout still bounds it.
func engineCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// RefreshHealth checks the engine. On failure the health slot is cleared.
func (c *Controller) RefreshHealth(ctx context.Context) (types.HealthStatus, error) {
	if err := c.begin(ActionHealth); err != nil {
		return types.HealthStatus{}, err
	}
	start := time.Now()
	h, err := c.engine.Health(engineCtx(ctx))
	log := c.log.WithFields(logrus.Fields{"action": ActionHealth, "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		c.apply(HealthFailed{Message: pricing.Message(err)})
		log.WithField("error", pricing.Message(err)).Warn("health check failed")
		return types.HealthStatus{}, err
	}
	c.apply(HealthLoaded{Status: h})
	log.WithField("ok", h.OK).Info("health refreshed")
	return h, nil
}

// SubmitSingle asks for one recommendation. On failure the previous result
// is cleared.
func (c *Controller) SubmitSingle(ctx context.Context, rec types.RideRecord) (types.RecommendationResult, error) {
	if err := c.begin(ActionSingle); err != nil {
		return types.RecommendationResult{}, err
	}
	start := time.Now()
	res, err := c.engine.Recommend(engineCtx(ctx), rec)
	log := c.log.WithFields(logrus.Fields{"action": ActionSingle, "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		c.apply(SingleFailed{Message: pricing.Message(err)})
		log.WithField("error", pricing.Message(err)).Warn("recommendation failed")
		return types.RecommendationResult{}, err
	}
	c.apply(SingleLoaded{Result: res})
	log.WithField("price_recommended", res.PriceRecommended).Info("recommendation received")
	return res, nil
}

// BatchResult describes one applied upload. Summary and KPIs always come
// from the same engine response.
type BatchResult struct {
	normalize.Summary
	KPIs types.KPIMap `json:"kpis"`
}

// UploadBatch sends a file for batch recommendation. On success the rows and
// KPI snapshot are replaced together; on failure both are left as they were.
// The result counts successful and failed rows and carries that upload's KPIs.
func (c *Controller) UploadBatch(ctx context.Context, file pricing.Upload) (BatchResult, error) {
	if err := c.begin(ActionBatch); err != nil {
		return BatchResult{}, err
	}
	start := time.Now()
	resp, err := c.engine.RecommendBatch(engineCtx(ctx), file)
	log := c.log.WithFields(logrus.Fields{"action": ActionBatch, "file": file.Name, "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		c.apply(BatchFailed{Message: pricing.Message(err)})
		log.WithField("error", pricing.Message(err)).Warn("batch upload failed")
		return BatchResult{}, err
	}

	rows := normalize.Normalize(resp.Rows)
	c.apply(BatchLoaded{Rows: rows, KPIs: resp.KPIs})

	res := BatchResult{Summary: normalize.Summarize(rows), KPIs: resp.KPIs}
	log.WithFields(logrus.Fields{
		"rows":      res.Total,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
		"kpis":      len(res.KPIs),
	}).Info("batch processed")
	return res, nil
}

// CompareKPIs runs a base/scenario comparison. The result has its own slot;
// batch rows and KPIs are not touched.
func (c *Controller) CompareKPIs(ctx context.Context, base, scenario pricing.Upload) (types.KPIMap, error) {
	if err := c.begin(ActionCompare); err != nil {
		return nil, err
	}
	start := time.Now()
	kpis, err := c.engine.CompareKPIs(engineCtx(ctx), base, scenario)
	log := c.log.WithFields(logrus.Fields{"action": ActionCompare, "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		c.apply(ComparisonFailed{Message: pricing.Message(err)})
		log.WithField("error", pricing.Message(err)).Warn("kpi comparison failed")
		return nil, err
	}
	c.apply(ComparisonLoaded{KPIs: kpis})
	log.WithField("kpis", len(kpis)).Info("kpi comparison received")
	return kpis, nil
}
