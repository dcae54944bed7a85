package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ride-pricing-console/internal/types"
)

var errEngineNotReady = errors.New("engine reports ok=false")

// WaitHealthy polls Health with exponential backoff until the engine reports
// ok or maxWait elapses. It is meant for process startup; request calls are
// never retried.
func (c *Client) WaitHealthy(ctx context.Context, maxWait time.Duration) (types.HealthStatus, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = maxWait

	var last types.HealthStatus
	op := func() error {
		h, err := c.Health(ctx)
		if err != nil {
			if KindOf(err) == KindMalformed {
				return backoff.Permanent(err)
			}
			return err
		}
		last = h
		if !h.OK {
			return errEngineNotReady
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.log.WithError(err).WithField("retry_in", next.String()).Info("waiting for pricing engine")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return last, err
	}
	return last, nil
}
