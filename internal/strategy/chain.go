package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/domain/repository"
	"MarketPull/pkg/logger"
)

// BuildFunc turns a raw payload into a validated canonical record. A
// strategy only counts as succeeded when its payload survives this whole
// pipeline; parse- and validation-level failures advance the chain exactly
// like transport failures.
type BuildFunc func(payload *models.RawPayload) (*models.CanonicalRecord, error)

type step struct {
	strategy Strategy
	timeout  time.Duration
}

// Chain walks a source's ordered strategies until one yields a validated
// record or the chain is exhausted. Strategies run strictly sequentially;
// the chain carries a total-elapsed budget as a hard deadline.
type Chain struct {
	sourceID string
	steps    []step
	build    BuildFunc
	budget   time.Duration
	retries  int
	backoff  time.Duration
	log      *logger.Logger
	metrics  repository.Metrics
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// NewChain assembles a chain for one source.
func NewChain(sourceID string, strategies []Strategy, timeouts []time.Duration, build BuildFunc, opts ...ChainOption) *Chain {
	c := &Chain{
		sourceID: sourceID,
		build:    build,
		budget:   30 * time.Second,
		retries:  2,
		backoff:  500 * time.Millisecond,
		log:      logger.Nop(),
	}
	for i, s := range strategies {
		timeout := 5 * time.Second
		if i < len(timeouts) && timeouts[i] > 0 {
			timeout = timeouts[i]
		}
		c.steps = append(c.steps, step{strategy: s, timeout: timeout})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBudget sets the total-elapsed budget for one chain run.
func WithBudget(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d > 0 {
			c.budget = d
		}
	}
}

// WithRetry sets per-strategy retry bound and linear backoff unit.
func WithRetry(retries int, backoff time.Duration) ChainOption {
	return func(c *Chain) {
		c.retries = retries
		c.backoff = backoff
	}
}

// WithLogger sets the chain logger.
func WithLogger(log *logger.Logger) ChainOption {
	return func(c *Chain) {
		c.log = log
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) ChainOption {
	return func(c *Chain) {
		c.metrics = m
	}
}

// Run executes the chain once. A fully exhausted chain returns an error
// wrapping models.ErrChainExhausted; the chain itself is never retried.
func (c *Chain) Run(ctx context.Context) (*models.CanonicalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	var lastErr error
	for _, st := range c.steps {
		if ctx.Err() != nil {
			// Budget spent; remaining strategies are abandoned.
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			break
		}

		rec, err := c.runStep(ctx, st)
		if err == nil {
			c.record(st.strategy.Kind(), "ok")
			return rec, nil
		}
		lastErr = err
		c.log.Debug("strategy failed",
			logger.String("source", c.sourceID),
			logger.String("kind", st.strategy.Kind()),
			logger.String("url", st.strategy.URL()),
			logger.Err(err),
		)
	}

	if lastErr == nil {
		lastErr = errors.New("no strategies configured")
	}
	return nil, fmt.Errorf("%s: %w: %w", c.sourceID, models.ErrChainExhausted, lastErr)
}

// runStep tries one strategy, retrying transport failures with linear
// backoff. Parse and validation failures are not retried: the payload is
// broken, not the transport.
func (c *Chain) runStep(ctx context.Context, st step) (*models.CanonicalRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*c.backoff); err != nil {
				return nil, err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, st.timeout)
		payload, err := st.strategy.Attempt(attemptCtx)
		cancel()
		if err != nil {
			lastErr = err
			c.record(st.strategy.Kind(), "fetch_error")
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		rec, err := c.build(payload)
		if err != nil {
			c.record(st.strategy.Kind(), classify(err))
			return nil, err
		}
		return rec, nil
	}
	return nil, lastErr
}

func (c *Chain) record(kind, result string) {
	if c.metrics != nil {
		c.metrics.RecordStrategy(c.sourceID, kind, result)
	}
}

func classify(err error) string {
	var pe *models.ParseError
	if errors.As(err, &pe) {
		return "parse_error"
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return "validation_error"
	}
	return "build_error"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
