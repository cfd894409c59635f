// Package usecase drives the crawl loop: scheduling, concurrency limits
// and the per-crawl pipeline from strategy chain to consistency layer.
package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/domain/repository"
	"MarketPull/internal/merge"
	"MarketPull/internal/store"
	"MarketPull/internal/strategy"
	"MarketPull/pkg/config"
	"MarketPull/pkg/logger"

	"github.com/google/uuid"
)

// Orchestrator schedules one crawl loop per source and funnels every
// accepted record through the consistency layer. A crawl never panics the
// process: each cycle ends in exactly one CrawlOutcome.
type Orchestrator struct {
	cfg       *config.Config
	chains    map[string]*strategy.Chain
	store     *store.Store
	publisher repository.Publisher
	metrics   repository.Metrics
	log       *logger.Logger

	sem     chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.Mutex
	stopped bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// New creates the orchestrator. chains maps source id to its assembled
// acquisition chain.
func New(cfg *config.Config, chains map[string]*strategy.Chain, st *store.Store, opts ...Option) *Orchestrator {
	concurrency := cfg.Crawler.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	o := &Orchestrator{
		cfg:    cfg,
		chains: chains,
		store:  st,
		log:    logger.Nop(),
		sem:    make(chan struct{}, concurrency),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the orchestrator logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPublisher sets the downstream event publisher.
func WithPublisher(p repository.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// Start launches one schedule loop per configured source. Each source
// crawls once immediately, then on its class interval.
func (o *Orchestrator) Start(ctx context.Context) {
	for i := range o.cfg.Sources {
		spec := &o.cfg.Sources[i]
		o.wg.Add(1)
		go o.loop(ctx, spec)
	}
	o.log.Info("orchestrator started",
		logger.Int("sources", len(o.cfg.Sources)),
		logger.Int("concurrency", cap(o.sem)),
	)
}

// Stop halts scheduling and waits for in-flight crawls, including
// on-demand ones spawned from reads.
func (o *Orchestrator) Stop() {
	o.once.Do(func() {
		o.mu.Lock()
		o.stopped = true
		o.mu.Unlock()
		close(o.stopCh)
	})
	o.wg.Wait()
}

func (o *Orchestrator) loop(ctx context.Context, spec *config.SourceSpec) {
	defer o.wg.Done()

	interval := o.cfg.ClassOf(spec).Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.CrawlOnce(ctx, spec.ID)
	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.CrawlOnce(ctx, spec.ID)
		}
	}
}

// CrawlOnce runs one full cycle for one source: chain, validate, merge,
// store, publish. The returned outcome is already logged and counted.
func (o *Orchestrator) CrawlOnce(ctx context.Context, sourceID string) models.CrawlOutcome {
	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-ctx.Done():
		return o.finish(models.CrawlOutcome{
			CrawlID:  uuid.NewString(),
			SourceID: sourceID,
			Status:   models.OutcomeChainExhausted,
			Reason:   ctx.Err().Error(),
		}, time.Now())
	}

	start := time.Now()
	outcome := models.CrawlOutcome{
		CrawlID:  uuid.NewString(),
		SourceID: sourceID,
	}

	chain, ok := o.chains[sourceID]
	if !ok {
		outcome.Status = models.OutcomeChainExhausted
		outcome.Reason = "no chain configured"
		return o.finish(outcome, start)
	}

	rec, err := chain.Run(ctx)
	if err != nil {
		outcome.Status = classifyChainError(err)
		outcome.Reason = err.Error()
		return o.finish(outcome, start)
	}
	outcome.Strategy = rec.StrategyUsed

	decision, err := o.store.Apply(ctx, rec)
	if err != nil {
		outcome.Status = models.OutcomeStorageFailed
		outcome.Reason = err.Error()
		return o.finish(outcome, start)
	}

	outcome.Status = models.OutcomeSuccess
	outcome.Decision = decision.String()
	o.observe(rec)
	if decision != merge.Drop {
		o.publish(ctx, rec, decision.String())
	}
	return o.finish(outcome, start)
}

// Read serves one source from the consistency layer. An empty source
// triggers an on-demand crawl in the background; the caller still gets
// ErrEmpty for this request.
func (o *Orchestrator) Read(ctx context.Context, sourceID string) (*store.ReadResult, error) {
	res, err := o.store.Read(ctx, sourceID)
	if store.IsEmpty(err) {
		if _, ok := o.chains[sourceID]; ok {
			o.spawnCrawl(sourceID)
		}
	}
	return res, err
}

// spawnCrawl runs one background crawl tracked by the orchestrator's
// WaitGroup, so Stop drains it before the storage clients are closed.
func (o *Orchestrator) spawnCrawl(sourceID string) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		o.CrawlOnce(context.Background(), sourceID)
	}()
}

// History reads a source's archived observations.
func (o *Orchestrator) History(ctx context.Context, sourceID string, from, to time.Time, limit int) ([]*models.CanonicalRecord, error) {
	return o.store.History(ctx, sourceID, from, to, limit)
}

// ForceRefresh crawls a source immediately, outside its schedule.
func (o *Orchestrator) ForceRefresh(ctx context.Context, sourceID string) (models.CrawlOutcome, error) {
	if _, ok := o.chains[sourceID]; !ok {
		return models.CrawlOutcome{}, models.ErrEmpty
	}
	return o.CrawlOnce(ctx, sourceID), nil
}

// Status reports tier state for one source.
func (o *Orchestrator) Status(ctx context.Context, sourceID string) models.SourceStatus {
	return o.store.Status(ctx, sourceID)
}

// Sources lists the configured source ids.
func (o *Orchestrator) Sources() []string {
	ids := make([]string, 0, len(o.cfg.Sources))
	for i := range o.cfg.Sources {
		ids = append(ids, o.cfg.Sources[i].ID)
	}
	return ids
}

// Healthy reports whether both storage tiers answer.
func (o *Orchestrator) Healthy(ctx context.Context) error {
	return o.store.Healthy(ctx)
}

func (o *Orchestrator) finish(outcome models.CrawlOutcome, start time.Time) models.CrawlOutcome {
	outcome.Duration = time.Since(start)
	outcome.FinishedAt = time.Now()

	evt := o.log.Info
	if outcome.Status != models.OutcomeSuccess {
		evt = o.log.Warn
	}
	evt("crawl finished",
		logger.String("crawl_id", outcome.CrawlID),
		logger.String("source", outcome.SourceID),
		logger.String("outcome", string(outcome.Status)),
		logger.String("strategy", outcome.Strategy),
		logger.String("decision", outcome.Decision),
		logger.String("reason", outcome.Reason),
		logger.Dur("duration", outcome.Duration),
	)
	if o.metrics != nil {
		o.metrics.RecordCrawl(outcome.SourceID, outcome.Status, outcome.Duration)
	}
	return outcome
}

// observe exports the record's numeric fields as gauges.
func (o *Orchestrator) observe(rec *models.CanonicalRecord) {
	if o.metrics == nil {
		return
	}
	for _, f := range rec.Fields {
		if f.Numeric {
			o.metrics.RecordLastValue(rec.SourceID, f.Name, f.Num)
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, rec *models.CanonicalRecord, decision string) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, rec, decision); err != nil {
		// Publishing is best-effort; the record is already durable.
		o.log.Warn("publish failed",
			logger.String("source", rec.SourceID),
			logger.Err(err),
		)
	}
}

func classifyChainError(err error) models.Outcome {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return models.OutcomeValidationFailed
	}
	return models.OutcomeChainExhausted
}
