package usecase

import (
	"fmt"
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/domain/repository"
	"MarketPull/internal/parser"
	"MarketPull/internal/strategy"
	"MarketPull/internal/validator"
	"MarketPull/pkg/config"
	pkghttp "MarketPull/pkg/http"
	"MarketPull/pkg/logger"

	"golang.org/x/time/rate"
)

// BuildPipeline composes parse and validate into the chain's build step:
// a strategy's payload only counts once it survives both.
func BuildPipeline(spec *config.SourceSpec, p *parser.Parser, v *validator.Validator) strategy.BuildFunc {
	return func(payload *models.RawPayload) (*models.CanonicalRecord, error) {
		rf, err := p.Parse(payload)
		if err != nil {
			return nil, err
		}
		rec, verr := v.Validate(spec, rf, time.Now(), payload.Strategy)
		if verr != nil {
			return nil, verr
		}
		return rec, nil
	}
}

// BuildChains assembles one acquisition chain per configured source. The
// http client and rate limiter are shared so the outbound budget is
// process-wide.
func BuildChains(cfg *config.Config, client *pkghttp.Client, log *logger.Logger, metrics repository.Metrics) (map[string]*strategy.Chain, error) {
	limiter := rate.NewLimiter(rate.Limit(cfg.Crawler.RequestRate), cfg.Crawler.RequestBurst)
	v := validator.New(cfg.Crawler.ClockSkew)

	chains := make(map[string]*strategy.Chain, len(cfg.Sources))
	for i := range cfg.Sources {
		spec := &cfg.Sources[i]

		p, err := parser.New(spec)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", spec.ID, err)
		}

		strategies := make([]strategy.Strategy, 0, len(spec.Strategies))
		timeouts := make([]time.Duration, 0, len(spec.Strategies))
		for _, ss := range spec.Strategies {
			st, err := strategy.New(ss, client, limiter)
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", spec.ID, err)
			}
			strategies = append(strategies, st)
			timeouts = append(timeouts, ss.Timeout)
		}

		chains[spec.ID] = strategy.NewChain(spec.ID, strategies, timeouts,
			BuildPipeline(spec, p, v),
			strategy.WithBudget(cfg.Crawler.ChainBudget),
			strategy.WithRetry(cfg.Crawler.StrategyRetries, cfg.Crawler.RetryBackoff),
			strategy.WithLogger(log),
			strategy.WithMetrics(metrics),
		)
	}
	return chains, nil
}
