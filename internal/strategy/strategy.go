// Package strategy implements the ordered acquisition chain: cheap
// endpoint variants first, page fetches next, automated-browser capture
// last. Adding a strategy kind never touches the chain-walking logic.
package strategy

import (
	"context"
	"fmt"

	"MarketPull/internal/domain/models"
	"MarketPull/pkg/config"
	pkghttp "MarketPull/pkg/http"

	"golang.org/x/time/rate"
)

const (
	KindEndpoint = "endpoint"
	KindPage     = "page"
	KindBrowser  = "browser"
)

// Strategy is one concrete acquisition method for a source.
type Strategy interface {
	Kind() string
	URL() string
	// Attempt fetches one raw payload. The context carries the
	// per-attempt timeout; errors are wrapped as *models.StrategyError.
	Attempt(ctx context.Context) (*models.RawPayload, error)
}

// New builds a strategy from its spec. The http client and rate limiter
// are shared across all strategies so the process-wide outbound budget
// holds.
func New(spec config.StrategySpec, client *pkghttp.Client, limiter *rate.Limiter) (Strategy, error) {
	switch spec.Kind {
	case KindEndpoint:
		return newEndpoint(spec, client, limiter), nil
	case KindPage:
		return newPage(spec, client, limiter), nil
	case KindBrowser:
		return newBrowser(spec), nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", spec.Kind)
	}
}
