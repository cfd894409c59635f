package strategy

import (
	"context"

	"MarketPull/internal/domain/models"
	"MarketPull/pkg/config"
	pkghttp "MarketPull/pkg/http"

	"golang.org/x/time/rate"
)

// endpointStrategy hits a direct data endpoint. Several variants of the
// same source usually exist on different physical hosts; each is its own
// chain step so regional blocking of one host degrades to the next.
type endpointStrategy struct {
	spec    config.StrategySpec
	client  *pkghttp.Client
	limiter *rate.Limiter
}

func newEndpoint(spec config.StrategySpec, client *pkghttp.Client, limiter *rate.Limiter) *endpointStrategy {
	return &endpointStrategy{spec: spec, client: client, limiter: limiter}
}

func (s *endpointStrategy) Kind() string { return KindEndpoint }
func (s *endpointStrategy) URL() string  { return s.spec.URL }

func (s *endpointStrategy) Attempt(ctx context.Context) (*models.RawPayload, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &models.StrategyError{Strategy: KindEndpoint, URL: s.spec.URL, Err: err}
	}

	body, err := s.client.Fetch(ctx, s.spec.URL, s.spec.Headers)
	if err != nil {
		return nil, &models.StrategyError{Strategy: KindEndpoint, URL: s.spec.URL, Err: err}
	}
	return &models.RawPayload{Body: body, Strategy: KindEndpoint, URL: s.spec.URL}, nil
}
