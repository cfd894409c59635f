package strategy

import (
	"context"

	"MarketPull/internal/domain/models"
	"MarketPull/pkg/config"
	pkghttp "MarketPull/pkg/http"

	"golang.org/x/time/rate"
)

// browserHeaders makes a plain fetch look like a regular page view; some
// sources serve quote pages only to browser-like clients.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.8,zh-CN;q=0.6",
}

// pageStrategy fetches a full HTML page over plain HTTP. Heavier than an
// endpoint variant, far cheaper than driving a browser.
type pageStrategy struct {
	spec    config.StrategySpec
	client  *pkghttp.Client
	limiter *rate.Limiter
}

func newPage(spec config.StrategySpec, client *pkghttp.Client, limiter *rate.Limiter) *pageStrategy {
	return &pageStrategy{spec: spec, client: client, limiter: limiter}
}

func (s *pageStrategy) Kind() string { return KindPage }
func (s *pageStrategy) URL() string  { return s.spec.URL }

func (s *pageStrategy) Attempt(ctx context.Context) (*models.RawPayload, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &models.StrategyError{Strategy: KindPage, URL: s.spec.URL, Err: err}
	}

	headers := make(map[string]string, len(browserHeaders)+len(s.spec.Headers))
	for k, v := range browserHeaders {
		headers[k] = v
	}
	for k, v := range s.spec.Headers {
		headers[k] = v
	}

	body, err := s.client.Fetch(ctx, s.spec.URL, headers)
	if err != nil {
		return nil, &models.StrategyError{Strategy: KindPage, URL: s.spec.URL, Err: err}
	}
	return &models.RawPayload{Body: body, Strategy: KindPage, URL: s.spec.URL}, nil
}
