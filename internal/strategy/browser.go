package strategy

import (
	"context"
	"fmt"

	"MarketPull/internal/domain/models"
	"MarketPull/pkg/config"

	"github.com/chromedp/chromedp"
)

// browserStrategy drives a headless browser and captures the rendered
// document. Last resort for sources that assemble their quotes with
// scripts; expensive and fragile, which is why it sits at the tail of
// every chain.
type browserStrategy struct {
	spec config.StrategySpec
}

func newBrowser(spec config.StrategySpec) *browserStrategy {
	return &browserStrategy{spec: spec}
}

func (s *browserStrategy) Kind() string { return KindBrowser }
func (s *browserStrategy) URL() string  { return s.spec.URL }

func (s *browserStrategy) Attempt(ctx context.Context) (*models.RawPayload, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("blink-settings", "imagesEnabled=false"),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	actions := []chromedp.Action{chromedp.Navigate(s.spec.URL)}
	if s.spec.WaitFor != "" {
		actions = append(actions, chromedp.WaitVisible(s.spec.WaitFor, chromedp.ByQuery))
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return nil, &models.StrategyError{Strategy: KindBrowser, URL: s.spec.URL, Err: err}
	}
	if html == "" {
		return nil, &models.StrategyError{Strategy: KindBrowser, URL: s.spec.URL, Err: fmt.Errorf("empty document")}
	}
	return &models.RawPayload{Body: []byte(html), Strategy: KindBrowser, URL: s.spec.URL}, nil
}
