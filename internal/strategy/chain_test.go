package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	kind     string
	url      string
	body     []byte
	err      error
	attempts int
}

func (f *fakeStrategy) Kind() string { return f.kind }
func (f *fakeStrategy) URL() string  { return f.url }

func (f *fakeStrategy) Attempt(ctx context.Context) (*models.RawPayload, error) {
	f.attempts++
	if f.err != nil {
		return nil, &models.StrategyError{Strategy: f.kind, URL: f.url, Err: f.err}
	}
	return &models.RawPayload{Body: f.body, Strategy: f.kind, URL: f.url}, nil
}

func passthroughBuild(payload *models.RawPayload) (*models.CanonicalRecord, error) {
	return &models.CanonicalRecord{
		SourceID:     "fx:test",
		StrategyUsed: payload.Strategy,
		Fields:       []models.Field{{Name: "text", Text: string(payload.Body)}},
	}, nil
}

func TestChainFallsThroughToFirstWorkingStrategy(t *testing.T) {
	down := errors.New("connection refused")
	first := &fakeStrategy{kind: KindEndpoint, url: "http://a", err: down}
	second := &fakeStrategy{kind: KindEndpoint, url: "http://b", err: down}
	third := &fakeStrategy{kind: KindPage, url: "http://c", body: []byte("quote")}

	chain := NewChain("fx:test",
		[]Strategy{first, second, third},
		nil,
		passthroughBuild,
		WithRetry(0, time.Millisecond),
	)

	rec, err := chain.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindPage, rec.StrategyUsed)
	assert.Equal(t, "quote", rec.Fields[0].Text)
	assert.Equal(t, 1, first.attempts)
	assert.Equal(t, 1, second.attempts)
	assert.Equal(t, 1, third.attempts)
}

func TestChainExhaustedWhenAllStrategiesFail(t *testing.T) {
	down := errors.New("connection refused")
	chain := NewChain("fx:test",
		[]Strategy{
			&fakeStrategy{kind: KindEndpoint, url: "http://a", err: down},
			&fakeStrategy{kind: KindPage, url: "http://b", err: down},
		},
		nil,
		passthroughBuild,
		WithRetry(0, time.Millisecond),
	)

	rec, err := chain.Run(context.Background())
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, models.ErrChainExhausted)
}

func TestChainRetriesTransportFailures(t *testing.T) {
	down := errors.New("timeout")
	only := &fakeStrategy{kind: KindEndpoint, url: "http://a", err: down}

	chain := NewChain("fx:test",
		[]Strategy{only},
		nil,
		passthroughBuild,
		WithRetry(2, time.Millisecond),
	)

	_, err := chain.Run(context.Background())
	assert.ErrorIs(t, err, models.ErrChainExhausted)
	assert.Equal(t, 3, only.attempts)
}

func TestChainDoesNotRetryParseFailures(t *testing.T) {
	bad := &fakeStrategy{kind: KindEndpoint, url: "http://a", body: []byte("garbage")}
	good := &fakeStrategy{kind: KindPage, url: "http://b", body: []byte("quote")}

	calls := 0
	build := func(payload *models.RawPayload) (*models.CanonicalRecord, error) {
		calls++
		if payload.Strategy == KindEndpoint {
			return nil, &models.ParseError{Strategy: payload.Strategy, Reason: "anchor not found"}
		}
		return passthroughBuild(payload)
	}

	chain := NewChain("fx:test",
		[]Strategy{bad, good},
		nil,
		build,
		WithRetry(2, time.Millisecond),
	)

	rec, err := chain.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindPage, rec.StrategyUsed)
	assert.Equal(t, 1, bad.attempts)
	assert.Equal(t, 2, calls)
}

func TestChainStopsAtBudget(t *testing.T) {
	slow := &slowStrategy{kind: KindEndpoint, url: "http://a", delay: 50 * time.Millisecond}
	never := &fakeStrategy{kind: KindPage, url: "http://b", body: []byte("quote")}

	chain := NewChain("fx:test",
		[]Strategy{slow, never},
		[]time.Duration{time.Second, time.Second},
		passthroughBuild,
		WithBudget(10*time.Millisecond),
		WithRetry(0, time.Millisecond),
	)

	_, err := chain.Run(context.Background())
	assert.ErrorIs(t, err, models.ErrChainExhausted)
	assert.Equal(t, 0, never.attempts)
}

type slowStrategy struct {
	kind  string
	url   string
	delay time.Duration
}

func (s *slowStrategy) Kind() string { return s.kind }
func (s *slowStrategy) URL() string  { return s.url }

func (s *slowStrategy) Attempt(ctx context.Context) (*models.RawPayload, error) {
	select {
	case <-ctx.Done():
		return nil, &models.StrategyError{Strategy: s.kind, URL: s.url, Err: ctx.Err()}
	case <-time.After(s.delay):
		return nil, &models.StrategyError{Strategy: s.kind, URL: s.url, Err: errors.New("slow")}
	}
}
