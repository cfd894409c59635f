package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/store"
	"MarketPull/internal/usecase"
	"MarketPull/pkg/cache"
	"MarketPull/pkg/config"
	pkghttp "MarketPull/pkg/http"
	"MarketPull/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubArchive struct {
	mu      sync.Mutex
	latest  map[string]*models.ArchiveRecord
	history map[string][]*models.CanonicalRecord
}

func newStubArchive() *stubArchive {
	return &stubArchive{
		latest:  make(map[string]*models.ArchiveRecord),
		history: make(map[string][]*models.CanonicalRecord),
	}
}

func (a *stubArchive) Init(ctx context.Context) error { return nil }

func (a *stubArchive) Latest(ctx context.Context, sourceID string) (*models.ArchiveRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest[sourceID], nil
}

func (a *stubArchive) SetLatest(ctx context.Context, rec *models.CanonicalRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latest[rec.SourceID] = &models.ArchiveRecord{CanonicalRecord: *rec, StoredAt: time.Now()}
	a.history[rec.SourceID] = append(a.history[rec.SourceID], rec)
	return nil
}

func (a *stubArchive) AppendHistory(ctx context.Context, rec *models.CanonicalRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history[rec.SourceID] = append(a.history[rec.SourceID], rec)
	return nil
}

func (a *stubArchive) History(ctx context.Context, sourceID string, from, to time.Time, limit int) ([]*models.CanonicalRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history[sourceID], nil
}

func (a *stubArchive) Health(ctx context.Context) error { return nil }
func (a *stubArchive) Close() error                     { return nil }

func newTestHandler(t *testing.T) (*FactsHandler, *store.Store, *echo.Echo) {
	t.Helper()
	arch := newStubArchive()
	st := store.New(cache.NewMemoryCache(), arch, func(string) time.Duration { return time.Minute })

	cfg := &config.Config{
		Crawler: config.CrawlerConfig{Concurrency: 2},
		Sources: []config.SourceSpec{{ID: "fx:cny_twd", TTLClass: "fx"}},
	}
	orch := usecase.New(cfg, nil, st, usecase.WithLogger(logger.Nop()))

	h := NewFactsHandler(orch, logger.Nop())
	e := echo.New()
	h.RegisterRoutes(e)
	return h, st, e
}

func seed(t *testing.T, st *store.Store) *models.CanonicalRecord {
	t.Helper()
	rec := &models.CanonicalRecord{
		SourceID:     "fx:cny_twd",
		Unit:         "TWD",
		Currency:     "CNY",
		ObservedAt:   time.Now(),
		CrawledAt:    time.Now(),
		StrategyUsed: "endpoint",
		Fields:       []models.Field{{Name: "mid", Text: "4.55", Num: 4.55, Numeric: true}},
	}
	rec.ContentHash = rec.Fingerprint()
	_, err := st.Apply(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func TestGetFactReturnsRecord(t *testing.T) {
	_, st, e := newTestHandler(t)
	seed(t, st)

	req := httptest.NewRequest(http.MethodGet, "/api/facts/fx:cny_twd", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp pkghttp.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["cached"])
}

func TestGetFactEmptySourceAccepted(t *testing.T) {
	_, _, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/facts/fx:cny_twd", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestGetHistory(t *testing.T) {
	_, st, e := newTestHandler(t)
	seed(t, st)

	req := httptest.NewRequest(http.MethodGet, "/api/facts/fx:cny_twd/history", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp pkghttp.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Len(t, data["records"], 1)
}

func TestGetHistoryRejectsBadWindow(t *testing.T) {
	_, _, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/facts/fx:cny_twd/history?from=yesterday", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRefreshUnknownSource(t *testing.T) {
	_, _, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/facts/fx:unknown/refresh", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusListsConfiguredSources(t *testing.T) {
	_, st, e := newTestHandler(t)
	seed(t, st)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp pkghttp.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Len(t, data["sources"], 1)
}
