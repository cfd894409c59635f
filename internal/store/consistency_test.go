package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/merge"
	"MarketPull/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeArchive is an in-memory archive with per-call fault injection.
type fakeArchive struct {
	mu      sync.Mutex
	latest  map[string]*models.ArchiveRecord
	history map[string][]*models.CanonicalRecord

	failLatest error
	failWrites error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		latest:  make(map[string]*models.ArchiveRecord),
		history: make(map[string][]*models.CanonicalRecord),
	}
}

func (a *fakeArchive) Init(ctx context.Context) error { return nil }

func (a *fakeArchive) Latest(ctx context.Context, sourceID string) (*models.ArchiveRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failLatest != nil {
		return nil, a.failLatest
	}
	return a.latest[sourceID], nil
}

func (a *fakeArchive) SetLatest(ctx context.Context, rec *models.CanonicalRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failWrites != nil {
		return a.failWrites
	}
	a.latest[rec.SourceID] = &models.ArchiveRecord{CanonicalRecord: *rec, StoredAt: time.Now()}
	a.history[rec.SourceID] = append(a.history[rec.SourceID], rec)
	return nil
}

func (a *fakeArchive) AppendHistory(ctx context.Context, rec *models.CanonicalRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failWrites != nil {
		return a.failWrites
	}
	a.history[rec.SourceID] = append(a.history[rec.SourceID], rec)
	return nil
}

func (a *fakeArchive) History(ctx context.Context, sourceID string, from, to time.Time, limit int) ([]*models.CanonicalRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history[sourceID], nil
}

func (a *fakeArchive) Health(ctx context.Context) error {
	if a.failLatest != nil {
		return a.failLatest
	}
	return nil
}

func (a *fakeArchive) Close() error { return nil }

func record(sourceID string, observed time.Time, price string) *models.CanonicalRecord {
	rec := &models.CanonicalRecord{
		SourceID:     sourceID,
		Unit:         "CNY/unit",
		Currency:     "CNY",
		ObservedAt:   observed,
		CrawledAt:    observed,
		StrategyUsed: "endpoint",
		Fields:       []models.Field{{Name: "price", Text: price}},
	}
	rec.ContentHash = rec.Fingerprint()
	return rec
}

func newStore(t *testing.T, a *fakeArchive) (*Store, cache.Service) {
	t.Helper()
	c := cache.NewMemoryCache()
	s := New(c, a, func(string) time.Duration { return time.Minute })
	return s, c
}

func TestApplyThenReadHitsCache(t *testing.T) {
	arch := newFakeArchive()
	s, _ := newStore(t, arch)
	ctx := context.Background()

	rec := record("fx:cny_twd", time.Now(), "4.55")
	decision, err := s.Apply(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, merge.Insert, decision)

	got, err := s.Read(ctx, "fx:cny_twd")
	require.NoError(t, err)
	assert.True(t, got.Cached)
	assert.Equal(t, "4.55", got.Record.Fields[0].Text)
}

func TestReadRepairsCacheFromArchive(t *testing.T) {
	arch := newFakeArchive()
	s, c := newStore(t, arch)
	ctx := context.Background()

	rec := record("fx:cny_twd", time.Now(), "4.55")
	_, err := s.Apply(ctx, rec)
	require.NoError(t, err)

	// Simulate a cold cache (restart, eviction).
	require.NoError(t, c.Delete(ctx, keyPrefix+"fx:cny_twd"))

	got, err := s.Read(ctx, "fx:cny_twd")
	require.NoError(t, err)
	assert.False(t, got.Cached)
	assert.Equal(t, rec.ContentHash, got.Record.ContentHash)

	// Second read is served by the repaired cache.
	got, err = s.Read(ctx, "fx:cny_twd")
	require.NoError(t, err)
	assert.True(t, got.Cached)
}

func TestReadEmptySource(t *testing.T) {
	arch := newFakeArchive()
	s, _ := newStore(t, arch)

	_, err := s.Read(context.Background(), "fx:never_crawled")
	assert.ErrorIs(t, err, models.ErrEmpty)
}

func TestArchiveFirstWriteKeepsCacheConsistent(t *testing.T) {
	arch := newFakeArchive()
	s, _ := newStore(t, arch)
	ctx := context.Background()

	arch.failWrites = errors.New("archive down")
	_, err := s.Apply(ctx, record("fx:cny_twd", time.Now(), "4.55"))
	require.Error(t, err)

	// The failed durable write must not have leaked into the cache.
	_, err = s.Read(ctx, "fx:cny_twd")
	assert.ErrorIs(t, err, models.ErrEmpty)
}

func TestStaleFallbackWhenArchiveUnreachable(t *testing.T) {
	arch := newFakeArchive()
	c := cache.NewMemoryCache()
	now := time.Now()
	clock := &now
	s := New(c, arch,
		func(string) time.Duration { return time.Minute },
		WithClock(func() time.Time { return *clock }),
	)
	ctx := context.Background()

	_, err := s.Apply(ctx, record("fx:cny_twd", now, "4.55"))
	require.NoError(t, err)

	// Soft-expire the entry, then take the archive down.
	later := now.Add(5 * time.Minute)
	clock = &later
	arch.failLatest = errors.New("connection refused")

	got, err := s.Read(ctx, "fx:cny_twd")
	require.NoError(t, err)
	assert.True(t, got.Stale)
	assert.Equal(t, "4.55", got.Record.Fields[0].Text)
}

func TestMonotonicLatestSurvivesLateArrival(t *testing.T) {
	arch := newFakeArchive()
	s, _ := newStore(t, arch)
	ctx := context.Background()

	t1 := time.Now().Add(-3 * time.Minute)
	t2 := time.Now().Add(-2 * time.Minute)
	t3 := time.Now().Add(-1 * time.Minute)

	d, err := s.Apply(ctx, record("fx:cny_twd", t1, "4.50"))
	require.NoError(t, err)
	assert.Equal(t, merge.Insert, d)

	d, err = s.Apply(ctx, record("fx:cny_twd", t3, "4.56"))
	require.NoError(t, err)
	assert.Equal(t, merge.UpdateLatest, d)

	// t2 arrives late: history only, latest stays at t3.
	d, err = s.Apply(ctx, record("fx:cny_twd", t2, "4.53"))
	require.NoError(t, err)
	assert.Equal(t, merge.AppendHistory, d)

	got, err := s.Read(ctx, "fx:cny_twd")
	require.NoError(t, err)
	assert.Equal(t, "4.56", got.Record.Fields[0].Text)
	assert.Len(t, arch.history["fx:cny_twd"], 3)
}

func TestDuplicateContentDropped(t *testing.T) {
	arch := newFakeArchive()
	s, _ := newStore(t, arch)
	ctx := context.Background()

	base := time.Now()
	_, err := s.Apply(ctx, record("fx:cny_twd", base, "4.55"))
	require.NoError(t, err)

	// Re-poll sees the same value at a later crawl time.
	d, err := s.Apply(ctx, record("fx:cny_twd", base.Add(time.Minute), "4.55"))
	require.NoError(t, err)
	assert.Equal(t, merge.Drop, d)
	assert.Len(t, arch.history["fx:cny_twd"], 1)
}

// slowCache delays writes to simulate a degraded cache tier. Reads pass
// through untouched.
type slowCache struct {
	cache.Service
	delay time.Duration
}

func (c *slowCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.delay):
		return c.Service.Set(ctx, key, value, expiration)
	}
}

func TestReadRepairBoundedBySlowCache(t *testing.T) {
	arch := newFakeArchive()
	sc := &slowCache{Service: cache.NewMemoryCache(), delay: time.Second}
	s := New(sc, arch,
		func(string) time.Duration { return time.Minute },
		WithRepairTimeout(20*time.Millisecond),
	)
	ctx := context.Background()

	// Seed the archive directly; Apply's write-through would also hit the
	// slow cache and pollute the measurement.
	require.NoError(t, arch.SetLatest(ctx, record("fx:cny_twd", time.Now(), "4.55")))

	start := time.Now()
	got, err := s.Read(ctx, "fx:cny_twd")
	require.NoError(t, err)
	assert.False(t, got.Cached)
	assert.Equal(t, "4.55", got.Record.Fields[0].Text)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	// The repair could not land within its budget; the next read goes back
	// to the archive instead of a cache entry.
	got, err = s.Read(ctx, "fx:cny_twd")
	require.NoError(t, err)
	assert.False(t, got.Cached)
}

func TestStatusReportsArchiveUnreachable(t *testing.T) {
	arch := newFakeArchive()
	s, _ := newStore(t, arch)
	arch.failLatest = errors.New("connection refused")

	st := s.Status(context.Background(), "fx:cny_twd")
	assert.False(t, st.ArchiveReachable)
	assert.False(t, st.Cached)
}

func TestStatusReportsTierState(t *testing.T) {
	arch := newFakeArchive()
	s, _ := newStore(t, arch)
	ctx := context.Background()

	_, err := s.Apply(ctx, record("fx:cny_twd", time.Now(), "4.55"))
	require.NoError(t, err)
	_, err = s.Read(ctx, "fx:cny_twd")
	require.NoError(t, err)

	st := s.Status(ctx, "fx:cny_twd")
	assert.True(t, st.Cached)
	assert.True(t, st.Fresh)
	assert.True(t, st.ArchiveReachable)
	assert.Equal(t, uint64(1), st.Hits)
}
