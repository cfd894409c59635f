// Package store is the consistency layer between the fast tier (cache)
// and the durable tier (archive). All reads and all accepted writes go
// through it; nothing else touches both tiers.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/domain/repository"
	"MarketPull/internal/merge"
	"MarketPull/pkg/cache"
	"MarketPull/pkg/logger"
)

const keyPrefix = "fact:"

// Store coordinates the two tiers. Writes are archive-first: the cache is
// only touched after the durable write succeeded, so a crash between the
// two leaves a stale cache (self-healing via TTL), never a phantom value.
type Store struct {
	cache   cache.Service
	archive repository.Archive
	log     *logger.Logger
	metrics repository.Metrics

	ttlOf         func(sourceID string) time.Duration
	retention     int
	repairTimeout time.Duration
	now           func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	stats map[string]*tierStats
}

type tierStats struct {
	hits   uint64
	misses uint64
}

// Option configures a Store.
type Option func(*Store)

// New creates the consistency layer. ttlOf maps a source to its logical
// freshness window.
func New(c cache.Service, a repository.Archive, ttlOf func(string) time.Duration, opts ...Option) *Store {
	s := &Store{
		cache:         c,
		archive:       a,
		log:           logger.Nop(),
		ttlOf:         ttlOf,
		retention:     10,
		repairTimeout: 2 * time.Second,
		now:           time.Now,
		locks:         make(map[string]*sync.Mutex),
		stats:         make(map[string]*tierStats),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLogger sets the store logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithRetention sets the physical-over-logical TTL factor.
func WithRetention(factor int) Option {
	return func(s *Store) {
		if factor > 0 {
			s.retention = factor
		}
	}
}

// WithRepairTimeout bounds the cache write during read-repair.
func WithRepairTimeout(d time.Duration) Option {
	return func(s *Store) { s.repairTimeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// ReadResult says where a served record came from. Stale is set only on
// the archive-outage fallback path.
type ReadResult struct {
	Record *models.CanonicalRecord
	Cached bool
	Stale  bool
}

// Read serves one source. Fresh cache wins; a miss or soft-expired entry
// falls through to the archive and repairs the cache on the way back. When
// the archive is unreachable a soft-expired entry is still served, marked
// stale, rather than failing the read.
func (s *Store) Read(ctx context.Context, sourceID string) (*ReadResult, error) {
	now := s.now()

	var entry models.CacheEntry
	cacheErr := s.cache.Get(ctx, keyPrefix+sourceID, &entry)
	if cacheErr == nil && entry.Fresh(now) {
		s.count(sourceID, true)
		return &ReadResult{Record: &entry.Record, Cached: true}, nil
	}
	s.count(sourceID, false)

	latest, err := s.archive.Latest(ctx, sourceID)
	s.archiveUp(err == nil)
	if err != nil {
		if cacheErr == nil {
			// Stale beats nothing while the durable tier is down.
			s.log.Warn("archive unreachable, serving soft-expired entry",
				logger.String("source", sourceID),
				logger.Err(err),
			)
			return &ReadResult{Record: &entry.Record, Cached: true, Stale: true}, nil
		}
		return nil, err
	}
	if latest == nil {
		return nil, models.ErrEmpty
	}

	s.repair(sourceID, &latest.CanonicalRecord)
	return &ReadResult{Record: &latest.CanonicalRecord}, nil
}

// repair writes an archive read back into the cache, bounded by its own
// timeout so a slow cache never stalls the read path.
func (s *Store) repair(sourceID string, rec *models.CanonicalRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), s.repairTimeout)
	defer cancel()
	if err := s.writeCache(ctx, rec); err != nil {
		s.log.Warn("read-repair failed",
			logger.String("source", sourceID),
			logger.Err(err),
		)
	}
}

// Apply lands a validated record: deduplicate against the archive's latest
// pointer, write durably, then write through to the cache. Per-source
// serialization makes the read-decide-write step atomic against concurrent
// crawls of the same source.
func (s *Store) Apply(ctx context.Context, rec *models.CanonicalRecord) (merge.Decision, error) {
	lock := s.lockFor(rec.SourceID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := s.archive.Latest(ctx, rec.SourceID)
	s.archiveUp(err == nil)
	if err != nil {
		return merge.Drop, err
	}

	decision := merge.Decide(rec, latest)
	switch decision {
	case merge.Drop:
		return decision, nil
	case merge.AppendHistory:
		if err := s.archive.AppendHistory(ctx, rec); err != nil {
			return decision, err
		}
		return decision, nil
	default: // Insert, UpdateLatest
		if err := s.archive.SetLatest(ctx, rec); err != nil {
			return decision, err
		}
		if err := s.writeCache(ctx, rec); err != nil {
			// Durable write already landed; the cache catches up via
			// read-repair.
			s.log.Warn("cache write-through failed",
				logger.String("source", rec.SourceID),
				logger.Err(err),
			)
		}
		return decision, nil
	}
}

func (s *Store) writeCache(ctx context.Context, rec *models.CanonicalRecord) error {
	ttl := s.ttlOf(rec.SourceID)
	entry := models.CacheEntry{
		Record:   *rec,
		CachedAt: s.now(),
		TTL:      ttl,
	}
	return s.cache.Set(ctx, keyPrefix+rec.SourceID, entry, ttl*time.Duration(s.retention))
}

// History reads a source's archived observations, newest first.
func (s *Store) History(ctx context.Context, sourceID string, from, to time.Time, limit int) ([]*models.CanonicalRecord, error) {
	return s.archive.History(ctx, sourceID, from, to, limit)
}

// Invalidate drops a source's cache entry. Used when an operator forces a
// refresh and wants the next read to hit the archive.
func (s *Store) Invalidate(ctx context.Context, sourceID string) error {
	return s.cache.Delete(ctx, keyPrefix+sourceID)
}

// Status reports per-source tier state for the status endpoint.
func (s *Store) Status(ctx context.Context, sourceID string) models.SourceStatus {
	now := s.now()
	st := models.SourceStatus{SourceID: sourceID}

	var entry models.CacheEntry
	if err := s.cache.Get(ctx, keyPrefix+sourceID, &entry); err == nil {
		st.Cached = true
		st.AgeSeconds = now.Sub(entry.CachedAt).Seconds()
		st.Fresh = entry.Fresh(now)
	}
	st.ArchiveReachable = s.archive.Health(ctx) == nil

	s.mu.Lock()
	if t, ok := s.stats[sourceID]; ok {
		st.Hits, st.Misses = t.hits, t.misses
	}
	s.mu.Unlock()
	return st
}

// Healthy reports whether both tiers answer.
func (s *Store) Healthy(ctx context.Context) error {
	if err := s.cache.Health(ctx); err != nil {
		return err
	}
	return s.archive.Health(ctx)
}

func (s *Store) lockFor(sourceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[sourceID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[sourceID] = l
	return l
}

func (s *Store) archiveUp(up bool) {
	if s.metrics != nil {
		s.metrics.SetArchiveUp(up)
	}
}

func (s *Store) count(sourceID string, hit bool) {
	s.mu.Lock()
	t, ok := s.stats[sourceID]
	if !ok {
		t = &tierStats{}
		s.stats[sourceID] = t
	}
	if hit {
		t.hits++
	} else {
		t.misses++
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordCacheRead(sourceID, hit)
	}
}

// IsEmpty reports whether err marks a source with no stored record yet.
func IsEmpty(err error) bool {
	return errors.Is(err, models.ErrEmpty)
}
