package repository

import (
	"context"
	"time"

	"MarketPull/internal/domain/models"
)

// Archive is the durable tier: append-only history per source plus one
// materialized latest record per source. Only the consistency layer calls
// the write methods.
type Archive interface {
	Init(ctx context.Context) error
	Latest(ctx context.Context, sourceID string) (*models.ArchiveRecord, error) // (nil, nil) when no record exists
	SetLatest(ctx context.Context, rec *models.CanonicalRecord) error
	AppendHistory(ctx context.Context, rec *models.CanonicalRecord) error
	History(ctx context.Context, sourceID string, from, to time.Time, limit int) ([]*models.CanonicalRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// Publisher emits accepted records to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, rec *models.CanonicalRecord, decision string) error
	Close() error
}

// Metrics records crawl and storage observability signals.
type Metrics interface {
	RecordCrawl(sourceID string, outcome models.Outcome, d time.Duration)
	RecordStrategy(sourceID, kind, result string)
	RecordCacheRead(sourceID string, hit bool)
	RecordLastValue(sourceID, field string, v float64)
	SetArchiveUp(up bool)
}
