package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/domain/repository"
)

// schemaStatements creates the archive tables. facts is the append-only
// history; facts_latest keeps one row per source, collapsed by
// ReplacingMergeTree on stored_at.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS facts (
		source_id     String,
		observed_at   DateTime64(3, 'UTC'),
		crawled_at    DateTime64(3, 'UTC'),
		stored_at     DateTime64(3, 'UTC'),
		strategy      LowCardinality(String),
		unit          LowCardinality(String),
		currency      LowCardinality(String),
		content_hash  FixedString(64),
		fields        String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(observed_at)
	ORDER BY (source_id, observed_at)`,

	`CREATE TABLE IF NOT EXISTS facts_latest (
		source_id     String,
		observed_at   DateTime64(3, 'UTC'),
		crawled_at    DateTime64(3, 'UTC'),
		stored_at     DateTime64(3, 'UTC'),
		strategy      LowCardinality(String),
		unit          LowCardinality(String),
		currency      LowCardinality(String),
		content_hash  FixedString(64),
		fields        String
	) ENGINE = ReplacingMergeTree(stored_at)
	ORDER BY source_id`,
}

// ClickHouseArchive implements the durable tier on ClickHouse.
type ClickHouseArchive struct {
	db *sql.DB
}

// NewClickHouseArchive creates the ClickHouse-backed archive.
func NewClickHouseArchive(db *sql.DB) repository.Archive {
	return &ClickHouseArchive{db: db}
}

func (a *ClickHouseArchive) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return &models.StorageError{Tier: "archive", Op: "init", Err: err}
		}
	}
	return nil
}

// Latest reads the current latest record for a source. Returns (nil, nil)
// when the source has never been stored. FINAL forces ReplacingMergeTree
// collapse so a just-written row is never shadowed by a stale one.
func (a *ClickHouseArchive) Latest(ctx context.Context, sourceID string) (*models.ArchiveRecord, error) {
	q := `SELECT source_id, observed_at, crawled_at, stored_at, strategy, unit, currency, content_hash, fields
		FROM facts_latest FINAL WHERE source_id = ?`

	row := a.db.QueryRowContext(ctx, q, sourceID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StorageError{Tier: "archive", Op: "latest", Err: err}
	}
	return rec, nil
}

func (a *ClickHouseArchive) SetLatest(ctx context.Context, rec *models.CanonicalRecord) error {
	if err := a.insert(ctx, "facts_latest", rec); err != nil {
		return &models.StorageError{Tier: "archive", Op: "set_latest", Err: err}
	}
	// Latest is also a history row; one write path feeds both views.
	if err := a.insert(ctx, "facts", rec); err != nil {
		return &models.StorageError{Tier: "archive", Op: "append_history", Err: err}
	}
	return nil
}

// AppendHistory stores a late-arriving record without touching the latest
// pointer.
func (a *ClickHouseArchive) AppendHistory(ctx context.Context, rec *models.CanonicalRecord) error {
	if err := a.insert(ctx, "facts", rec); err != nil {
		return &models.StorageError{Tier: "archive", Op: "append_history", Err: err}
	}
	return nil
}

func (a *ClickHouseArchive) insert(ctx context.Context, table string, rec *models.CanonicalRecord) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(source_id, observed_at, crawled_at, stored_at, strategy, unit, currency, content_hash, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)
	_, err = a.db.ExecContext(ctx, q,
		rec.SourceID,
		rec.ObservedAt.UTC(),
		rec.CrawledAt.UTC(),
		time.Now().UTC(),
		rec.StrategyUsed,
		rec.Unit,
		rec.Currency,
		rec.ContentHash,
		string(fields),
	)
	return err
}

func (a *ClickHouseArchive) History(ctx context.Context, sourceID string, from, to time.Time, limit int) ([]*models.CanonicalRecord, error) {
	q := `SELECT source_id, observed_at, crawled_at, stored_at, strategy, unit, currency, content_hash, fields
		FROM facts WHERE source_id = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at DESC LIMIT ?`

	rows, err := a.db.QueryContext(ctx, q, sourceID, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, &models.StorageError{Tier: "archive", Op: "history", Err: err}
	}
	defer rows.Close()

	var out []*models.CanonicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &models.StorageError{Tier: "archive", Op: "history", Err: err}
		}
		out = append(out, &rec.CanonicalRecord)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Tier: "archive", Op: "history", Err: err}
	}
	return out, nil
}

func (a *ClickHouseArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *ClickHouseArchive) Close() error {
	return nil // pool owned by pkg/clickhouse
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*models.ArchiveRecord, error) {
	var rec models.ArchiveRecord
	var fields string
	err := s.Scan(
		&rec.SourceID,
		&rec.ObservedAt,
		&rec.CrawledAt,
		&rec.StoredAt,
		&rec.StrategyUsed,
		&rec.Unit,
		&rec.Currency,
		&rec.ContentHash,
		&fields,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return &rec, nil
}
