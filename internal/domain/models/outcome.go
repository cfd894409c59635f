package models

import "time"

// Outcome classifies how one crawl cycle for one source ended.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeChainExhausted   Outcome = "chain_exhausted"
	OutcomeStorageFailed    Outcome = "storage_failed"
)

// CrawlOutcome is the structured result of one crawl cycle, handed to the
// logging/metrics collectors. It replaces ad hoc error propagation: the
// orchestrator always receives one of these, never a bare panic.
type CrawlOutcome struct {
	CrawlID    string        `json:"crawl_id"`
	SourceID   string        `json:"source_id"`
	Strategy   string        `json:"strategy,omitempty"` // empty when no strategy produced a record
	Status     Outcome       `json:"outcome"`
	Decision   string        `json:"decision,omitempty"` // merge decision on success
	Reason     string        `json:"reason,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// SourceStatus is the point-in-time health snapshot for one source,
// consumed by the status endpoint.
type SourceStatus struct {
	SourceID         string  `json:"source_id"`
	Cached           bool    `json:"cached"`
	AgeSeconds       float64 `json:"age_seconds"`
	Fresh            bool    `json:"fresh"`
	Hits             uint64  `json:"hits"`
	Misses           uint64  `json:"misses"`
	ArchiveReachable bool    `json:"archive_reachable"`
}
