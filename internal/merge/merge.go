// Package merge decides what a freshly crawled record means for the
// archive: a first insert, a latest-pointer update, a history-only append
// for late arrivals, or a no-op drop for unchanged re-polls.
package merge

import "MarketPull/internal/domain/models"

// Decision is the outcome of deduplicating one record against the
// archive's current latest pointer.
type Decision int

const (
	// Insert: first record ever seen for this source.
	Insert Decision = iota
	// Drop: identical content to the current latest; nothing to store.
	Drop
	// UpdateLatest: new content at or after the latest observation;
	// promote to latest and append to history.
	UpdateLatest
	// AppendHistory: late out-of-order arrival; history only, the latest
	// pointer stays put.
	AppendHistory
)

func (d Decision) String() string {
	switch d {
	case Insert:
		return "insert"
	case Drop:
		return "drop"
	case UpdateLatest:
		return "update_latest"
	case AppendHistory:
		return "append_history"
	default:
		return "unknown"
	}
}

// Decide applies the decision table. The caller must hold the source's
// write serialization; Decide itself is pure.
func Decide(rec *models.CanonicalRecord, latest *models.ArchiveRecord) Decision {
	if latest == nil {
		return Insert
	}
	if rec.ContentHash == latest.ContentHash {
		return Drop
	}
	if rec.ObservedAt.Before(latest.ObservedAt) {
		return AppendHistory
	}
	return UpdateLatest
}
