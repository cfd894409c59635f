package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// RawPayload is the unparsed output of a single acquisition strategy.
// It is ephemeral: discarded as soon as parsing has run.
type RawPayload struct {
	Body     []byte
	Strategy string // strategy kind that produced it
	URL      string
}

// Field is one named value inside a record. Text always holds the
// normalized string form; Num is valid only when Numeric is set.
type Field struct {
	Name    string  `json:"name"`
	Text    string  `json:"text"`
	Num     float64 `json:"num,omitempty"`
	Numeric bool    `json:"numeric,omitempty"`
}

// RawFields is the parser's output: an ordered field list plus the
// observation timestamp when the payload carried one.
type RawFields struct {
	Fields     []Field
	ObservedAt time.Time // zero when the payload asserts no time
}

// CanonicalRecord is the validated unit of truth for one observation.
type CanonicalRecord struct {
	SourceID     string    `json:"source_id"`
	Fields       []Field   `json:"fields"`
	Unit         string    `json:"unit"`
	Currency     string    `json:"currency"`
	ObservedAt   time.Time `json:"observed_at"`
	CrawledAt    time.Time `json:"crawled_at"`
	StrategyUsed string    `json:"strategy_used"`
	ContentHash  string    `json:"content_hash"`
}

// Fingerprint hashes the semantically meaningful parts of the record:
// source, unit, currency and the ordered fields. Timestamps and
// StrategyUsed are deliberately excluded so a re-scrape of an unchanged
// value produces the same hash.
func (r *CanonicalRecord) Fingerprint() string {
	var b strings.Builder
	b.WriteString(r.SourceID)
	b.WriteByte('|')
	b.WriteString(r.Unit)
	b.WriteByte('|')
	b.WriteString(r.Currency)
	for _, f := range r.Fields {
		b.WriteByte('|')
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Text)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the field with the given name.
func (r *CanonicalRecord) Lookup(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Num returns the numeric value of a field, or 0 when absent/non-numeric.
func (r *CanonicalRecord) Num(name string) float64 {
	if f, ok := r.Lookup(name); ok && f.Numeric {
		return f.Num
	}
	return 0
}

// ArchiveRecord is the durable form of a record as read back from the
// archive's latest pointer.
type ArchiveRecord struct {
	CanonicalRecord
	StoredAt time.Time `json:"stored_at"`
}

// CacheEntry is what the fast tier stores per source. Freshness is a
// logical property (CachedAt + TTL); the physical entry is kept longer so
// a soft-expired value can still serve as a stale fallback.
type CacheEntry struct {
	Record   CanonicalRecord `json:"record"`
	CachedAt time.Time       `json:"cached_at"`
	TTL      time.Duration   `json:"ttl"`
}

// Fresh reports whether the entry is within its TTL at the given instant.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return now.Sub(e.CachedAt) < e.TTL
}
