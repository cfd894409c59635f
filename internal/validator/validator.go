// Package validator accepts or rejects normalized fields against a
// source's field spec and sanity envelope. A failing record never reaches
// storage; the rejection reason rides on the crawl outcome.
package validator

import (
	"fmt"
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/pkg/config"
)

// Validator applies per-source field rules. Rules run in order; the first
// failure wins.
type Validator struct {
	clockSkew time.Duration
	now       func() time.Time
}

// New creates a validator with the given clock-skew tolerance for
// future-dated timestamps.
func New(clockSkew time.Duration) *Validator {
	return &Validator{clockSkew: clockSkew, now: time.Now}
}

// Validate checks rf against spec and, on success, assembles the canonical
// record including its content hash.
func (v *Validator) Validate(spec *config.SourceSpec, rf *models.RawFields, crawledAt time.Time, strategy string) (*models.CanonicalRecord, *models.ValidationError) {
	lookup := make(map[string]models.Field, len(rf.Fields))
	for _, f := range rf.Fields {
		lookup[f.Name] = f
	}

	// Rule 1: required fields present.
	for _, fs := range spec.Fields {
		if fs.ObservedAt || !fs.Required {
			continue
		}
		f, ok := lookup[fs.Name]
		if !ok || f.Text == "" {
			return nil, &models.ValidationError{
				Field:  fs.Name,
				Rule:   "required",
				Reason: "field missing or empty",
			}
		}
	}

	// Rule 2: numeric sanity envelope. Bounds are exclusive so that a
	// price envelope of (0, ceiling) rejects both zero and mis-extracted
	// outliers.
	for _, fs := range spec.Fields {
		f, ok := lookup[fs.Name]
		if !ok || !f.Numeric {
			continue
		}
		if fs.Min != nil && f.Num <= *fs.Min {
			return nil, &models.ValidationError{
				Field:  fs.Name,
				Rule:   "envelope_min",
				Reason: fmt.Sprintf("%v <= %v", f.Num, *fs.Min),
			}
		}
		if fs.Max != nil && f.Num >= *fs.Max {
			return nil, &models.ValidationError{
				Field:  fs.Name,
				Rule:   "envelope_max",
				Reason: fmt.Sprintf("%v >= %v", f.Num, *fs.Max),
			}
		}
	}

	// Rule 3: timestamps not in the future beyond skew tolerance.
	now := v.now()
	observedAt := rf.ObservedAt
	if observedAt.IsZero() {
		// Source asserted no observation time; the crawl instant is the
		// best available assertion.
		observedAt = crawledAt
	}
	if observedAt.After(now.Add(v.clockSkew)) {
		return nil, &models.ValidationError{
			Field:  "observed_at",
			Rule:   "future",
			Reason: fmt.Sprintf("%s is beyond skew tolerance", observedAt.Format(time.RFC3339)),
		}
	}
	if crawledAt.After(now.Add(v.clockSkew)) {
		return nil, &models.ValidationError{
			Field:  "crawled_at",
			Rule:   "future",
			Reason: fmt.Sprintf("%s is beyond skew tolerance", crawledAt.Format(time.RFC3339)),
		}
	}

	rec := &models.CanonicalRecord{
		SourceID:     spec.ID,
		Fields:       rf.Fields,
		Unit:         spec.Unit,
		Currency:     spec.Currency,
		ObservedAt:   observedAt,
		CrawledAt:    crawledAt,
		StrategyUsed: strategy,
	}
	rec.ContentHash = rec.Fingerprint()
	return rec, nil
}
