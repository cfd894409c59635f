package models

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Strategy, parse and validation failures are all
// recoverable by the next strategy in the chain; chain exhaustion and
// storage failures are terminal for one crawl cycle.

var (
	// ErrChainExhausted means every strategy in a source's chain failed.
	ErrChainExhausted = errors.New("strategy chain exhausted")

	// ErrEmpty means neither cache nor archive has ever held data for a
	// source. It is a well-defined "no data yet", not an internal error.
	ErrEmpty = errors.New("no data for source")
)

// StrategyError wraps a transport-level failure of one strategy attempt.
type StrategyError struct {
	Strategy string
	URL      string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s (%s): %v", e.Strategy, e.URL, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// ParseError means a payload was fetched but no usable fields came out.
type ParseError struct {
	Strategy string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse (%s): %s", e.Strategy, e.Reason)
}

// ValidationError carries the first rule a normalized record broke.
type ValidationError struct {
	Field  string
	Rule   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation %s/%s: %s", e.Field, e.Rule, e.Reason)
}

// StorageError marks an archive or cache I/O failure. Writes are
// archive-first, so a StorageError never leaves the cache ahead of the
// archive.
type StorageError struct {
	Tier string // "archive" or "cache"
	Op   string // "latest", "set_latest", "append_history", ...
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Tier, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
