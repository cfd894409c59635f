package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent (or physically expired).
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the key-value contract the consistency layer writes through.
// Values are JSON-encoded; expiration here is the physical retention, not
// the logical freshness window (that lives in the stored entry itself).
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Health(ctx context.Context) error
	Close() error
}
