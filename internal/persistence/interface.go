// Package persistence provides the key-value engines behind the dry resource.
//
// Every engine offers the same small contract: a single value per key,
// last write wins, and an optional expiration after which the record is
// no longer visible. There is no listing, deletion or transaction support.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when a key was never written or its
// record has expired.
var ErrKeyNotFound = errors.New("key not found")

// IsNotFound reports whether err means the key is absent
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// PutOptions tune a single write
type PutOptions struct {
	// ExpirationTTL is how long the record stays visible after the write.
	// Zero or negative means the record never expires.
	ExpirationTTL time.Duration
}

// Engine represents a key-value backend with expiring records.
// Implementations are safe for concurrent use.
type Engine interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string, opts PutOptions) error
	Close() error
}

// Sweeper is implemented by engines that hide expired records on read but
// need an explicit pass to reclaim them.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Config holds engine selection
type Config struct {
	Type       string // "memory", "badger", "bolt"
	DataDir    string
	SyncWrites bool
}
