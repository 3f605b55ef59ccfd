// Package cache provides the durable snapshot store and the staleness policy.
//
// The store is a best-effort durability layer, not a transaction log: a
// failed save must never abort the in-memory update that triggered it.
// Each cache kind has exactly one writer (its synchronizer), so no
// cross-writer coordination is needed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/walletd/marketsync/internal/models"
)

// ErrCacheMiss is returned by Load when no record exists for a kind,
// or when the stored record carries an unknown schema version.
var ErrCacheMiss = errors.New("cache: miss")

// Store is the port implemented by the file and redis adapters.
type Store interface {
	// Load returns the record for a kind, or ErrCacheMiss.
	Load(ctx context.Context, kind models.CacheKind) (*models.CacheRecord, error)

	// Save overwrites the record for a kind with the given payload,
	// stamped with the current time.
	Save(ctx context.Context, kind models.CacheKind, payload any) error

	// Close releases adapter resources.
	Close() error
}

// newRecord wraps a payload in a versioned record stamped now.
func newRecord(payload any, now time.Time) (*models.CacheRecord, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &models.CacheRecord{
		Version:   models.CacheSchemaVersion,
		Payload:   raw,
		Timestamp: now,
	}, nil
}
