package models

import (
	"encoding/json"
	"time"
)

// CacheKind identifies one of the independent cache entries.
// Each kind has exactly one writer: its synchronizer.
type CacheKind string

const (
	CachePrice   CacheKind = "price"
	CacheRates   CacheKind = "rates"
	CacheHistory CacheKind = "history"
)

// CacheSchemaVersion tags persisted records. Records with an unknown
// version are treated as absent on load.
const CacheSchemaVersion = 1

// CacheRecord is the persisted envelope around a cache payload.
type CacheRecord struct {
	// Version is the record schema version.
	Version int `json:"version"`

	// Payload is the serialized snapshot for the record's kind.
	Payload json.RawMessage `json:"payload"`

	// Timestamp is when the record was written. It is distinct from the
	// payload's own LastUpdated and is what staleness arithmetic uses.
	Timestamp time.Time `json:"timestamp"`
}
