package cache

import "time"

// Per-kind TTLs. Tuned to provider quota generosity: the rate provider
// is cheap per call but tightly metered, so it gets the shortest TTL;
// a history cycle costs one call per tracked currency, so it gets the
// longest.
const (
	// RatesTTL is the in-memory freshness window for the rate basket.
	RatesTTL = 90 * time.Second

	// HistoryTTL is the freshness window for the price-history set.
	HistoryTTL = 30 * time.Minute

	// PriceForegroundTTL gates the refetch on regaining foreground
	// visibility; the 30s timer enforces freshness otherwise.
	PriceForegroundTTL = 2 * time.Minute
)

// IsStale reports whether a value last updated at lastUpdated has
// exceeded ttl as of now. An absent (zero) timestamp is always stale.
func IsStale(lastUpdated time.Time, now time.Time, ttl time.Duration) bool {
	if lastUpdated.IsZero() {
		return true
	}
	return now.Sub(lastUpdated) >= ttl
}
