package models

import "time"

// HistoryPoint is a single daily price point in a history series.
type HistoryPoint struct {
	// Timestamp is the point's time in milliseconds since epoch.
	Timestamp int64 `json:"timestamp"`

	// Price is the BTC price in the series currency, rounded to the
	// nearest integer unit.
	Price int64 `json:"price"`

	// Label is a short display label derived from the point's day and
	// month (e.g. "Jan 2").
	Label string `json:"label"`
}

// HistorySet maps currency code to its daily price series,
// ordered by ascending timestamp.
type HistorySet map[string][]HistoryPoint

// HistorySnapshot is the persisted form of the history cache entry.
type HistorySnapshot struct {
	// Series holds one series per tracked currency.
	Series HistorySet `json:"series"`

	// LastUpdated is when the set was last replaced.
	LastUpdated time.Time `json:"last_updated"`
}
