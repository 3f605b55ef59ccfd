package models

import "time"

// PriceSnapshot represents the current BTC spot price as published to consumers.
// It is replaced wholesale on every successful fetch, never partially mutated.
type PriceSnapshot struct {
	// Price is the BTC price in USD. Never negative.
	Price float64 `json:"price"`

	// Change24h is the 24-hour price change in percent, signed.
	Change24h float64 `json:"change_24h"`

	// LastUpdated is the provider-reported time of the quote.
	LastUpdated time.Time `json:"last_updated"`
}
