package models

import "time"

// CurrencyCodes is the closed set of tracked fiat currencies.
// USD comes first and is always pinned to 1.0.
var CurrencyCodes = []string{"USD", "EUR", "GBP", "JPY", "INR", "AUD", "CHF"}

// RateSnapshot represents the fiat conversion-rate basket relative to USD.
type RateSnapshot struct {
	// Rates maps currency code to units per USD. All values positive.
	Rates map[string]float64 `json:"rates"`

	// LastUpdated is when the basket was last replaced.
	LastUpdated time.Time `json:"last_updated"`
}

// DefaultRates returns the hardcoded rate basket used before the first
// successful fetch and as a per-field floor when a response field fails
// to parse.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		"USD": 1.0,
		"EUR": 0.92,
		"GBP": 0.79,
		"JPY": 149.50,
		"INR": 83.10,
		"AUD": 1.52,
		"CHF": 0.88,
	}
}
