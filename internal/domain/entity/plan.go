package entity

import "github.com/shopspring/decimal"

// Plan is a catalog entry synced from the provider for display on the
// pricing page. Prices here are informational; checkout always references
// the provider price id.
type Plan struct {
	ID              int64           `json:"id"`
	ProviderPriceID string          `json:"provider_price_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Interval        string          `json:"interval"`
	IntervalCount   int64           `json:"interval_count"`
	Active          bool            `json:"active"`
}
