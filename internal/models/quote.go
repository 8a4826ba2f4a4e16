package models

import (
	"time"
)

// Canonical symbols served by the API
const (
	SymbolUS30  = "US30"
	SymbolUS100 = "US100"
	SymbolGER30 = "GER30"
)

// Symbols lists the canonical symbols in display order
var Symbols = []string{SymbolUS30, SymbolUS100, SymbolGER30}

// IsSupportedSymbol reports whether symbol is one of the canonical symbols
func IsSupportedSymbol(symbol string) bool {
	for _, s := range Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// MarketStatus describes where the wall clock sits relative to a market's hours
type MarketStatus string

const (
	MarketOpen       MarketStatus = "OPEN"
	MarketClosed     MarketStatus = "CLOSED"
	MarketPreMarket  MarketStatus = "PRE_MARKET"
	MarketAfterHours MarketStatus = "AFTER_HOURS"
	MarketWeekend    MarketStatus = "WEEKEND"
)

// Quote is a normalized price snapshot for a symbol. Quotes are treated as
// immutable once built; the cache hands out the same pointer for a bucket.
type Quote struct {
	Symbol        string       `json:"symbol"`
	Price         float64      `json:"price"`
	Change        float64      `json:"change"`
	ChangePercent float64      `json:"change_percent"`
	High          float64      `json:"high"`
	Low           float64      `json:"low"`
	Open          float64      `json:"open"`
	Volume        int64        `json:"volume"`
	Timestamp     time.Time    `json:"timestamp"`
	IsMarketOpen  bool         `json:"is_market_open"`
	MarketStatus  MarketStatus `json:"market_status"`
	Source        string       `json:"source"`
}

// Validate validates a Quote
func (q *Quote) Validate() error {
	if q.Symbol == "" {
		return ErrInvalidSymbol
	}
	if q.Price <= 0 {
		return ErrInvalidPrice
	}
	if q.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// Summary is the partial quote pushed in market updates and returned by the
// all-symbols endpoint.
type Summary struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	High          float64 `json:"high,omitempty"`
	Low           float64 `json:"low,omitempty"`
	Timestamp     string  `json:"timestamp,omitempty"`
}

// Summarize builds the partial quote view
func (q *Quote) Summarize() Summary {
	return Summary{
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		High:          q.High,
		Low:           q.Low,
		Timestamp:     q.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
