package engine

import (
	"context"

	"github.com/richgang/indice-killer/internal/models"
)

// SnapshotSource summarizes quotes for a fixed symbol set
type SnapshotSource interface {
	Symbols() []string
	MarketSnapshot(ctx context.Context) map[string]models.Summary
}

// Markets is the quote-only SnapshotSource used by processes that do not
// generate signals, such as the standalone WebSocket gateway.
type Markets struct {
	quotes  QuoteSource
	symbols []string
}

// NewMarkets creates a snapshot source. Empty symbols means the canonical set.
func NewMarkets(quotes QuoteSource, symbols []string) *Markets {
	if quotes == nil {
		panic("quotes cannot be nil")
	}
	if len(symbols) == 0 {
		symbols = models.Symbols
	}
	return &Markets{quotes: quotes, symbols: symbols}
}

// Symbols implements SnapshotSource
func (m *Markets) Symbols() []string {
	return m.symbols
}

// MarketSnapshot implements SnapshotSource
func (m *Markets) MarketSnapshot(ctx context.Context) map[string]models.Summary {
	snapshot := make(map[string]models.Summary, len(m.symbols))
	for _, symbol := range m.symbols {
		snapshot[symbol] = m.quotes.Get(ctx, symbol).Summarize()
	}
	return snapshot
}
