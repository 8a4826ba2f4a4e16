package market

import (
	"context"
	"net/url"

	"github.com/richgang/indice-killer/internal/models"
)

// Marketstack reads the latest end-of-day bar
type Marketstack struct {
	httpSource
}

// NewMarketstack creates a Marketstack provider
func NewMarketstack(opts Options) *Marketstack {
	return &Marketstack{newHTTPSource("marketstack", "https://api.marketstack.com", true, marketstackTickers, opts)}
}

type marketstackLatest struct {
	Data []struct {
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	} `json:"data"`
}

// Fetch implements Provider
func (p *Marketstack) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := p.admit(ctx); err != nil {
		return nil, err
	}

	var body marketstackLatest
	params := url.Values{
		"access_key": {p.apiKey},
		"symbols":    {p.ticker(symbol)},
	}
	if err := p.getJSON(ctx, "/v1/eod/latest", params, nil, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 || body.Data[0].Close == 0 {
		return nil, ErrNoData
	}

	bar := body.Data[0]
	return p.buildQuote(symbol, bar.Close, bar.Close-bar.Open, percentChange(bar.Open, bar.Close), bar.High, bar.Low, bar.Open, int64(bar.Volume)), nil
}
