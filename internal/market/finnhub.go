package market

import (
	"context"
	"net/url"

	"github.com/richgang/indice-killer/internal/models"
)

// Finnhub fetches /api/v1/quote from Finnhub
type Finnhub struct {
	httpSource
}

// NewFinnhub creates a Finnhub provider
func NewFinnhub(opts Options) *Finnhub {
	return &Finnhub{newHTTPSource("finnhub", "https://finnhub.io", true, finnhubTickers, opts)}
}

type finnhubQuote struct {
	Current       float64  `json:"c"`
	Change        *float64 `json:"d"`
	ChangePercent *float64 `json:"dp"`
	High          float64  `json:"h"`
	Low           float64  `json:"l"`
	Open          float64  `json:"o"`
}

// Fetch implements Provider. Finnhub quotes carry no volume.
func (p *Finnhub) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := p.admit(ctx); err != nil {
		return nil, err
	}

	var body finnhubQuote
	params := url.Values{
		"symbol": {p.ticker(symbol)},
		"token":  {p.apiKey},
	}
	if err := p.getJSON(ctx, "/api/v1/quote", params, nil, &body); err != nil {
		return nil, err
	}
	// unknown tickers come back as all zeros
	if body.Current == 0 {
		return nil, ErrNoData
	}

	var change, pct float64
	if body.Change != nil {
		change = *body.Change
	}
	if body.ChangePercent != nil {
		pct = *body.ChangePercent
	}
	return p.buildQuote(symbol, body.Current, change, pct, body.High, body.Low, body.Open, 0), nil
}
