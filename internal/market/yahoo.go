package market

import (
	"context"
	"net/url"

	"github.com/richgang/indice-killer/internal/models"
)

// Yahoo reads the chart endpoint's meta block. It needs no API key; the
// enabled flag plays the credential's role.
type Yahoo struct {
	httpSource
	enabled bool
}

// NewYahoo creates a Yahoo Finance provider
func NewYahoo(enabled bool, opts Options) *Yahoo {
	return &Yahoo{
		httpSource: newHTTPSource("yahoo_finance", "https://query1.finance.yahoo.com", false, yahooTickers, opts),
		enabled:    enabled,
	}
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				PreviousClose        float64 `json:"previousClose"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketOpen    float64 `json:"regularMarketOpen"`
				RegularMarketVolume  int64   `json:"regularMarketVolume"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

// Fetch implements Provider
func (p *Yahoo) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	if !p.enabled {
		return nil, ErrMissingCredential
	}
	if err := p.admit(ctx); err != nil {
		return nil, err
	}

	var body yahooChart
	params := url.Values{
		"interval": {"1m"},
		"range":    {"1d"},
	}
	headers := map[string]string{"User-Agent": "Mozilla/5.0"}
	if err := p.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(p.ticker(symbol)), params, headers, &body); err != nil {
		return nil, err
	}
	if len(body.Chart.Result) == 0 || body.Chart.Result[0].Meta.RegularMarketPrice == 0 {
		return nil, ErrNoData
	}

	meta := body.Chart.Result[0].Meta
	price := meta.RegularMarketPrice
	prev := meta.PreviousClose
	if prev == 0 {
		prev = meta.ChartPreviousClose
	}

	var change, pct float64
	if prev > 0 {
		change = price - prev
		pct = (price/prev - 1) * 100
	}
	open := meta.RegularMarketOpen
	if open == 0 {
		open = prev
	}
	return p.buildQuote(symbol, price, change, pct, meta.RegularMarketDayHigh, meta.RegularMarketDayLow, open, meta.RegularMarketVolume), nil
}
