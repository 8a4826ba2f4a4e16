package market

import (
	"context"
	"net/url"

	"github.com/richgang/indice-killer/internal/models"
)

// AlphaVantage fetches GLOBAL_QUOTE from Alpha Vantage
type AlphaVantage struct {
	httpSource
}

// NewAlphaVantage creates an Alpha Vantage provider
func NewAlphaVantage(opts Options) *AlphaVantage {
	return &AlphaVantage{newHTTPSource("alpha_vantage", "https://www.alphavantage.co", true, alphaVantageTickers, opts)}
}

// Fetch implements Provider
func (p *AlphaVantage) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := p.admit(ctx); err != nil {
		return nil, err
	}

	// Throttled or invalid-key responses come back as 200 with a "Note" or
	// "Information" field and no "Global Quote".
	var body struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	params := url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {p.ticker(symbol)},
		"apikey":   {p.apiKey},
	}
	if err := p.getJSON(ctx, "/query", params, nil, &body); err != nil {
		return nil, err
	}
	gq := body.GlobalQuote
	if len(gq) == 0 {
		return nil, ErrNoData
	}

	n, err := parseNumbers(gq["05. price"], gq["09. change"], gq["10. change percent"], gq["03. high"], gq["04. low"], gq["02. open"], gq["06. volume"])
	if err != nil {
		return nil, err
	}
	return p.buildQuote(symbol, n[0], n[1], n[2], n[3], n[4], n[5], int64(n[6])), nil
}
