package market

import (
	"context"
	"net/url"

	"github.com/richgang/indice-killer/internal/models"
)

// TwelveData fetches /quote from Twelve Data
type TwelveData struct {
	httpSource
}

// NewTwelveData creates a Twelve Data provider
func NewTwelveData(opts Options) *TwelveData {
	return &TwelveData{newHTTPSource("twelve_data", "https://api.twelvedata.com", true, twelveDataTickers, opts)}
}

type twelveDataQuote struct {
	Close         string `json:"close"`
	Change        string `json:"change"`
	PercentChange string `json:"percent_change"`
	High          string `json:"high"`
	Low           string `json:"low"`
	Open          string `json:"open"`
	Volume        string `json:"volume"`
}

// Fetch implements Provider
func (p *TwelveData) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := p.admit(ctx); err != nil {
		return nil, err
	}

	var body twelveDataQuote
	params := url.Values{
		"symbol": {p.ticker(symbol)},
		"apikey": {p.apiKey},
	}
	if err := p.getJSON(ctx, "/quote", params, nil, &body); err != nil {
		return nil, err
	}
	// error payloads carry {"code":..,"status":"error"} and no close
	if body.Close == "" {
		return nil, ErrNoData
	}

	n, err := parseNumbers(body.Close, body.Change, body.PercentChange, body.High, body.Low, body.Open, body.Volume)
	if err != nil {
		return nil, err
	}
	return p.buildQuote(symbol, n[0], n[1], n[2], n[3], n[4], n[5], int64(n[6])), nil
}
