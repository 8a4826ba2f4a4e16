package market

import (
	"context"
	"net/url"

	"github.com/richgang/indice-killer/internal/models"
)

// FCSAPI reads the latest stock/index price from FCS API
type FCSAPI struct {
	httpSource
}

// NewFCSAPI creates an FCS API provider
func NewFCSAPI(opts Options) *FCSAPI {
	return &FCSAPI{newHTTPSource("fcsapi", "https://fcsapi.com", true, fcsTickers, opts)}
}

type fcsLatest struct {
	Status   bool `json:"status"`
	Response []struct {
		Close         string `json:"c"`
		High          string `json:"h"`
		Low           string `json:"l"`
		Open          string `json:"o"`
		Change        string `json:"ch"`
		ChangePercent string `json:"cp"`
		Volume        string `json:"v"`
	} `json:"response"`
}

// Fetch implements Provider
func (p *FCSAPI) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := p.admit(ctx); err != nil {
		return nil, err
	}

	var body fcsLatest
	params := url.Values{
		"symbol":     {p.ticker(symbol)},
		"access_key": {p.apiKey},
	}
	if err := p.getJSON(ctx, "/api-v3/stock/latest", params, nil, &body); err != nil {
		return nil, err
	}
	if !body.Status || len(body.Response) == 0 || body.Response[0].Close == "" {
		return nil, ErrNoData
	}

	r := body.Response[0]
	n, err := parseNumbers(r.Close, r.Change, r.ChangePercent, r.High, r.Low, r.Open, r.Volume)
	if err != nil {
		return nil, err
	}
	return p.buildQuote(symbol, n[0], n[1], n[2], n[3], n[4], n[5], int64(n[6])), nil
}
