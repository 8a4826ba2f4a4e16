package market

import (
	"context"
	"net/url"

	"github.com/richgang/indice-killer/internal/models"
)

// Polygon reads the previous-day aggregate bar
type Polygon struct {
	httpSource
}

// NewPolygon creates a Polygon.io provider
func NewPolygon(opts Options) *Polygon {
	return &Polygon{newHTTPSource("polygon", "https://api.polygon.io", true, polygonTickers, opts)}
}

type polygonPrev struct {
	ResultsCount int `json:"resultsCount"`
	Results      []struct {
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
	} `json:"results"`
}

// Fetch implements Provider. Change is measured against the bar's open.
func (p *Polygon) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := p.admit(ctx); err != nil {
		return nil, err
	}

	var body polygonPrev
	params := url.Values{"apiKey": {p.apiKey}}
	path := "/v2/aggs/ticker/" + url.PathEscape(p.ticker(symbol)) + "/prev"
	if err := p.getJSON(ctx, path, params, nil, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 || body.Results[0].Close == 0 {
		return nil, ErrNoData
	}

	bar := body.Results[0]
	return p.buildQuote(symbol, bar.Close, bar.Close-bar.Open, percentChange(bar.Open, bar.Close), bar.High, bar.Low, bar.Open, int64(bar.Volume)), nil
}

func percentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to/from - 1) * 100
}
