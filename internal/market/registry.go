package market

import "github.com/richgang/indice-killer/internal/config"

// ProvidersFromConfig returns the upstream providers in priority order.
// Providers without a credential stay in the list and short-circuit.
func ProvidersFromConfig(cfg config.MarketDataConfig) []Provider {
	opts := func(key string) Options {
		return Options{
			APIKey:  key,
			Timeout: cfg.RequestTimeout,
			MinGap:  cfg.ProviderMinGap,
		}
	}
	return []Provider{
		NewAlphaVantage(opts(cfg.AlphaVantageKey)),
		NewTwelveData(opts(cfg.TwelveDataKey)),
		NewFinnhub(opts(cfg.FinnhubKey)),
		NewYahoo(cfg.YahooEnabled, opts("")),
		NewPolygon(opts(cfg.PolygonKey)),
		NewMarketstack(opts(cfg.MarketstackKey)),
		NewFCSAPI(opts(cfg.FCSAPIKey)),
	}
}
