package market

import "github.com/richgang/indice-killer/internal/models"

// Per-provider ticker vocabularies for the canonical symbols. Symbols missing
// from a table are sent to the provider unchanged.
var (
	alphaVantageTickers = map[string]string{
		models.SymbolUS30:  "DJI",
		models.SymbolUS100: "NDX",
		models.SymbolGER30: "DAX",
	}
	twelveDataTickers = map[string]string{
		models.SymbolUS30:  "DJI",
		models.SymbolUS100: "NDX",
		models.SymbolGER30: "GDAXI",
	}
	finnhubTickers = map[string]string{
		models.SymbolUS30:  "^DJI",
		models.SymbolUS100: "^NDX",
		models.SymbolGER30: "^GDAXI",
	}
	yahooTickers = map[string]string{
		models.SymbolUS30:  "^DJI",
		models.SymbolUS100: "^NDX",
		models.SymbolGER30: "^GDAXI",
	}
	polygonTickers = map[string]string{
		models.SymbolUS30:  "I:DJI",
		models.SymbolUS100: "I:NDX",
		models.SymbolGER30: "I:DAX",
	}
	marketstackTickers = map[string]string{
		models.SymbolUS30:  "DJI.INDX",
		models.SymbolUS100: "NDX.INDX",
		models.SymbolGER30: "GDAXI.INDX",
	}
	fcsTickers = map[string]string{
		models.SymbolUS30:  "DJI",
		models.SymbolUS100: "NDX",
		models.SymbolGER30: "GDAXI",
	}
)
