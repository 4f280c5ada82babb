package domain

// TradingPairs is the default trading universe.
var TradingPairs = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
	"ADAUSDT", "AVAXUSDT", "DOGEUSDT", "DOTUSDT", "MATICUSDT",
	"LINKUSDT", "UNIUSDT", "ATOMUSDT", "LTCUSDT", "ETCUSDT",
	"NEARUSDT", "APTUSDT", "ARBUSDT", "OPUSDT", "INJUSDT",
}

// Timeframes is the set of supported chart intervals.
var Timeframes = []string{"30m", "1h", "2h"}

// Sectors groups trading pairs for diversification checks.
var Sectors = map[string][]string{
	"BTC":  {"BTCUSDT"},
	"ETH":  {"ETHUSDT"},
	"L1":   {"SOLUSDT", "AVAXUSDT", "ATOMUSDT", "NEARUSDT", "APTUSDT"},
	"L2":   {"MATICUSDT", "ARBUSDT", "OPUSDT"},
	"DEFI": {"LINKUSDT", "UNIUSDT", "INJUSDT"},
	"OLD":  {"XRPUSDT", "ADAUSDT", "DOTUSDT", "LTCUSDT", "ETCUSDT"},
	"MEME": {"DOGEUSDT"},
	"CEX":  {"BNBUSDT"},
}

var sectorBySymbol = func() map[string]string {
	m := make(map[string]string)
	for sector, symbols := range Sectors {
		for _, s := range symbols {
			m[s] = sector
		}
	}
	return m
}()

// SectorOf returns the sector of a symbol, or "OTHER" for unknown symbols.
func SectorOf(symbol string) string {
	if s, ok := sectorBySymbol[symbol]; ok {
		return s
	}
	return "OTHER"
}
