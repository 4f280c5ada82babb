package presets

import (
	"time"

	"github.com/google/uuid"

	"cascadeBot/internal/domain"
)

// Base TP ladders per volatility regime, in percent from entry.
var baseTPLadders = map[domain.Regime][domain.NumTPLevels]float64{
	domain.RegimeLow:    {0.8, 1.6, 2.4, 3.2, 6.0, 11.2},
	domain.RegimeNormal: {1.0, 2.0, 3.0, 4.0, 7.5, 14.0},
	domain.RegimeHigh:   {1.3, 2.6, 3.9, 5.2, 9.75, 18.2},
}

// Base SL percent per regime (the normal regime SL scaled by 0.8 and 1.2).
var baseSLPercent = map[domain.Regime]float64{
	domain.RegimeLow:    6.8,
	domain.RegimeNormal: 8.5,
	domain.RegimeHigh:   10.2,
}

// DefaultDistribution splits the position across the six TP levels.
var DefaultDistribution = [domain.NumTPLevels]float64{17, 17, 17, 17, 16, 16}

// Starting indicator parameters per sector. The optimizer refines these.
var defaultParamsBySector = map[string]domain.IndicatorParams{
	"BTC":  {I1: 60, I2: 14, I3: 0.8, I4: 1.4, I5: 1.4},
	"ETH":  {I1: 55, I2: 14, I3: 0.9, I4: 1.5, I5: 1.5},
	"L1":   {I1: 50, I2: 12, I3: 1.1, I4: 1.6, I5: 1.6},
	"L2":   {I1: 45, I2: 11, I3: 1.3, I4: 1.7, I5: 1.7},
	"DEFI": {I1: 40, I2: 10, I3: 1.5, I4: 1.8, I5: 1.8},
	"OLD":  {I1: 65, I2: 14, I3: 0.7, I4: 1.3, I5: 1.3},
	"MEME": {I1: 35, I2: 10, I3: 1.8, I4: 2.0, I5: 2.0},
	"CEX":  {I1: 55, I2: 13, I3: 1.0, I4: 1.5, I5: 1.5},
}

// BaseLadder returns the TP percentages and SL percent for a regime.
func BaseLadder(r domain.Regime) ([domain.NumTPLevels]float64, float64) {
	tps, ok := baseTPLadders[r]
	if !ok {
		tps = baseTPLadders[domain.RegimeNormal]
	}
	sl, ok := baseSLPercent[r]
	if !ok {
		sl = baseSLPercent[domain.RegimeNormal]
	}
	return tps, sl
}

// DefaultParams returns the starting indicator parameters for a symbol based
// on its sector.
func DefaultParams(symbol string) domain.IndicatorParams {
	if p, ok := defaultParamsBySector[domain.SectorOf(symbol)]; ok {
		return p
	}
	return defaultParamsBySector["L1"]
}

// NewDefault builds a baseline preset for a symbol/interval/regime. The
// preset is active immediately but carries no metrics until optimized.
func NewDefault(symbol, interval string, regime domain.Regime) *domain.Preset {
	tps, sl := BaseLadder(regime)
	return &domain.Preset{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Interval:    interval,
		Regime:      regime,
		Params:      DefaultParams(symbol),
		SLPct:       sl,
		TPPcts:      tps,
		TPSizePcts:  DefaultDistribution,
		Active:      true,
		GeneratedAt: time.Now().UTC(),
	}
}

// GenerateAll builds the baseline catalogue: one preset for every
// pair/timeframe/regime combination of the default universe.
func GenerateAll() []*domain.Preset {
	regimes := []domain.Regime{domain.RegimeLow, domain.RegimeNormal, domain.RegimeHigh}
	out := make([]*domain.Preset, 0, len(domain.TradingPairs)*len(domain.Timeframes)*len(regimes))
	for _, symbol := range domain.TradingPairs {
		for _, tf := range domain.Timeframes {
			for _, regime := range regimes {
				out = append(out, NewDefault(symbol, tf, regime))
			}
		}
	}
	return out
}
