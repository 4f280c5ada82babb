package presets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascadeBot/internal/domain"
)

func TestVariantBounds(t *testing.T) {
	_, err := Variant(-1)
	require.Error(t, err)
	_, err = Variant(VariantCount)
	require.Error(t, err)

	first, err := Variant(0)
	require.NoError(t, err)
	assert.Equal(t, domain.IndicatorParams{I1: 40, I2: 10, I3: 0.3, I4: 1.0, I5: 1.0}, first)
}

func TestAllVariants(t *testing.T) {
	variants := AllVariants()
	require.Len(t, variants, VariantCount)

	seen := make(map[domain.IndicatorParams]bool, len(variants))
	for i, v := range variants {
		assert.Positive(t, v.I1, "variant %d", i)
		assert.Positive(t, v.I2, "variant %d", i)
		assert.Positive(t, v.I3, "variant %d", i)
		assert.Positive(t, v.I4, "variant %d", i)
		assert.Positive(t, v.I5, "variant %d", i)
		assert.False(t, seen[v], "variant %d duplicates an earlier entry", i)
		seen[v] = true
	}
}

func TestBaseLadder(t *testing.T) {
	normalTPs, normalSL := BaseLadder(domain.RegimeNormal)
	assert.InDelta(t, 8.5, normalSL, 1e-9)
	assert.Equal(t, [domain.NumTPLevels]float64{1.0, 2.0, 3.0, 4.0, 7.5, 14.0}, normalTPs)

	lowTPs, lowSL := BaseLadder(domain.RegimeLow)
	highTPs, highSL := BaseLadder(domain.RegimeHigh)
	for i := 0; i < domain.NumTPLevels; i++ {
		assert.InDelta(t, normalTPs[i]*0.8, lowTPs[i], 1e-9)
		assert.InDelta(t, normalTPs[i]*1.3, highTPs[i], 1e-9)
	}
	assert.InDelta(t, normalSL*0.8, lowSL, 1e-9)
	assert.InDelta(t, normalSL*1.2, highSL, 1e-9)

	// Unknown regime falls back to the normal ladder.
	tps, sl := BaseLadder(domain.Regime("bogus"))
	assert.Equal(t, normalTPs, tps)
	assert.InDelta(t, normalSL, sl, 1e-9)
}

func TestDefaultParamsBySector(t *testing.T) {
	btc := DefaultParams("BTCUSDT")
	assert.Equal(t, 60, btc.I1)

	meme := DefaultParams("DOGEUSDT")
	assert.Equal(t, 35, meme.I1)
	assert.Greater(t, meme.I3, btc.I3, "faster sectors use wider stdev bands")

	// Unknown symbols get the L1 defaults.
	assert.Equal(t, DefaultParams("SOLUSDT"), DefaultParams("UNKNOWNUSDT"))
}

func TestDefaultDistributionSumsTo100(t *testing.T) {
	var sum float64
	for _, s := range DefaultDistribution {
		sum += s
	}
	assert.InDelta(t, 100, sum, 1e-9)
}

func TestNewDefault(t *testing.T) {
	p := NewDefault("ETHUSDT", "1h", domain.RegimeHigh)
	require.NoError(t, p.Validate())
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "ETHUSDT", p.Symbol)
	assert.Equal(t, "1h", p.Interval)
	assert.Equal(t, domain.RegimeHigh, p.Regime)
	assert.True(t, p.Active)
	assert.False(t, p.GeneratedAt.IsZero())
}

func TestGenerateAll(t *testing.T) {
	all := GenerateAll()
	want := len(domain.TradingPairs) * len(domain.Timeframes) * 3
	require.Len(t, all, want)

	seen := make(map[string]bool, len(all))
	for _, p := range all {
		require.NoError(t, p.Validate(), "preset %s/%s/%s", p.Symbol, p.Interval, p.Regime)
		key := p.Symbol + "_" + p.Interval + "_" + string(p.Regime)
		assert.False(t, seen[key], "duplicate slot %s", key)
		seen[key] = true
	}
}
