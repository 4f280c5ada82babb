package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPreset() *Preset {
	return &Preset{
		ID:         "p1",
		Symbol:     "BTCUSDT",
		Interval:   "1h",
		Regime:     RegimeNormal,
		Params:     IndicatorParams{I1: 60, I2: 14, I3: 0.8, I4: 1.4, I5: 1.4},
		SLPct:      8.5,
		TPPcts:     [NumTPLevels]float64{1, 2, 3, 4, 7.5, 14},
		TPSizePcts: [NumTPLevels]float64{17, 17, 17, 17, 16, 16},
	}
}

func TestPresetValidate(t *testing.T) {
	require.NoError(t, validPreset().Validate())

	tests := []struct {
		name   string
		mutate func(*Preset)
	}{
		{"missing symbol", func(p *Preset) { p.Symbol = "" }},
		{"missing interval", func(p *Preset) { p.Interval = "" }},
		{"zero stop", func(p *Preset) { p.SLPct = 0 }},
		{"stop beyond entry", func(p *Preset) { p.SLPct = 100 }},
		{"zero tp distance", func(p *Preset) { p.TPPcts[0] = 0 }},
		{"ladder not ascending", func(p *Preset) { p.TPPcts[3] = p.TPPcts[2] }},
		{"negative size", func(p *Preset) { p.TPSizePcts[0] = -1 }},
		{"sizes do not sum to 100", func(p *Preset) { p.TPSizePcts[5] = 30 }},
		{"zero channel period", func(p *Preset) { p.Params.I1 = 0 }},
		{"zero stdev period", func(p *Preset) { p.Params.I2 = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPreset()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestPresetValidateTolerance(t *testing.T) {
	p := validPreset()
	p.TPSizePcts = [NumTPLevels]float64{17.004, 17, 17, 17, 16, 16}
	assert.NoError(t, p.Validate())
}

func TestNormalizeSizes(t *testing.T) {
	p := validPreset()
	p.TPSizePcts = [NumTPLevels]float64{34, 34, 34, 34, 32, 32} // doubled
	p.NormalizeSizes()

	var sum float64
	for _, s := range p.TPSizePcts {
		sum += s
	}
	assert.InDelta(t, 100, sum, 1e-9)
	assert.InDelta(t, 17, p.TPSizePcts[0], 1e-9)
	require.NoError(t, p.Validate())

	// Already-normalized distributions are untouched.
	before := p.TPSizePcts
	p.NormalizeSizes()
	assert.Equal(t, before, p.TPSizePcts)

	// An all-zero distribution cannot be rescaled.
	p.TPSizePcts = [NumTPLevels]float64{}
	p.NormalizeSizes()
	assert.Equal(t, [NumTPLevels]float64{}, p.TPSizePcts)
}

func TestPresetKey(t *testing.T) {
	p := validPreset()
	assert.Equal(t, "BTCUSDT_1h_normal", p.Key())
	assert.Equal(t, p.Key(), PresetKey("BTCUSDT", "1h", RegimeNormal))
}

func TestSectorOf(t *testing.T) {
	assert.Equal(t, "BTC", SectorOf("BTCUSDT"))
	assert.Equal(t, "L1", SectorOf("SOLUSDT"))
	assert.Equal(t, "MEME", SectorOf("DOGEUSDT"))
	assert.Equal(t, "OTHER", SectorOf("PEPEUSDT"))
}

func TestTradeReachedTP1(t *testing.T) {
	trade := &Trade{TPHits: []TPHit{{Index: 2}}}
	assert.False(t, trade.ReachedTP1())

	trade.TPHits = append(trade.TPHits, TPHit{Index: 1})
	assert.True(t, trade.ReachedTP1())

	assert.False(t, (&Trade{}).ReachedTP1())
}
