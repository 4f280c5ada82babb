package backtest

import (
	"cascadeBot/internal/domain"
	"cascadeBot/internal/signalgen"
)

// PresetProvider resolves the preset to trade under at a given volatility
// regime. The simulator consults it once per bar.
type PresetProvider interface {
	ActiveFor(symbol, interval string, regime domain.Regime) (*domain.Preset, error)
}

// FixedPreset serves a single candidate for every regime, rescaling its
// ladder with the regime multipliers. This is the provider grid search and
// robustness sweeps use: one parameter set, regime-adjusted exits.
type FixedPreset struct {
	Preset *domain.Preset
}

// ActiveFor implements PresetProvider.
func (f FixedPreset) ActiveFor(_, _ string, regime domain.Regime) (*domain.Preset, error) {
	return signalgen.ScaleLadder(f.Preset, regime), nil
}
