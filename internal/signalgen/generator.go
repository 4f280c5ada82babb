package signalgen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
	"cascadeBot/internal/volatility"
)

// DefaultExpiry is how long a generated signal stays valid.
const DefaultExpiry = 30 * time.Minute

// Generator evaluates kline history against an active preset and produces
// validated entry signals. It deduplicates by (symbol, interval): a second
// breakout is suppressed while an unexpired signal for the same key exists.
type Generator struct {
	logger  ports.Logger
	filters FilterConfig
	expiry  time.Duration
	now     func() time.Time

	mu     sync.Mutex
	active map[string]*domain.Signal
}

// NewGenerator builds a Generator. A zero expiry falls back to DefaultExpiry.
func NewGenerator(logger ports.Logger, filters FilterConfig, expiry time.Duration) *Generator {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Generator{
		logger:  logger,
		filters: filters,
		expiry:  expiry,
		now:     time.Now,
		active:  make(map[string]*domain.Signal),
	}
}

// Check evaluates the latest bar of the series against the preset and returns
// a signal when a breakout passes validation, or nil when there is nothing to
// act on.
func (g *Generator) Check(ctx context.Context, klines []*domain.Kline, preset *domain.Preset) (*domain.Signal, error) {
	if preset == nil {
		return nil, fmt.Errorf("%w: nil preset", ports.ErrInvalidRequest)
	}
	if err := preset.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidRequest, err)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("%w: empty series", ports.ErrInsufficientHistory)
	}

	snap, err := ChannelAt(klines, preset.Params)
	if err != nil {
		return nil, err
	}
	bar := klines[len(klines)-1]
	side, ok := Breakout(bar, snap)
	if !ok {
		return nil, nil
	}

	if res := ApplyFilters(klines, side, g.filters); !res.Passed {
		g.logger.Debug(ctx, "signal rejected by filter", map[string]interface{}{
			"symbol": preset.Symbol,
			"side":   side,
			"filter": res.Rejected,
		})
		return nil, nil
	}

	key := preset.Symbol + "_" + preset.Interval
	now := g.now().UTC()

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.active[key]; ok && !existing.IsExpired(now) {
		return nil, nil
	}

	sig := BuildSignal(preset, side, bar.Close, now, g.expiry)
	g.active[key] = sig

	g.logger.Info(ctx, "new signal", map[string]interface{}{
		"symbol": sig.Symbol,
		"side":   sig.Side,
		"entry":  sig.EntryPrice,
		"sl":     sig.SLPrice,
		"regime": sig.Regime,
		"preset": sig.PresetID,
	})
	return sig, nil
}

// Active returns the unexpired signals, pruning expired ones as a side effect.
func (g *Generator) Active() []*domain.Signal {
	now := g.now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*domain.Signal, 0, len(g.active))
	for key, sig := range g.active {
		if sig.IsExpired(now) {
			sig.Status = domain.SignalExpired
			delete(g.active, key)
			continue
		}
		out = append(out, sig)
	}
	return out
}

// MarkFilled records that the signal was promoted to a position and removes
// it from the active set.
func (g *Generator) MarkFilled(sig *domain.Signal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sig.Status = domain.SignalFilled
	delete(g.active, sig.Symbol+"_"+sig.Interval)
}

// BuildSignal derives the full TP/SL ladder from the preset at the given
// entry price. LONG places targets above entry and the stop below; SHORT is
// the mirror image.
func BuildSignal(preset *domain.Preset, side domain.Side, entry float64, now time.Time, expiry time.Duration) *domain.Signal {
	sig := &domain.Signal{
		ID:         uuid.NewString(),
		Symbol:     preset.Symbol,
		Side:       side,
		Interval:   preset.Interval,
		EntryPrice: entry,
		PresetID:   preset.ID,
		Regime:     preset.Regime,
		CreatedAt:  now,
		ExpiresAt:  now.Add(expiry),
		Status:     domain.SignalPending,
	}
	if side == domain.Long {
		sig.SLPrice = entry * (1 - preset.SLPct/100)
		for i := 0; i < domain.NumTPLevels; i++ {
			sig.TPPrices[i] = entry * (1 + preset.TPPcts[i]/100)
		}
	} else {
		sig.SLPrice = entry * (1 + preset.SLPct/100)
		for i := 0; i < domain.NumTPLevels; i++ {
			sig.TPPrices[i] = entry * (1 - preset.TPPcts[i]/100)
		}
	}
	return sig
}

// ScaleLadder derives a regime-adjusted copy of a preset's ladder. Used when
// no preset exists for the observed regime and the normal-regime preset has
// to be rescaled on the fly.
func ScaleLadder(preset *domain.Preset, regime domain.Regime) *domain.Preset {
	if preset.Regime == regime {
		return preset
	}
	m := volatility.MultipliersFor(regime)
	scaled := *preset
	scaled.Regime = regime
	scaled.SLPct = preset.SLPct * m.SL
	for i := range scaled.TPPcts {
		scaled.TPPcts[i] = preset.TPPcts[i] * m.TP
	}
	return &scaled
}
