package portfolio

import (
	"context"
	"fmt"
	"sync"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
)

// RejectReason is the structured code attached to a refused admission.
type RejectReason string

const (
	RejectMaxPositions  RejectReason = "max_positions"
	RejectMaxPerSector  RejectReason = "max_per_sector"
	RejectCorrelation   RejectReason = "correlation"
	RejectPortfolioHeat RejectReason = "portfolio_heat"
)

// Limits are the portfolio admission thresholds.
type Limits struct {
	MaxPositions         int
	MaxPerSector         int
	CorrelationThreshold float64
	MaxHeatPct           float64
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		MaxPositions:         5,
		MaxPerSector:         2,
		CorrelationThreshold: 0.7,
		MaxHeatPct:           8,
	}
}

// Snapshot is the open-position view an admission decision is made against.
// Heat is always derived from it, never stored.
type Snapshot struct {
	Positions []*domain.Position
	Balance   float64
}

// Heat sums each open position's risk share weighted by what is still open.
func (s Snapshot) Heat() float64 {
	var heat float64
	for _, p := range s.Positions {
		if p == nil || !p.IsOpen() {
			continue
		}
		heat += p.RiskPct * p.RemainingPct / 100
	}
	return heat
}

// Candidate is a signal asking to become a position.
type Candidate struct {
	Symbol  string
	Side    domain.Side
	RiskPct float64
}

// Decision is the admission outcome. Rejections are expected business
// results, not errors.
type Decision struct {
	Admitted bool
	Reason   RejectReason
	Detail   string
}

func admit() Decision { return Decision{Admitted: true} }

func reject(reason RejectReason, format string, args ...interface{}) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Manager evaluates admissions and sizes positions. All admission checks run
// under one mutex so concurrent signals cannot oversell the heat budget.
type Manager struct {
	mu     sync.Mutex
	limits Limits
	corr   *CorrelationTracker
	sizer  *Sizer
	logger ports.Logger
}

// NewManager builds a Manager. Zero-valued limits fall back to defaults.
func NewManager(limits Limits, corr *CorrelationTracker, sizer *Sizer, logger ports.Logger) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrInvalidRequest)
	}
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	if corr == nil {
		corr = NewCorrelationTracker(0)
	}
	if sizer == nil {
		sizer = NewSizer(SizerConfig{})
	}
	return &Manager{limits: limits, corr: corr, sizer: sizer, logger: logger}, nil
}

// Tracker exposes the correlation tracker so price feeds can populate it.
func (m *Manager) Tracker() *CorrelationTracker {
	return m.corr
}

// Sizer exposes the sizing strategy.
func (m *Manager) Sizer() *Sizer {
	return m.sizer
}

// CanOpen runs the admission checks in order and returns the first failing
// reason. It is a pure function of (candidate, snapshot, correlation data):
// calling it twice without state change yields the same decision.
func (m *Manager) CanOpen(ctx context.Context, candidate Candidate, snapshot Snapshot) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	decision := m.decide(candidate, snapshot)
	if !decision.Admitted {
		m.logger.Info(ctx, "admission rejected", map[string]interface{}{
			"symbol": candidate.Symbol,
			"reason": string(decision.Reason),
			"detail": decision.Detail,
		})
	}
	return decision
}

func (m *Manager) decide(candidate Candidate, snapshot Snapshot) Decision {
	open := openPositions(snapshot)

	if len(open) >= m.limits.MaxPositions {
		return reject(RejectMaxPositions, "%d positions open, limit %d", len(open), m.limits.MaxPositions)
	}

	sector := domain.SectorOf(candidate.Symbol)
	inSector := 0
	for _, p := range open {
		if domain.SectorOf(p.Symbol) == sector {
			inSector++
		}
	}
	if inSector >= m.limits.MaxPerSector {
		return reject(RejectMaxPerSector, "%d open in sector %s, limit %d", inSector, sector, m.limits.MaxPerSector)
	}

	for _, p := range open {
		if p.Symbol == candidate.Symbol {
			continue
		}
		corr, ok := m.corr.Correlation(candidate.Symbol, p.Symbol)
		if !ok {
			continue
		}
		if corr < 0 {
			corr = -corr
		}
		if corr >= m.limits.CorrelationThreshold {
			return reject(RejectCorrelation, "%s vs %s correlation %.2f >= %.2f",
				candidate.Symbol, p.Symbol, corr, m.limits.CorrelationThreshold)
		}
	}

	projected := snapshot.Heat() + candidate.RiskPct
	if projected >= m.limits.MaxHeatPct {
		return reject(RejectPortfolioHeat, "projected heat %.2f%% >= %.2f%%", projected, m.limits.MaxHeatPct)
	}
	return admit()
}

// SizePosition sizes an admitted candidate against current equity.
func (m *Manager) SizePosition(in SizeInput) (SizeResult, error) {
	return m.sizer.Size(in)
}

func openPositions(snapshot Snapshot) []*domain.Position {
	out := make([]*domain.Position, 0, len(snapshot.Positions))
	for _, p := range snapshot.Positions {
		if p != nil && p.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}
