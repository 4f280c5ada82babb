package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascadeBot/internal/adapters/logger"
	"cascadeBot/internal/domain"
)

func openPos(symbol string, riskPct, remainingPct float64) *domain.Position {
	return &domain.Position{
		ID:           "pos-" + symbol,
		Symbol:       symbol,
		Side:         domain.Long,
		RiskPct:      riskPct,
		RemainingPct: remainingPct,
		Status:       domain.StatusOpen,
	}
}

func newTestManager(t *testing.T, limits Limits, corr *CorrelationTracker) *Manager {
	t.Helper()
	m, err := NewManager(limits, corr, NewSizer(SizerConfig{}), logger.NewStdLogger(logger.LevelError))
	require.NoError(t, err)
	return m
}

func TestNewManagerRequiresLogger(t *testing.T) {
	_, err := NewManager(Limits{}, nil, nil, nil)
	require.Error(t, err)
}

func TestSnapshotHeat(t *testing.T) {
	closed := openPos("LTCUSDT", 2, 0)
	closed.Status = domain.StatusClosed

	s := Snapshot{
		Positions: []*domain.Position{
			openPos("BTCUSDT", 2, 100),
			openPos("ETHUSDT", 2, 50), // half the position already took profit
			closed,
			nil,
		},
	}
	assert.InDelta(t, 3, s.Heat(), 1e-9)
}

func TestCanOpenEmptyPortfolio(t *testing.T) {
	m := newTestManager(t, DefaultLimits(), nil)
	d := m.CanOpen(context.Background(), Candidate{Symbol: "BTCUSDT", Side: domain.Long, RiskPct: 2}, Snapshot{})
	assert.True(t, d.Admitted)
	assert.Empty(t, d.Reason)
}

func TestCanOpenMaxPositions(t *testing.T) {
	m := newTestManager(t, Limits{MaxPositions: 2, MaxPerSector: 2, CorrelationThreshold: 0.7, MaxHeatPct: 50}, nil)
	snap := Snapshot{Positions: []*domain.Position{
		openPos("BTCUSDT", 1, 100),
		openPos("ETHUSDT", 1, 100),
	}}

	d := m.CanOpen(context.Background(), Candidate{Symbol: "SOLUSDT", RiskPct: 1}, snap)
	assert.False(t, d.Admitted)
	assert.Equal(t, RejectMaxPositions, d.Reason)
}

func TestCanOpenIgnoresClosedPositions(t *testing.T) {
	m := newTestManager(t, Limits{MaxPositions: 2, MaxPerSector: 2, CorrelationThreshold: 0.7, MaxHeatPct: 50}, nil)
	closed := openPos("BTCUSDT", 1, 0)
	closed.Status = domain.StatusClosed
	snap := Snapshot{Positions: []*domain.Position{closed, openPos("ETHUSDT", 1, 100)}}

	d := m.CanOpen(context.Background(), Candidate{Symbol: "SOLUSDT", RiskPct: 1}, snap)
	assert.True(t, d.Admitted)
}

func TestCanOpenSectorCap(t *testing.T) {
	m := newTestManager(t, DefaultLimits(), nil)
	snap := Snapshot{Positions: []*domain.Position{
		openPos("SOLUSDT", 1, 100),
		openPos("AVAXUSDT", 1, 100),
	}}

	// ATOMUSDT shares the L1 sector with both open positions.
	d := m.CanOpen(context.Background(), Candidate{Symbol: "ATOMUSDT", RiskPct: 1}, snap)
	assert.False(t, d.Admitted)
	assert.Equal(t, RejectMaxPerSector, d.Reason)

	// A different sector is still admissible.
	d = m.CanOpen(context.Background(), Candidate{Symbol: "BTCUSDT", RiskPct: 1}, snap)
	assert.True(t, d.Admitted)
}

// correlatedTracker seeds two perfectly correlated and one anti-correlated
// return series.
func correlatedTracker() *CorrelationTracker {
	tr := NewCorrelationTracker(0)
	rets := []float64{0.01, -0.02, 0.015, 0.005, -0.01, 0.02, -0.005, 0.01, -0.015, 0.025,
		0.01, -0.02, 0.015, 0.005, -0.01, 0.02, -0.005, 0.01, -0.015, 0.025,
		0.01, -0.02, 0.015, 0.005, -0.01}

	a, b, c := 100.0, 2000.0, 50.0
	tr.Observe("BTCUSDT", a)
	tr.Observe("ETHUSDT", b)
	tr.Observe("LTCUSDT", c)
	for _, r := range rets {
		a *= 1 + r
		b *= 1 + r
		c *= 1 - r
		tr.Observe("BTCUSDT", a)
		tr.Observe("ETHUSDT", b)
		tr.Observe("LTCUSDT", c)
	}
	return tr
}

func TestCanOpenCorrelation(t *testing.T) {
	m := newTestManager(t, DefaultLimits(), correlatedTracker())
	snap := Snapshot{Positions: []*domain.Position{openPos("BTCUSDT", 1, 100)}}

	d := m.CanOpen(context.Background(), Candidate{Symbol: "ETHUSDT", RiskPct: 1}, snap)
	assert.False(t, d.Admitted)
	assert.Equal(t, RejectCorrelation, d.Reason)

	// Negative correlation is rejected on magnitude.
	d = m.CanOpen(context.Background(), Candidate{Symbol: "LTCUSDT", RiskPct: 1}, snap)
	assert.False(t, d.Admitted)
	assert.Equal(t, RejectCorrelation, d.Reason)

	// A symbol with no observed history passes the correlation check.
	d = m.CanOpen(context.Background(), Candidate{Symbol: "SOLUSDT", RiskPct: 1}, snap)
	assert.True(t, d.Admitted)
}

func TestCanOpenHeat(t *testing.T) {
	m := newTestManager(t, DefaultLimits(), nil)
	snap := Snapshot{Positions: []*domain.Position{
		openPos("BTCUSDT", 2, 100),
		openPos("ETHUSDT", 2, 100),
		openPos("BNBUSDT", 2, 100),
	}}

	// Projected heat 8% hits the cap exactly and is refused.
	d := m.CanOpen(context.Background(), Candidate{Symbol: "SOLUSDT", RiskPct: 2}, snap)
	assert.False(t, d.Admitted)
	assert.Equal(t, RejectPortfolioHeat, d.Reason)

	d = m.CanOpen(context.Background(), Candidate{Symbol: "SOLUSDT", RiskPct: 1.5}, snap)
	assert.True(t, d.Admitted)
}

func TestCanOpenChecksRunInOrder(t *testing.T) {
	// A full portfolio that also violates heat reports the position limit,
	// the first check in the chain.
	m := newTestManager(t, Limits{MaxPositions: 1, MaxPerSector: 1, CorrelationThreshold: 0.7, MaxHeatPct: 2}, nil)
	snap := Snapshot{Positions: []*domain.Position{openPos("BTCUSDT", 5, 100)}}

	d := m.CanOpen(context.Background(), Candidate{Symbol: "ETHUSDT", RiskPct: 5}, snap)
	assert.Equal(t, RejectMaxPositions, d.Reason)
}
