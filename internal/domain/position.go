package domain

import "time"

// TPLevel is one rung of a position's take-profit ladder.
type TPLevel struct {
	Price   float64 // level price
	SizePct float64 // share of the original position closed at this level
	Hit     bool    // whether the level has been consumed
}

// Position represents a trading position created from a filled signal.
//
// Invariants maintained by the lifecycle engine:
//   - sum of closed size fractions plus RemainingPct is always 100
//   - CurrentSL only moves in the favorable direction once ratcheted by a TP
type Position struct {
	ID         string // uuid, shared with the originating signal
	PresetID   string
	Symbol     string
	Side       Side
	EntryPrice float64
	Quantity   float64 // size in base units
	RiskPct    float64 // percent of equity at risk at entry (heat contribution basis)

	SLPrice   float64 // original stop
	CurrentSL float64 // active stop, ratcheted by TP hits
	TPLadder  [NumTPLevels]TPLevel

	Status        PositionStatus
	RemainingPct  float64 // 0-100, share of the position still open
	RealizedPnL   float64 // weighted percent PnL already booked by partial closes
	UnrealizedPnL float64 // percent PnL of the remaining share at the last price

	OpenedAt    time.Time
	ClosedAt    time.Time
	CloseReason CloseReason

	// Per-position extremes, tracked bar by bar.
	BarCount     int
	MaxPrice     float64
	MinPrice     float64
	MaxProfitPct float64
	MaxLossPct   float64
}

// IsOpen reports whether the position still has size on.
func (p *Position) IsOpen() bool {
	return p.Status != StatusClosed
}

// IsLong reports the position direction.
func (p *Position) IsLong() bool {
	return p.Side == Long
}

// HitCount returns the number of consumed TP levels.
func (p *Position) HitCount() int {
	n := 0
	for _, tp := range p.TPLadder {
		if tp.Hit {
			n++
		}
	}
	return n
}

// NewPositionFromSignal builds an OPEN position from a filled signal and a
// sized quantity. The TP size distribution comes from the originating preset.
func NewPositionFromSignal(sig *Signal, quantity, riskPct float64, sizePcts [NumTPLevels]float64, openedAt time.Time) *Position {
	pos := &Position{
		ID:           sig.ID,
		PresetID:     sig.PresetID,
		Symbol:       sig.Symbol,
		Side:         sig.Side,
		EntryPrice:   sig.EntryPrice,
		Quantity:     quantity,
		RiskPct:      riskPct,
		SLPrice:      sig.SLPrice,
		CurrentSL:    sig.SLPrice,
		Status:       StatusOpen,
		RemainingPct: 100,
		OpenedAt:     openedAt,
		MaxPrice:     sig.EntryPrice,
		MinPrice:     sig.EntryPrice,
	}
	for i := 0; i < NumTPLevels; i++ {
		pos.TPLadder[i] = TPLevel{Price: sig.TPPrices[i], SizePct: sizePcts[i]}
	}
	return pos
}
