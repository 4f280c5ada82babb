package domain

import "time"

// TPHit records one consumed take-profit level on a closed trade.
type TPHit struct {
	Index   int     // 1-6
	Price   float64 // nominal level price (fills are assumed at the level)
	SizePct float64 // share of the original position closed here
	PnLPct  float64 // percent move from entry for this slice
}

// Trade is the terminal, immutable projection of a closed position.
// It is the unit the metrics calculator works on.
type Trade struct {
	PositionID string
	Symbol     string
	Side       Side
	Interval   string
	PresetID   string

	EntryPrice float64
	ExitPrice  float64 // price of the final close (stop or last TP)
	Quantity   float64

	PnLPct float64 // weighted percent PnL across partial closes and final exit
	PnL    float64 // PnL in quote units

	EntryTime    time.Time
	ExitTime     time.Time
	DurationBars int

	CloseReason CloseReason
	TPHits      []TPHit

	MaxProfitPct float64 // best unrealized PnL seen while open
	MaxLossPct   float64 // worst unrealized PnL seen while open
}

// ReachedTP1 reports whether the first ladder level was consumed. The
// optimizer's TP1 win-rate gate is built on this.
func (t *Trade) ReachedTP1() bool {
	for _, h := range t.TPHits {
		if h.Index == 1 {
			return true
		}
	}
	return false
}

// IsWin reports whether the trade closed with positive PnL.
func (t *Trade) IsWin() bool {
	return t.PnLPct > 0
}
