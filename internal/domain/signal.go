package domain

import "time"

// Signal is a candidate entry produced by the signal generator. It carries the
// full TP/SL ladder computed from the active preset so the promotion workflow
// never needs to re-derive prices.
type Signal struct {
	ID         string
	Symbol     string
	Side       Side
	Interval   string
	EntryPrice float64
	SLPrice    float64
	TPPrices   [NumTPLevels]float64
	PresetID   string
	Regime     Regime
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Status     SignalStatus
}

// IsExpired reports whether the signal has passed its expiry at the given time.
func (s *Signal) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
