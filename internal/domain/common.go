package domain

// Side represents the direction of a signal or position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen            PositionStatus = "open"
	StatusPartiallyClosed PositionStatus = "partially_closed"
	StatusClosed          PositionStatus = "closed"
)

// SignalStatus represents the lifecycle state of a signal.
type SignalStatus string

const (
	SignalPending   SignalStatus = "pending"
	SignalActive    SignalStatus = "active"
	SignalFilled    SignalStatus = "filled"
	SignalCancelled SignalStatus = "cancelled"
	SignalExpired   SignalStatus = "expired"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "SL"         // original stop, never ratcheted
	CloseReasonBreakeven  CloseReason = "BREAKEVEN"  // stop at entry after TP1
	CloseReasonCascade    CloseReason = "CASCADE_SL" // stop ratcheted to a prior TP
	CloseReasonTakeProfit CloseReason = "TP"         // final TP level consumed
	CloseReasonSignal     CloseReason = "SIGNAL"     // opposite entry signal
	CloseReasonManual     CloseReason = "MANUAL"
	CloseReasonUnknown    CloseReason = "UNKNOWN"
)

// Regime classifies market volatility from the ATR ratio.
type Regime string

const (
	RegimeLow    Regime = "low"
	RegimeNormal Regime = "normal"
	RegimeHigh   Regime = "high"
)

// RegimeFromRatio maps an ATR ratio (current ATR / baseline ATR) to a regime.
func RegimeFromRatio(ratio float64) Regime {
	switch {
	case ratio < 0.7:
		return RegimeLow
	case ratio > 1.3:
		return RegimeHigh
	default:
		return RegimeNormal
	}
}
