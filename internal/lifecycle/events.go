// Package lifecycle implements the position state machine: TP ladder
// consumption, cascading stop ratchets, and close-out. Advance is a pure
// function of (position, bar) so the backtester and the live tracker share
// the exact same transition logic.
package lifecycle

import (
	"time"

	"cascadeBot/internal/domain"
)

// EventType labels a state transition emitted by Advance.
type EventType string

const (
	// EventTPHit is a take-profit level consumed at its ladder price.
	EventTPHit EventType = "tp_hit"
	// EventGapFill is a lower level retro-marked hit because the bar
	// jumped past it together with a higher level.
	EventGapFill EventType = "gap_fill"
	// EventSLMoved is a stop ratchet following a TP hit.
	EventSLMoved EventType = "sl_moved"
	// EventClosed is a terminal transition; Reason carries the cause.
	EventClosed EventType = "closed"
)

// Event describes one state transition. Level is 1-based for TP events and
// zero otherwise.
type Event struct {
	Type    EventType
	Level   int
	Price   float64
	SizePct float64
	Reason  domain.CloseReason
	At      time.Time
}
