package lifecycle

import (
	"fmt"
	"math"
	"time"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
)

// sizeEpsilon is the tolerance for the size-conservation invariant, in
// percent of the original position.
const sizeEpsilon = 1e-4

// Resolution selects how a bar whose range covers both the stop and a TP
// level is settled. Backtest and live paths must use the same rule or their
// results diverge.
type Resolution int

const (
	// StopFirst settles the stop before any target. Worst-case and the
	// default.
	StopFirst Resolution = iota
	// TPFirst settles targets before the stop.
	TPFirst
)

// Advance applies one bar to an open position with worst-case (stop-first)
// intra-bar resolution. It mutates the position in place.
//
// At most one TP level is consumed per call; when a bar's range covers
// several unhit levels the intermediate ones are retro-marked hit at their
// nominal prices with gap events, keeping size accounting exact.
func Advance(pos *domain.Position, bar *domain.Kline) ([]Event, error) {
	return AdvanceWith(pos, bar, StopFirst)
}

// AdvanceWith is Advance with an explicit intra-bar resolution rule.
func AdvanceWith(pos *domain.Position, bar *domain.Kline, res Resolution) ([]Event, error) {
	if pos == nil || bar == nil {
		return nil, fmt.Errorf("%w: nil position or bar", ports.ErrInvalidRequest)
	}
	if !pos.IsOpen() {
		return nil, fmt.Errorf("%w: position %s already closed", ports.ErrInvalidRequest, pos.ID)
	}
	if err := checkSizeInvariant(pos); err != nil {
		return nil, err
	}

	trackExtremes(pos, bar)

	crossed := crossedLevels(pos, bar)

	if stopCrossed(pos, bar) && (res == StopFirst || len(crossed) == 0) {
		return closeAll(pos, pos.CurrentSL, stopReason(pos), bar.CloseTime), nil
	}

	if len(crossed) == 0 {
		pos.UnrealizedPnL = pnlPct(pos, bar.Close)
		return nil, nil
	}

	var events []Event
	consumed := crossed[len(crossed)-1]

	// Intermediate levels jumped over by the bar.
	for _, i := range crossed[:len(crossed)-1] {
		tp := &pos.TPLadder[i]
		tp.Hit = true
		pos.RealizedPnL += pnlPct(pos, tp.Price) * tp.SizePct / 100
		pos.RemainingPct -= tp.SizePct
		events = append(events, Event{
			Type:    EventGapFill,
			Level:   i + 1,
			Price:   tp.Price,
			SizePct: tp.SizePct,
			At:      bar.CloseTime,
		})
	}

	tp := &pos.TPLadder[consumed]
	tp.Hit = true

	if consumed == domain.NumTPLevels-1 {
		// Final level: the remaining share goes out at its price and the
		// position is terminal.
		events = append(events, Event{
			Type:    EventTPHit,
			Level:   consumed + 1,
			Price:   tp.Price,
			SizePct: pos.RemainingPct,
			At:      bar.CloseTime,
		})
		events = append(events, closeAll(pos, tp.Price, domain.CloseReasonTakeProfit, bar.CloseTime)...)
		return events, nil
	}

	pos.RealizedPnL += pnlPct(pos, tp.Price) * tp.SizePct / 100
	pos.RemainingPct -= tp.SizePct
	pos.Status = domain.StatusPartiallyClosed
	pos.UnrealizedPnL = pnlPct(pos, bar.Close)
	events = append(events, Event{
		Type:    EventTPHit,
		Level:   consumed + 1,
		Price:   tp.Price,
		SizePct: tp.SizePct,
		At:      bar.CloseTime,
	})

	if ev, moved := ratchetStop(pos, consumed, bar.CloseTime); moved {
		events = append(events, ev)
	}
	return events, nil
}

// CloseAt closes the full remaining share of a position at the given price,
// outside of stop/target resolution. Used for opposite-signal exits and
// manual closes.
func CloseAt(pos *domain.Position, price float64, reason domain.CloseReason, at time.Time) ([]Event, error) {
	if pos == nil {
		return nil, fmt.Errorf("%w: nil position", ports.ErrInvalidRequest)
	}
	if !pos.IsOpen() {
		return nil, fmt.Errorf("%w: position %s already closed", ports.ErrInvalidRequest, pos.ID)
	}
	return closeAll(pos, price, reason, at), nil
}

// checkSizeInvariant verifies that consumed ladder shares plus the remaining
// share add up to the whole position. A violation is a programming error.
func checkSizeInvariant(pos *domain.Position) error {
	var closed float64
	for _, tp := range pos.TPLadder {
		if tp.Hit {
			closed += tp.SizePct
		}
	}
	if math.Abs(closed+pos.RemainingPct-100) > sizeEpsilon {
		return fmt.Errorf("%w: position %s closed=%.4f remaining=%.4f",
			ports.ErrInvariantViolation, pos.ID, closed, pos.RemainingPct)
	}
	return nil
}

func trackExtremes(pos *domain.Position, bar *domain.Kline) {
	pos.BarCount++
	if bar.High > pos.MaxPrice {
		pos.MaxPrice = bar.High
	}
	if bar.Low < pos.MinPrice || pos.MinPrice == 0 {
		pos.MinPrice = bar.Low
	}
	var best, worst float64
	if pos.IsLong() {
		best = pnlPct(pos, pos.MaxPrice)
		worst = pnlPct(pos, pos.MinPrice)
	} else {
		best = pnlPct(pos, pos.MinPrice)
		worst = pnlPct(pos, pos.MaxPrice)
	}
	if best > pos.MaxProfitPct {
		pos.MaxProfitPct = best
	}
	if worst < pos.MaxLossPct {
		pos.MaxLossPct = worst
	}
}

func stopCrossed(pos *domain.Position, bar *domain.Kline) bool {
	if pos.IsLong() {
		return bar.Low <= pos.CurrentSL
	}
	return bar.High >= pos.CurrentSL
}

// stopReason distinguishes the original stop, a breakeven stop parked at
// entry, and a stop ratcheted to a prior TP level.
func stopReason(pos *domain.Position) domain.CloseReason {
	switch {
	case pos.CurrentSL == pos.SLPrice:
		return domain.CloseReasonStopLoss
	case pos.CurrentSL == pos.EntryPrice:
		return domain.CloseReasonBreakeven
	default:
		return domain.CloseReasonCascade
	}
}

// crossedLevels returns the indexes of unhit TP levels whose price sits
// inside the bar's range, in ladder order.
func crossedLevels(pos *domain.Position, bar *domain.Kline) []int {
	var out []int
	for i := range pos.TPLadder {
		tp := pos.TPLadder[i]
		if tp.Hit {
			continue
		}
		if pos.IsLong() && bar.High >= tp.Price {
			out = append(out, i)
		} else if !pos.IsLong() && bar.Low <= tp.Price {
			out = append(out, i)
		}
	}
	return out
}

// ratchetStop applies the cascade rule for a consumed level: TP1 parks the
// stop at entry, TPn moves it to TP(n-1). The stop never moves adversely.
func ratchetStop(pos *domain.Position, consumed int, at time.Time) (Event, bool) {
	var target float64
	if consumed == 0 {
		target = pos.EntryPrice
	} else {
		target = pos.TPLadder[consumed-1].Price
	}
	if pos.IsLong() && target <= pos.CurrentSL {
		return Event{}, false
	}
	if !pos.IsLong() && target >= pos.CurrentSL {
		return Event{}, false
	}
	pos.CurrentSL = target
	return Event{Type: EventSLMoved, Price: target, At: at}, true
}

func closeAll(pos *domain.Position, price float64, reason domain.CloseReason, at time.Time) []Event {
	remaining := pos.RemainingPct
	pos.RealizedPnL += pnlPct(pos, price) * remaining / 100
	pos.RemainingPct = 0
	pos.UnrealizedPnL = 0
	pos.Status = domain.StatusClosed
	pos.CloseReason = reason
	pos.ClosedAt = at
	return []Event{{
		Type:    EventClosed,
		Price:   price,
		SizePct: remaining,
		Reason:  reason,
		At:      at,
	}}
}

// pnlPct is the percent move from entry in the position's favor.
func pnlPct(pos *domain.Position, price float64) float64 {
	if pos.EntryPrice == 0 {
		return 0
	}
	raw := (price - pos.EntryPrice) / pos.EntryPrice * 100
	if pos.IsLong() {
		return raw
	}
	return -raw
}
