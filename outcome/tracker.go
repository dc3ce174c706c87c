// Package outcome implements C8: deferred 1m/5m price-lookup evaluation
// and the terminal win/loss/breakeven/pending-forever determination,
// for 24-hour continuous futures trading (no session-hours gate).
package outcome

import (
	"github.com/shopspring/decimal"

	"orderflow-engine/model"
)

// pending is the bookkeeping the tracker keeps per open Signal.
type pending struct {
	signal   *model.Signal
	mark1m   int64
	mark5m   int64
	filled1m bool
	filled5m bool
}

// Tracker schedules and resolves deferred evaluations for a single
// session's signals. All calls must come from the single outcome
// scheduler task.
type Tracker struct {
	mark1mOffset int64
	mark5mOffset int64
	winTicks     float64
	tick         float64

	bySymbol map[string][]*pending
}

// New creates a tracker with the default marks (60s/300s) and win
// threshold (default W=4 ticks).
func New(mark1mOffset, mark5mOffset int64, winTicks float64) *Tracker {
	return &Tracker{
		mark1mOffset: mark1mOffset,
		mark5mOffset: mark5mOffset,
		winTicks:     winTicks,
		bySymbol:     make(map[string][]*pending),
	}
}

// Schedule registers a freshly emitted Signal for 1m/5m evaluation.
func (t *Tracker) Schedule(sig *model.Signal, tick float64) {
	t.tick = tick
	p := &pending{
		signal: sig,
		mark1m: sig.Timestamp + t.mark1mOffset,
		mark5m: sig.Timestamp + t.mark5mOffset,
	}
	t.bySymbol[sig.Symbol] = append(t.bySymbol[sig.Symbol], p)
}

// OnPrice is called for every observed trade price on a symbol; it fills
// any due marks and returns the signals whose outcome just became
// terminal (both marks filled).
func (t *Tracker) OnPrice(symbol string, now int64, price decimal.Decimal) []*model.Signal {
	var resolved []*model.Signal
	list := t.bySymbol[symbol]
	keep := list[:0]

	for _, p := range list {
		if !p.filled1m && now >= p.mark1m {
			p.signal.PriceAfter1m = ptr(price)
			p.filled1m = true
		}
		if !p.filled5m && now >= p.mark5m {
			p.signal.PriceAfter5m = ptr(price)
			p.filled5m = true
		}
		if p.filled1m && p.filled5m {
			p.signal.Outcome = t.computeOutcome(*p.signal)
			resolved = append(resolved, p.signal)
			continue
		}
		keep = append(keep, p)
	}
	t.bySymbol[symbol] = keep
	return resolved
}

// EndSession marks every still-open signal as pending-forever, the
// terminal state assigned to any signal whose 1m/5m mark never arrives
// before the session ends, and returns them. The scheduler must not
// reference these signals again afterward.
func (t *Tracker) EndSession() []*model.Signal {
	var left []*model.Signal
	for symbol, list := range t.bySymbol {
		for _, p := range list {
			left = append(left, p.signal)
		}
		delete(t.bySymbol, symbol)
	}
	return left
}

// Pending reports how many signals are still awaiting resolution, for
// observability/tests.
func (t *Tracker) Pending() int {
	n := 0
	for _, list := range t.bySymbol {
		n += len(list)
	}
	return n
}

func (t *Tracker) computeOutcome(sig model.Signal) model.Outcome {
	if sig.PriceAfter5m == nil {
		return model.OutcomePending
	}
	var delta decimal.Decimal
	if sig.Direction == model.DirectionBullish {
		delta = sig.PriceAfter5m.Sub(sig.PriceAtEmit)
	} else {
		delta = sig.PriceAtEmit.Sub(*sig.PriceAfter5m)
	}
	winThreshold := decimal.NewFromFloat(t.winTicks * t.tick)
	switch {
	case delta.GreaterThanOrEqual(winThreshold):
		return model.OutcomeWin
	case delta.LessThanOrEqual(winThreshold.Neg()):
		return model.OutcomeLoss
	default:
		return model.OutcomeBreakeven
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
