// Package absorption implements C5: the per-price-level absorption
// accumulator state machine.
package absorption

import (
	"github.com/shopspring/decimal"

	"orderflow-engine/model"
)

// Strength thresholds: (event_count, total_absorbed), both required
//.
const (
	weakEventCount   = 1
	weakTotal        = 20
	mediumEventCount = 3
	mediumTotal      = 100
	strongEventCount = 5
	strongTotal      = 300
	defendedEventCnt = 8
	defendedTotal    = 600
)

// DefaultMinSize is the minimum trade size to count toward absorption
//.
const DefaultMinSize = 20

// Detector owns one symbol's absorption accumulators, keyed by quantized
// price level.
type Detector struct {
	symbol      string
	tick        decimal.Decimal
	minSize     int64
	idleLimitMs int64
	accs        map[string]*model.AbsorptionAccumulator
}

// New creates a detector for symbol, quantizing trade prices to tick
// before keying an accumulator, the same level_price every other
// per-level component (volumeprofile, imbalance) uses.
func New(symbol string, tick float64, minSize int64, idleLimitMs int64) *Detector {
	return &Detector{
		symbol:      symbol,
		tick:        decimal.NewFromFloat(tick),
		minSize:     minSize,
		idleLimitMs: idleLimitMs,
		accs:        make(map[string]*model.AbsorptionAccumulator),
	}
}

func (d *Detector) quantize(price decimal.Decimal) decimal.Decimal {
	if d.tick.IsZero() {
		return price
	}
	return price.Div(d.tick).Floor().Mul(d.tick)
}

// Context carries the cross-component information a single trade's
// absorption classification needs: whether this trade's bucket saw the
// price move, the current CVD sign, and which levels are "key" (POC/VAH/
// VAL within +-1 tick).
type Context struct {
	PriceChange decimal.Decimal // this bucket's price change so far
	CVDSign     int             // -1, 0, +1
	AtKeyLevel  func(price decimal.Decimal) bool
	Now         int64 // ms, from the owning task's clock
}

// Ingest classifies one trade and updates the matching accumulator (if
// any), returning an emitted AbsorptionEvent when the accumulator just
// crossed into medium-or-higher strength.
func (d *Detector) Ingest(trade model.Trade, ctx Context) (model.AbsorptionEvent, bool) {
	if trade.Size < d.minSize {
		return model.AbsorptionEvent{}, false
	}

	var matchType model.Side
	switch trade.Aggressor {
	case model.SideBuy:
		if ctx.PriceChange.IsPositive() {
			return model.AbsorptionEvent{}, false
		}
		matchType = model.SideBuy
	case model.SideSell:
		if ctx.PriceChange.IsNegative() {
			return model.AbsorptionEvent{}, false
		}
		matchType = model.SideSell
	}

	level := d.quantize(trade.Price)
	key := level.String()
	acc, ok := d.accs[key]
	if !ok {
		acc = &model.AbsorptionAccumulator{
			Symbol:    d.symbol,
			Price:     level,
			Type:      matchType,
			FirstSeen: ctx.Now,
			Strength:  model.StrengthAbsent,
		}
		d.accs[key] = acc
	}

	prevStrength := acc.Strength
	acc.TotalAbsorbed += trade.Size
	acc.EventCount++
	acc.LastSeen = ctx.Now
	acc.Strength = strengthFor(acc.EventCount, acc.TotalAbsorbed)

	if !crossedIntoMediumOrHigher(prevStrength, acc.Strength) {
		return model.AbsorptionEvent{}, false
	}

	atKey := false
	if ctx.AtKeyLevel != nil {
		atKey = ctx.AtKeyLevel(trade.Price)
	}
	against := accumulatorAgainstTrend(*acc, ctx.CVDSign)

	return model.AbsorptionEvent{
		Accumulator:  *acc,
		Delta:        trade.Size,
		PriceChange:  ctx.PriceChange,
		AtKeyLevel:   atKey,
		AgainstTrend: against,
	}, true
}

// Prune expires accumulators idle for longer than idleLimitMs (default
// 5 minutes), returning the set of prices expired.
func (d *Detector) Prune(now int64) []string {
	var expired []string
	for key, acc := range d.accs {
		if now-acc.LastSeen > d.idleLimitMs {
			acc.Strength = model.StrengthExpired
			expired = append(expired, key)
			delete(d.accs, key)
		}
	}
	return expired
}

// LiveZones returns a snapshot of every currently active accumulator,
// emitted once per second.
func (d *Detector) LiveZones() []model.AbsorptionAccumulator {
	out := make([]model.AbsorptionAccumulator, 0, len(d.accs))
	for _, acc := range d.accs {
		out = append(out, *acc)
	}
	return out
}

func strengthFor(eventCount, totalAbsorbed int64) model.AbsorptionStrength {
	switch {
	case eventCount >= defendedEventCnt && totalAbsorbed >= defendedTotal:
		return model.StrengthDefended
	case eventCount >= strongEventCount && totalAbsorbed >= strongTotal:
		return model.StrengthStrong
	case eventCount >= mediumEventCount && totalAbsorbed >= mediumTotal:
		return model.StrengthMedium
	case eventCount >= weakEventCount && totalAbsorbed >= weakTotal:
		return model.StrengthWeak
	default:
		return model.StrengthAbsent
	}
}

var rank = map[model.AbsorptionStrength]int{
	model.StrengthAbsent:   0,
	model.StrengthWeak:     1,
	model.StrengthMedium:   2,
	model.StrengthStrong:   3,
	model.StrengthDefended: 4,
}

func crossedIntoMediumOrHigher(prev, now model.AbsorptionStrength) bool {
	return rank[now] >= rank[model.StrengthMedium] && rank[now] > rank[prev]
}

func accumulatorAgainstTrend(acc model.AbsorptionAccumulator, cvdSign int) bool {
	if cvdSign == 0 {
		return false
	}
	if acc.Type == model.SideBuy {
		return cvdSign < 0
	}
	return cvdSign > 0
}
