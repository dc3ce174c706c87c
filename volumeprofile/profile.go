// Package volumeprofile implements C4: the price->(buy,sell,total)
// histogram and its derived POC/VAH/VAL/LVN statistics.
package volumeprofile

import (
	"sort"

	"github.com/shopspring/decimal"

	"orderflow-engine/model"
)

// Profile owns one symbol's live price-level map. Only ever touched by
// the ingest task that owns the symbol.
type Profile struct {
	symbol string
	tick   decimal.Decimal
	levels map[string]*model.PriceLevel // keyed by quantized price string
	order  []decimal.Decimal            // ascending quantized prices seen
}

// New creates a profile for symbol quantizing at the given tick size.
func New(symbol string, tick float64) *Profile {
	return &Profile{
		symbol: symbol,
		tick:   decimal.NewFromFloat(tick),
		levels: make(map[string]*model.PriceLevel),
	}
}

// Ingest folds one trade into the profile's price-level histogram.
func (p *Profile) Ingest(trade model.Trade) {
	level := p.quantize(trade.Price)
	key := level.String()
	lvl, ok := p.levels[key]
	if !ok {
		lvl = &model.PriceLevel{Price: level}
		p.levels[key] = lvl
		p.order = insertSorted(p.order, level)
	}
	if trade.Aggressor == model.SideBuy {
		lvl.BuyVolume += trade.Size
	} else {
		lvl.SellVolume += trade.Size
	}
}

func (p *Profile) quantize(price decimal.Decimal) decimal.Decimal {
	if p.tick.IsZero() {
		return price
	}
	div := price.Div(p.tick)
	floored := div.Floor()
	return floored.Mul(p.tick)
}

func insertSorted(order []decimal.Decimal, v decimal.Decimal) []decimal.Decimal {
	i := sort.Search(len(order), func(i int) bool { return order[i].GreaterThanOrEqual(v) })
	if i < len(order) && order[i].Equal(v) {
		return order
	}
	order = append(order, decimal.Zero)
	copy(order[i+1:], order[i:])
	order[i] = v
	return order
}

// Levels returns the ascending-by-price snapshot of every level currently
// in the profile.
func (p *Profile) Levels() []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(p.order))
	for _, price := range p.order {
		lvl := p.levels[price.String()]
		out = append(out, *lvl)
	}
	return out
}

// LevelAt returns the level for a quantized price, and whether it exists.
func (p *Profile) LevelAt(price decimal.Decimal) (model.PriceLevel, bool) {
	q := p.quantize(price)
	lvl, ok := p.levels[q.String()]
	if !ok {
		return model.PriceLevel{}, false
	}
	return *lvl, true
}

// Snapshot computes the full derived statistics (POC/VAH/VAL/LVN) over the
// current levels,  currentPrice is used only to break POC
// ties by closest-to-current-price.
func (p *Profile) Snapshot(timestamp int64, currentPrice decimal.Decimal) model.VolumeProfileSnapshot {
	levels := p.Levels()
	if len(levels) == 0 {
		return model.VolumeProfileSnapshot{Symbol: p.symbol, Timestamp: timestamp}
	}

	pocIdx := computePOC(levels, currentPrice)
	vahIdx, valIdx := computeValueArea(levels, pocIdx)
	zones := computeLVNZones(levels, p.tick)

	return model.VolumeProfileSnapshot{
		Symbol:    p.symbol,
		Timestamp: timestamp,
		Levels:    levels,
		POC:       levels[pocIdx].Price,
		VAH:       levels[vahIdx].Price,
		VAL:       levels[valIdx].Price,
		LVNZones:  zones,
	}
}

func computePOC(levels []model.PriceLevel, currentPrice decimal.Decimal) int {
	best := 0
	bestTotal := levels[0].TotalVolume()
	for i := 1; i < len(levels); i++ {
		total := levels[i].TotalVolume()
		if total > bestTotal {
			best, bestTotal = i, total
			continue
		}
		if total == bestTotal {
			if distance(levels[i].Price, currentPrice).LessThan(distance(levels[best].Price, currentPrice)) {
				best = i
			}
		}
	}
	return best
}

func distance(a, b decimal.Decimal) decimal.Decimal {
	d := a.Sub(b)
	if d.IsNegative() {
		return d.Neg()
	}
	return d
}

// computeValueArea extends from POC greedily by total volume until the
// covered volume reaches >=70% of the grand total.
func computeValueArea(levels []model.PriceLevel, pocIdx int) (vahIdx, valIdx int) {
	var grandTotal int64
	for _, l := range levels {
		grandTotal += l.TotalVolume()
	}
	lo, hi := pocIdx, pocIdx
	covered := levels[pocIdx].TotalVolume()

	for covered*10 < grandTotal*7 {
		var lowerTotal, upperTotal int64 = -1, -1
		if lo-1 >= 0 {
			lowerTotal = levels[lo-1].TotalVolume()
		}
		if hi+1 < len(levels) {
			upperTotal = levels[hi+1].TotalVolume()
		}
		if lowerTotal < 0 && upperTotal < 0 {
			break
		}
		if upperTotal >= lowerTotal {
			hi++
			covered += upperTotal
		} else {
			lo--
			covered += lowerTotal
		}
	}
	return hi, lo
}

// computeLVNZones groups levels with 0 < total < 0.3*mean_total into
// zones when within 3 ticks of each other, reported at their mean price.
func computeLVNZones(levels []model.PriceLevel, tick decimal.Decimal) []model.LVNZone {
	if len(levels) == 0 {
		return nil
	}
	var sum int64
	for _, l := range levels {
		sum += l.TotalVolume()
	}
	mean := float64(sum) / float64(len(levels))
	threshold := 0.3 * mean

	var zones []model.LVNZone
	var current []model.PriceLevel

	flush := func() {
		if len(current) == 0 {
			return
		}
		sumPrice := decimal.Zero
		for _, l := range current {
			sumPrice = sumPrice.Add(l.Price)
		}
		mean := sumPrice.Div(decimal.NewFromInt(int64(len(current))))
		zones = append(zones, model.LVNZone{
			MeanPrice: mean,
			LowPrice:  current[0].Price,
			HighPrice: current[len(current)-1].Price,
		})
		current = nil
	}

	for i, l := range levels {
		total := l.TotalVolume()
		isLVN := total > 0 && float64(total) < threshold
		if !isLVN {
			flush()
			continue
		}
		if len(current) > 0 {
			gap := l.Price.Sub(current[len(current)-1].Price)
			maxGap := tick.Mul(decimal.NewFromInt(3))
			if gap.GreaterThan(maxGap) {
				flush()
			}
		}
		current = append(current, levels[i])
	}
	flush()
	return zones
}
