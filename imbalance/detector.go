// Package imbalance implements C6: scanning the active price ladder for
// maximal runs of >=3 consecutive one-sided imbalances.
package imbalance

import "orderflow-engine/model"

// Detector tracks the last-reported run per side so that a Signal is only
// re-emitted when level_count increases.
type Detector struct {
	symbol        string
	ratio         float64
	minRun        int
	lastReported  map[model.Side]int // side -> last reported level_count for the current run
	lastRunSide   model.Side
}

// New creates a detector for symbol with the given imbalance ratio
// (default 0.67) and minimum run length (default 3).
func New(symbol string, ratio float64, minRun int) *Detector {
	return &Detector{
		symbol:       symbol,
		ratio:        ratio,
		minRun:       minRun,
		lastReported: make(map[model.Side]int),
	}
}

// Scan finds every maximal run of >=minRun consecutive one-sided levels
// (ascending by price) in levels, and returns the events that newly
// qualify: a run reaching minRun for the first time, or a run whose
// length has grown since the last scan.
func (d *Detector) Scan(levels []model.PriceLevel, timestamp int64) []model.StackedImbalanceEvent {
	var events []model.StackedImbalanceEvent

	runs := findRuns(levels, d.ratio, d.minRun)

	seenSides := make(map[model.Side]bool)
	for _, r := range runs {
		seenSides[r.side] = true
		if r.count <= d.lastReported[r.side] {
			continue
		}
		d.lastReported[r.side] = r.count
		events = append(events, model.StackedImbalanceEvent{
			Symbol:         d.symbol,
			Side:           r.side,
			LevelCount:     r.count,
			PriceHigh:      levels[r.end].Price,
			PriceLow:       levels[r.start].Price,
			TotalImbalance: r.totalImbalance,
			Timestamp:      timestamp,
		})
	}

	// A side with no current qualifying run resets, so a fresh run later
	// starts from zero rather than being compared against a stale count.
	for side := range d.lastReported {
		if !seenSides[side] {
			d.lastReported[side] = 0
		}
	}

	return events
}

type run struct {
	side           model.Side
	start, end     int
	count          int
	totalImbalance int64
}

func findRuns(levels []model.PriceLevel, ratio float64, minRun int) []run {
	var runs []run
	i := 0
	for i < len(levels) {
		side, ok := levels[i].Imbalance(ratio)
		if !ok {
			i++
			continue
		}
		j := i
		var total int64
		for j < len(levels) {
			s, ok := levels[j].Imbalance(ratio)
			if !ok || s != side {
				break
			}
			total += levels[j].BuyVolume - levels[j].SellVolume
			j++
		}
		count := j - i
		if count >= minRun {
			if total < 0 {
				total = -total
			}
			runs = append(runs, run{side: side, start: i, end: j - 1, count: count, totalImbalance: total})
		}
		i = j
	}
	return runs
}
