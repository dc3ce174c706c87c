// Package cvd implements C3: running cumulative volume delta and
// zero-cross detection.
package cvd

import "orderflow-engine/model"

// Tracker owns one symbol's CVD state. Only ever touched by the ingest
// task that owns the symbol.
type Tracker struct {
	symbol       string
	value        int64
	hasPrev      bool
	minAbsCVD    int64
}

// New creates a tracker with the zero-cross hysteresis threshold
// (default 300, configurable).
func New(symbol string, minAbsCVD int64) *Tracker {
	return &Tracker{symbol: symbol, minAbsCVD: minAbsCVD}
}

// Value returns the current CVD value.
func (t *Tracker) Value() int64 { return t.value }

// Update folds one Aggregate's delta into the running CVD, returning the
// emitted CVDPoint and, if a qualifying zero-cross occurred, a DeltaFlip
// direction and true.
func (t *Tracker) Update(agg model.Aggregate) (model.CVDPoint, model.Direction, bool) {
	prev := t.value
	t.value += agg.Delta()

	point := model.CVDPoint{Symbol: t.symbol, Timestamp: agg.BucketStart, Value: t.value}

	if !t.hasPrev {
		t.hasPrev = true
		return point, "", false
	}

	if !t.isZeroCross(prev, t.value) {
		return point, "", false
	}

	direction := model.DirectionBullish
	if t.value < 0 {
		direction = model.DirectionBearish
	}
	return point, direction, true
}

func (t *Tracker) isZeroCross(prev, now int64) bool {
	if prev == 0 || now == 0 {
		return false
	}
	signChanged := (prev < 0) != (now < 0)
	if !signChanged {
		return false
	}
	absPrev := prev
	if absPrev < 0 {
		absPrev = -absPrev
	}
	return absPrev >= t.minAbsCVD
}
