// Package aggregator implements C2: one open 1-second bucket per symbol,
// emitting an Aggregate on rollover. Each symbol's Aggregator instance is
// only ever touched by the ingest task that owns it, so no locking is
// needed here.
package aggregator

import (
	"github.com/shopspring/decimal"

	"orderflow-engine/model"
)

const bucketMs = 1000

// Aggregator buckets a single symbol's trades into 1-second windows.
type Aggregator struct {
	symbol string

	open        bool
	bucketStart int64
	buyVolume   int64
	sellVolume  int64
	notional    decimal.Decimal // sum(price*size), for VWAP
	lastPrice   decimal.Decimal
}

// New creates an aggregator for symbol with no open bucket.
func New(symbol string) *Aggregator {
	return &Aggregator{symbol: symbol}
}

// Ingest feeds one trade into the aggregator. It returns a completed
// Aggregate, and true, whenever the trade causes a bucket rollover (i.e.
// the trade belongs to a strictly later bucket than the currently open
// one). The trade itself always starts/continues the new/current bucket
// after a rollover — callers must not re-feed it.
func (a *Aggregator) Ingest(trade model.Trade) (model.Aggregate, bool) {
	bucket := floorBucket(trade.Timestamp)

	var rolled model.Aggregate
	var emit bool
	if a.open && bucket > a.bucketStart {
		rolled, emit = a.snapshot(), true
		a.reset()
	}

	if !a.open {
		a.bucketStart = bucket
		a.open = true
	}

	switch trade.Aggressor {
	case model.SideBuy:
		a.buyVolume += trade.Size
	default:
		a.sellVolume += trade.Size
	}
	a.notional = a.notional.Add(trade.Price.Mul(decimal.NewFromInt(trade.Size)))
	a.lastPrice = trade.Price

	return rolled, emit
}

// Flush closes the currently open bucket (if any) without waiting for a
// later trade, used on inactivity timeout (live mode 1.1s) and on
// shutdown drain.
func (a *Aggregator) Flush() (model.Aggregate, bool) {
	if !a.open {
		return model.Aggregate{}, false
	}
	agg := a.snapshot()
	a.reset()
	return agg, true
}

// IsOpen reports whether a bucket is currently accumulating trades.
func (a *Aggregator) IsOpen() bool { return a.open }

// BucketStart returns the currently open bucket's start, or 0 if none.
func (a *Aggregator) BucketStart() int64 { return a.bucketStart }

func (a *Aggregator) snapshot() model.Aggregate {
	total := a.buyVolume + a.sellVolume
	vwap := decimal.Zero
	if total > 0 {
		vwap = a.notional.Div(decimal.NewFromInt(total))
	}
	return model.Aggregate{
		Symbol:      a.symbol,
		BucketStart: a.bucketStart,
		BuyVolume:   a.buyVolume,
		SellVolume:  a.sellVolume,
		VWAP:        vwap,
		LastPrice:   a.lastPrice,
	}
}

func (a *Aggregator) reset() {
	a.open = false
	a.bucketStart = 0
	a.buyVolume = 0
	a.sellVolume = 0
	a.notional = decimal.Zero
}

func floorBucket(tsMs int64) int64 {
	return (tsMs / bucketMs) * bucketMs
}
