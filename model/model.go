// Package model holds the data types shared across the order-flow pipeline:
// trades, aggregates, volume-profile state, and the signals/sessions the
// store persists. None of these types own a goroutine; they are passed by
// value or by snapshot between the tasks that do.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the aggressor side of a trade, or the dominant side of an
// aggregate / imbalance.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Direction is the bias of an emitted signal.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
)

// Trade is an immutable normalized trade execution, produced by the C1
// trade source. Timestamps are milliseconds since epoch and are
// non-decreasing within a symbol.
type Trade struct {
	TradeID   string
	Symbol    string
	Timestamp int64
	Price     decimal.Decimal
	Size      int64
	Aggressor Side
}

// Aggregate is one per-symbol, per-1-second bucket summary emitted by C2.
type Aggregate struct {
	Symbol      string
	BucketStart int64 // ms, floor(ts/1000)*1000
	BuyVolume   int64
	SellVolume  int64
	VWAP        decimal.Decimal
	LastPrice   decimal.Decimal
}

func (a Aggregate) Delta() int64 { return a.BuyVolume - a.SellVolume }

func (a Aggregate) DominantSide() Side {
	if a.BuyVolume >= a.SellVolume {
		return SideBuy
	}
	return SideSell
}

func (a Aggregate) TotalVolume() int64 { return a.BuyVolume + a.SellVolume }

// SignificantImbalance reports whether |delta|/(buy+sell) >= threshold.
func (a Aggregate) SignificantImbalance(threshold float64) bool {
	total := a.TotalVolume()
	if total == 0 {
		return false
	}
	d := a.Delta()
	if d < 0 {
		d = -d
	}
	return float64(d)/float64(total) >= threshold
}

// PriceLevel is a long-lived, append-only-mutated bucket of the volume
// profile, keyed by a quantized price.
type PriceLevel struct {
	Price      decimal.Decimal
	BuyVolume  int64
	SellVolume int64
}

func (p PriceLevel) TotalVolume() int64 { return p.BuyVolume + p.SellVolume }

// Imbalance reports whether this level qualifies as one-sided beyond
// threshold, and on which side.
func (p PriceLevel) Imbalance(threshold float64) (side Side, ok bool) {
	total := p.TotalVolume()
	denom := total
	if denom < 1 {
		denom = 1
	}
	d := p.BuyVolume - p.SellVolume
	if d < 0 {
		d = -d
	}
	if float64(d)/float64(denom) < threshold {
		return "", false
	}
	if p.BuyVolume >= p.SellVolume {
		return SideBuy, true
	}
	return SideSell, true
}

// VolumeProfileSnapshot is an immutable view of the live price-level map
// plus its derived statistics, emitted once per second by C4.
type VolumeProfileSnapshot struct {
	Symbol    string
	Timestamp int64
	Levels    []PriceLevel // ascending by price
	POC       decimal.Decimal
	VAH       decimal.Decimal
	VAL       decimal.Decimal
	LVNZones  []LVNZone
}

// LVNZone is a group of consecutive low-volume-node levels reported at
// their mean price.
type LVNZone struct {
	MeanPrice decimal.Decimal
	LowPrice  decimal.Decimal
	HighPrice decimal.Decimal
}

// CVDPoint is one cumulative-volume-delta sample, emitted per Aggregate.
type CVDPoint struct {
	Symbol    string
	Timestamp int64
	Value     int64
}

// AbsorptionStrength is the strength ladder of an absorption accumulator.
type AbsorptionStrength string

const (
	StrengthAbsent   AbsorptionStrength = "absent"
	StrengthWeak     AbsorptionStrength = "weak"
	StrengthMedium   AbsorptionStrength = "medium"
	StrengthStrong   AbsorptionStrength = "strong"
	StrengthDefended AbsorptionStrength = "defended"
	StrengthExpired  AbsorptionStrength = "expired"
)

// AbsorptionAccumulator is the per-price-level running state of C5.
type AbsorptionAccumulator struct {
	Symbol        string
	Price         decimal.Decimal
	Type          Side // SideBuy = buying absorption, SideSell = selling absorption
	TotalAbsorbed int64
	EventCount    int64
	FirstSeen     int64
	LastSeen      int64
	Strength      AbsorptionStrength
}

// AbsorptionEvent is emitted on every transition to medium-or-higher
// strength.
type AbsorptionEvent struct {
	Accumulator  AbsorptionAccumulator
	Delta        int64
	PriceChange  decimal.Decimal
	AtKeyLevel   bool
	AgainstTrend bool
}

// StackedImbalanceEvent is emitted when a maximal run of >=3 consecutive
// one-sided price levels is found by C6.
type StackedImbalanceEvent struct {
	Symbol         string
	Side           Side
	LevelCount     int
	PriceHigh      decimal.Decimal
	PriceLow       decimal.Decimal
	TotalImbalance int64
	Timestamp      int64
}

// ConfluenceEvent correlates multiple detector outputs agreeing in
// direction within a sliding window.
type ConfluenceEvent struct {
	Symbol    string
	Price     decimal.Decimal
	Direction Direction
	Score     int
	Signals   []string
	Timestamp int64
}

// SignalType enumerates the kinds of signal the Store can persist.
type SignalType string

const (
	SignalDeltaFlip        SignalType = "delta_flip"
	SignalAbsorption       SignalType = "absorption"
	SignalStackedImbalance SignalType = "stacked_imbalance"
	SignalConfluence       SignalType = "confluence"
)

// Outcome is the realized result of a Signal, filled in by C8.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeWin       Outcome = "win"
	OutcomeLoss      Outcome = "loss"
	OutcomeBreakeven Outcome = "breakeven"
)

// Signal is the superset record persisted by C10. Created pending by the
// emitting detector, updated in place by the outcome tracker, never
// deleted.
type Signal struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	CreatedAt    time.Time
	Symbol       string
	Timestamp    int64
	Type         SignalType
	Direction    Direction
	PriceAtEmit  decimal.Decimal
	PriceAfter1m *decimal.Decimal
	PriceAfter5m *decimal.Decimal
	Outcome      Outcome
}

// SessionMode is how a session's trade source is driven.
type SessionMode string

const (
	ModeLive   SessionMode = "live"
	ModeDemo   SessionMode = "demo"
	ModeReplay SessionMode = "replay"
)

// Session owns all signals produced while it is open.
type Session struct {
	ID          uuid.UUID
	StartedAt   time.Time
	EndedAt     *time.Time
	Mode        SessionMode
	Symbols     []string
	SessionHigh decimal.Decimal
	SessionLow  decimal.Decimal
	TotalVolume int64
}

// TypeStats are per-signal-type running counters owned by the Session
// Manager (C11).
type TypeStats struct {
	Type       SignalType
	Count      int64
	Bullish    int64
	Bearish    int64
	Wins       int64
	Losses     int64
	Breakeven  int64
	AvgMove1m  float64
	AvgMove5m  float64
	WinRate    float64
}

// SessionStats is the periodic broadcast snapshot of C11's running totals.
type SessionStats struct {
	SessionID   uuid.UUID
	Timestamp   int64
	SessionHigh decimal.Decimal
	SessionLow  decimal.Decimal
	TotalVolume int64
	ByType      []TypeStats
}
