package absorption

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-engine/model"
)

func buyAt100(size int64) model.Trade {
	return model.Trade{Symbol: "ESZ5", Price: decimal.NewFromInt(100), Size: size, Aggressor: model.SideBuy}
}

// 8 buy trades size 100 each at p=100 over 8 seconds with no price
// increase. Expect weak -> medium@3 -> strong@5 -> defended@8, with
// Signals emitted at medium, strong, defended (3 emissions).
func TestScenarioThreeAbsorptionLadder(t *testing.T) {
	d := New("ESZ5", 0.25, DefaultMinSize, 5*60*1000)
	ctx := Context{PriceChange: decimal.Zero, CVDSign: 1, Now: 0}

	var emissions []model.AbsorptionEvent
	for i := 0; i < 8; i++ {
		ctx.Now = int64(i) * 1000
		evt, emitted := d.Ingest(buyAt100(100), ctx)
		if emitted {
			emissions = append(emissions, evt)
		}
	}

	require.Len(t, emissions, 3)
	assert.Equal(t, model.StrengthMedium, emissions[0].Accumulator.Strength)
	assert.Equal(t, model.StrengthStrong, emissions[1].Accumulator.Strength)
	assert.Equal(t, model.StrengthDefended, emissions[2].Accumulator.Strength)
}

// event_count=5, total_absorbed=299 -> medium, not strong (strong
// requires total>=300).
func TestBoundaryEventCountFiveTotalJustUnderStrong(t *testing.T) {
	d := New("ESZ5", 0.25, DefaultMinSize, 5*60*1000)
	ctx := Context{PriceChange: decimal.Zero, CVDSign: 1}
	sizes := []int64{60, 60, 60, 60, 59} // event_count=5, total=299
	for i, sz := range sizes {
		ctx.Now = int64(i) * 1000
		d.Ingest(buyAt100(sz), ctx)
	}
	// The fifth event emits nothing (no strength change), so the state is
	// read from the live accumulator rather than from the last emission.
	zones := d.LiveZones()
	require.Len(t, zones, 1)
	acc := zones[0]
	assert.Equal(t, model.StrengthMedium, acc.Strength)
	assert.Equal(t, int64(5), acc.EventCount)
	assert.Equal(t, int64(299), acc.TotalAbsorbed)
}

func TestPriceMoveDisqualifiesAbsorption(t *testing.T) {
	d := New("ESZ5", 0.25, DefaultMinSize, 5*60*1000)
	ctx := Context{PriceChange: decimal.NewFromInt(1), CVDSign: 1}
	_, emitted := d.Ingest(buyAt100(1000), ctx)
	assert.False(t, emitted, "price moved up; buy absorption does not apply")
}

func TestSmallTradeSizeIgnored(t *testing.T) {
	d := New("ESZ5", 0.25, DefaultMinSize, 5*60*1000)
	ctx := Context{PriceChange: decimal.Zero, CVDSign: 1}
	_, emitted := d.Ingest(buyAt100(5), ctx)
	assert.False(t, emitted)
}

func TestPruneExpiresIdleAccumulator(t *testing.T) {
	d := New("ESZ5", 0.25, DefaultMinSize, 1000)
	ctx := Context{PriceChange: decimal.Zero, CVDSign: 1, Now: 0}
	d.Ingest(buyAt100(100), ctx)
	require.Len(t, d.LiveZones(), 1)

	expired := d.Prune(5000)
	assert.Len(t, expired, 1)
	assert.Empty(t, d.LiveZones())
}

// Trades at slightly different raw prices within the same 0.25 tick must
// accumulate into one level, the way a continuous-price feed (e.g. a
// random-walk demo source) actually arrives.
func TestAccumulatorKeyedByQuantizedLevelNotRawPrice(t *testing.T) {
	d := New("ESZ5", 0.25, DefaultMinSize, 5*60*1000)
	ctx := Context{PriceChange: decimal.Zero, CVDSign: 1, Now: 0}

	prices := []string{"100.00", "100.03", "100.11", "100.24", "100.01"}
	var emissions []model.AbsorptionEvent
	for i, p := range prices {
		ctx.Now = int64(i) * 1000
		trade := model.Trade{Symbol: "ESZ5", Price: decimal.RequireFromString(p), Size: 100, Aggressor: model.SideBuy}
		evt, emitted := d.Ingest(trade, ctx)
		if emitted {
			emissions = append(emissions, evt)
		}
	}

	require.Len(t, d.LiveZones(), 1, "all five prices quantize to the same 100.00 level")
	require.Len(t, emissions, 2, "medium crossed at event 3, strong at event 5 of the shared level")
	assert.True(t, emissions[0].Accumulator.Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, model.StrengthMedium, emissions[0].Accumulator.Strength)
	assert.Equal(t, model.StrengthStrong, emissions[1].Accumulator.Strength)
}

func TestAgainstTrendTag(t *testing.T) {
	d := New("ESZ5", 0.25, DefaultMinSize, 5*60*1000)
	ctx := Context{PriceChange: decimal.Zero, CVDSign: -1, Now: 0}
	sizes := []int64{100, 100, 100}
	var last model.AbsorptionEvent
	for i, sz := range sizes {
		ctx.Now = int64(i)
		evt, emitted := d.Ingest(buyAt100(sz), ctx)
		if emitted {
			last = evt
		}
	}
	assert.True(t, last.AgainstTrend, "buying absorption while CVD is negative is against trend")
}
