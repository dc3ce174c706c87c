package imbalance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-engine/model"
)

func level(price, buy, sell int64) model.PriceLevel {
	return model.PriceLevel{Price: decimal.NewFromInt(price), BuyVolume: buy, SellVolume: sell}
}

// levels {100:(10,0), 101:(9,1), 102:(8,1), 103:(0,0)} -> bullish stacked
// imbalance of length 3 over [100..102].
func TestScenarioFourStackedImbalance(t *testing.T) {
	d := New("ESZ5", 0.67, 3)
	levels := []model.PriceLevel{
		level(100, 10, 0),
		level(101, 9, 1),
		level(102, 8, 1),
		level(103, 0, 0),
	}
	events := d.Scan(levels, 0)
	require.Len(t, events, 1)
	assert.Equal(t, model.SideBuy, events[0].Side)
	assert.Equal(t, 3, events[0].LevelCount)
	assert.True(t, events[0].PriceLow.Equal(decimal.NewFromInt(100)))
	assert.True(t, events[0].PriceHigh.Equal(decimal.NewFromInt(102)))
}

func TestEmitsOnlyWhenRunGrows(t *testing.T) {
	d := New("ESZ5", 0.67, 3)
	levels := []model.PriceLevel{level(100, 10, 0), level(101, 10, 0), level(102, 10, 0)}
	events := d.Scan(levels, 0)
	require.Len(t, events, 1)

	// Re-scanning the same run must not re-emit.
	events = d.Scan(levels, 1)
	assert.Empty(t, events)

	// Growing the run to 4 levels re-emits.
	levels = append(levels, level(103, 10, 0))
	events = d.Scan(levels, 2)
	require.Len(t, events, 1)
	assert.Equal(t, 4, events[0].LevelCount)
}

func TestRunBreaksResetsState(t *testing.T) {
	d := New("ESZ5", 0.67, 3)
	levels := []model.PriceLevel{level(100, 10, 0), level(101, 10, 0), level(102, 10, 0)}
	d.Scan(levels, 0)

	balanced := []model.PriceLevel{level(100, 5, 5), level(101, 5, 5), level(102, 5, 5)}
	events := d.Scan(balanced, 1)
	assert.Empty(t, events)

	events = d.Scan(levels, 2)
	require.Len(t, events, 1, "run reappearing after breaking should re-emit from scratch")
}

func TestRunBelowMinimumDoesNotEmit(t *testing.T) {
	d := New("ESZ5", 0.67, 3)
	levels := []model.PriceLevel{level(100, 10, 0), level(101, 10, 0)}
	events := d.Scan(levels, 0)
	assert.Empty(t, events)
}

// Stacked-imbalance maximality: if a run of length L is emitted, no
// overlapping shorter run is emitted until it breaks.
func TestMaximalityProperty(t *testing.T) {
	d := New("ESZ5", 0.67, 3)
	levels := []model.PriceLevel{level(100, 10, 0), level(101, 10, 0), level(102, 10, 0), level(103, 10, 0), level(104, 10, 0)}
	events := d.Scan(levels, 0)
	require.Len(t, events, 1)
	assert.Equal(t, 5, events[0].LevelCount, "the run found must be the maximal one, not a length-3 prefix")
}
