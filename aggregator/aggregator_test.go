package aggregator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-engine/model"
)

func trade(ts int64, price int64, size int64, side model.Side) model.Trade {
	return model.Trade{Symbol: "ESZ5", Timestamp: ts, Price: decimal.NewFromInt(price), Size: size, Aggressor: side}
}

// Bucket rollover on the first trade past the second boundary.
func TestScenarioOneBucketRollover(t *testing.T) {
	a := New("ESZ5")

	agg, emitted := a.Ingest(trade(0, 100, 10, model.SideBuy))
	require.False(t, emitted)

	agg, emitted = a.Ingest(trade(500, 100, 20, model.SideSell))
	require.False(t, emitted)

	agg, emitted = a.Ingest(trade(1200, 101, 5, model.SideBuy))
	require.True(t, emitted)
	assert.Equal(t, int64(10), agg.BuyVolume)
	assert.Equal(t, int64(20), agg.SellVolume)
	assert.Equal(t, int64(-10), agg.Delta())
	assert.Equal(t, model.SideSell, agg.DominantSide())

	final, ok := a.Flush()
	require.True(t, ok)
	assert.Equal(t, int64(5), final.BuyVolume)
	assert.Equal(t, int64(0), final.SellVolume)
	assert.Equal(t, int64(5), final.Delta())
}

func TestEmptyBucketProducesNoAggregate(t *testing.T) {
	a := New("ESZ5")
	agg, ok := a.Flush()
	assert.False(t, ok)
	assert.Equal(t, model.Aggregate{}, agg)
}

func TestTradeOnBucketBoundaryBelongsToLaterBucket(t *testing.T) {
	a := New("ESZ5")
	a.Ingest(trade(999, 100, 1, model.SideBuy))
	_, emitted := a.Ingest(trade(1000, 100, 1, model.SideBuy))
	assert.True(t, emitted, "trade exactly on the bucket boundary should close the previous bucket")
}

func TestDeltaAndDominantSideInvariant(t *testing.T) {
	a := New("ESZ5")
	a.Ingest(trade(0, 100, 7, model.SideBuy))
	a.Ingest(trade(100, 100, 7, model.SideSell))
	agg, _ := a.Flush()
	assert.Equal(t, agg.BuyVolume-agg.SellVolume, agg.Delta())
	assert.Equal(t, model.SideBuy, agg.DominantSide()) // tie -> buy
}
