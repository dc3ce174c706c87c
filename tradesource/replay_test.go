package tradesource

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-engine/model"
	"orderflow-engine/replay"
)

func TestReplaySourceReleasesInOrder(t *testing.T) {
	trades := []model.Trade{
		{TradeID: "1", Symbol: "ESZ5", Timestamp: 0, Price: decimal.NewFromInt(100), Size: 1, Aggressor: model.SideBuy},
		{TradeID: "2", Symbol: "ESZ5", Timestamp: 500, Price: decimal.NewFromInt(100), Size: 1, Aggressor: model.SideSell},
		{TradeID: "3", Symbol: "ESZ5", Timestamp: 1200, Price: decimal.NewFromInt(101), Size: 1, Aggressor: model.SideBuy},
	}
	clock := replay.NewReplayClock(0)
	clock.SetSpeed(1e9)
	clock.Resume()
	src := NewReplaySource(trades, clock)

	ctx := context.Background()
	for i, want := range trades {
		got, err := src.Next(ctx)
		require.NoError(t, err, "trade %d", i)
		assert.Equal(t, want.TradeID, got.TradeID)
	}
	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, ErrEnd)
}

// At unbounded speed Next snaps the clock exactly to each trade's
// timestamp rather than letting Advance's wall-clock scaling overshoot it.
func TestReplaySourceFastForwardSnapsToExactTimestamp(t *testing.T) {
	trades := []model.Trade{
		{TradeID: "1", Symbol: "ESZ5", Timestamp: 60_000, Price: decimal.NewFromInt(100), Size: 1, Aggressor: model.SideBuy},
	}
	clock := replay.NewReplayClock(0)
	clock.SetSpeed(fastForwardSpeed)
	clock.Resume()
	src := NewReplaySource(trades, clock)

	got, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", got.TradeID)
	assert.Equal(t, int64(60_000), clock.NowMs())
}
