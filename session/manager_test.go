package session

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-engine/model"
)

func TestSessionHighLowTracking(t *testing.T) {
	m := Open(model.ModeDemo, []string{"ESZ5"})
	m.RecordTrade(decimal.NewFromInt(100), 5)
	m.RecordTrade(decimal.NewFromInt(105), 5)
	m.RecordTrade(decimal.NewFromInt(95), 5)

	snap := m.Snapshot(0)
	assert.True(t, snap.SessionHigh.Equal(decimal.NewFromInt(105)))
	assert.True(t, snap.SessionLow.Equal(decimal.NewFromInt(95)))
	assert.Equal(t, int64(15), snap.TotalVolume)
}

func TestSignalAndOutcomeCounters(t *testing.T) {
	m := Open(model.ModeDemo, []string{"ESZ5"})
	sig := model.Signal{Type: model.SignalDeltaFlip, Direction: model.DirectionBullish}
	m.RecordSignal(sig)

	sig.Outcome = model.OutcomeWin
	m.RecordOutcome(sig, 1.0, 2.0)

	snap := m.Snapshot(0)
	require.Len(t, snap.ByType, 1)
	assert.Equal(t, int64(1), snap.ByType[0].Count)
	assert.Equal(t, int64(1), snap.ByType[0].Bullish)
	assert.Equal(t, int64(1), snap.ByType[0].Wins)
	assert.Equal(t, 100.0, snap.ByType[0].WinRate)
}

// Breakeven outcomes don't count toward wins/losses (and so leave WinRate
// unchanged), but they still contribute a sample to the move averages.
func TestBreakevenOutcomeCountsTowardMoveAverageNotWinRate(t *testing.T) {
	m := Open(model.ModeDemo, []string{"ESZ5"})
	sig := model.Signal{Type: model.SignalDeltaFlip, Direction: model.DirectionBullish}

	sig.Outcome = model.OutcomeWin
	m.RecordOutcome(sig, 2.0, 4.0)

	sig.Outcome = model.OutcomeBreakeven
	m.RecordOutcome(sig, 0.0, 0.0)

	snap := m.Snapshot(0)
	require.Len(t, snap.ByType, 1)
	ts := snap.ByType[0]
	assert.Equal(t, int64(1), ts.Wins)
	assert.Equal(t, int64(1), ts.Breakeven)
	assert.Equal(t, 100.0, ts.WinRate, "breakeven doesn't count as a loss")
	assert.InDelta(t, 1.0, ts.AvgMove1m, 1e-9, "average of 2.0 and 0.0 across two terminal samples")
	assert.InDelta(t, 2.0, ts.AvgMove5m, 1e-9, "average of 4.0 and 0.0 across two terminal samples")
}

func TestCloseSetsEndedAt(t *testing.T) {
	m := Open(model.ModeLive, []string{"ESZ5"})
	sess := m.Close()
	assert.NotNil(t, sess.EndedAt)
}
