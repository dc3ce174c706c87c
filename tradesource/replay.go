package tradesource

import (
	"context"
	"time"

	"orderflow-engine/model"
	"orderflow-engine/replay"
)

// fastForwardSpeed is the replay speed at or above which Next snaps the
// clock straight to the next trade's timestamp instead of waiting out
// Advance's wall-clock-scaled polling, so "unbounded" speed replay isn't
// bottlenecked on poll granularity.
const fastForwardSpeed = 1000

// ReplaySource releases historical trades, ordered by timestamp, once the
// replay clock reaches each trade's timestamp.
type ReplaySource struct {
	trades []model.Trade
	pos    int
	clock  *replay.Clock
	// pollInterval bounds how often Next re-checks the clock while
	// waiting for it to catch up; kept short so unbounded-speed replay
	// (speed=inf approximated by a very large speed) stays responsive.
	pollInterval time.Duration
}

// NewReplaySource builds a source over trades, which must already be
// sorted by Timestamp ascending.
func NewReplaySource(trades []model.Trade, clock *replay.Clock) *ReplaySource {
	return &ReplaySource{trades: trades, clock: clock, pollInterval: time.Millisecond}
}

func (r *ReplaySource) Next(ctx context.Context) (model.Trade, error) {
	if r.pos >= len(r.trades) {
		return model.Trade{}, ErrEnd
	}
	trade := r.trades[r.pos]

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for r.clock.NowMs() < trade.Timestamp {
		select {
		case <-ctx.Done():
			return model.Trade{}, ctx.Err()
		case <-ticker.C:
			status := r.clock.Advance()
			if status.Speed >= fastForwardSpeed {
				r.clock.SetVirtualMs(trade.Timestamp)
			}
		}
	}

	r.pos++
	return trade, nil
}

// Remaining reports how many trades have not yet been released.
func (r *ReplaySource) Remaining() int { return len(r.trades) - r.pos }
