package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"orderflow-engine/broadcast"
	"orderflow-engine/model"
	"orderflow-engine/outcome"
	"orderflow-engine/session"
	"orderflow-engine/store"
)

func newTestScheduler(t *testing.T) (*outcomeScheduler, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sessMgr := session.Open(model.ModeDemo, []string{"ESZ5"})
	hub := broadcast.New(16, nil)
	tracker := outcome.New(60*1000, 300*1000, 4)
	return newOutcomeScheduler(tracker, hub, st, sessMgr), st
}

func TestSchedulerResolvesOutcomeOnPriceArrival(t *testing.T) {
	sched, st := newTestScheduler(t)
	go sched.run()
	t.Cleanup(sched.stop)

	sig := model.Signal{
		ID:          uuid.New(),
		SessionID:   uuid.New(),
		Symbol:      "ESZ5",
		Timestamp:   0,
		Type:        model.SignalDeltaFlip,
		Direction:   model.DirectionBullish,
		PriceAtEmit: decimal.NewFromInt(100),
		Outcome:     model.OutcomePending,
	}
	sched.schedule <- scheduleMsg{sig: sig, tick: 0.25}
	sched.prices <- pricePoint{symbol: "ESZ5", atMs: 60 * 1000, price: decimal.NewFromInt(101)}
	sched.prices <- pricePoint{symbol: "ESZ5", atMs: 300 * 1000, price: decimal.NewFromInt(102)}

	require.Eventually(t, func() bool {
		require.NoError(t, st.Flush(context.Background()))
		signals, err := st.QuerySignals(store.Filter{})
		require.NoError(t, err)
		for _, s := range signals {
			if s.ID == sig.ID && s.Outcome != model.OutcomePending {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSchedulerEndSessionResolvesPendingForever(t *testing.T) {
	sched, st := newTestScheduler(t)

	sig := model.Signal{
		ID:          uuid.New(),
		SessionID:   uuid.New(),
		Symbol:      "ESZ5",
		Timestamp:   0,
		Type:        model.SignalAbsorption,
		Direction:   model.DirectionBearish,
		PriceAtEmit: decimal.NewFromInt(100),
		Outcome:     model.OutcomePending,
	}

	done := make(chan struct{})
	go func() {
		sched.run()
		close(done)
	}()

	sched.schedule <- scheduleMsg{sig: sig, tick: 0.25}
	time.Sleep(20 * time.Millisecond)
	sched.stop()
	<-done

	// No price ever reached the marks, so EndSession finalizes the signal
	// with its outcome still pending.
	require.Eventually(t, func() bool {
		require.NoError(t, st.Flush(context.Background()))
		signals, err := st.QuerySignals(store.Filter{})
		require.NoError(t, err)
		for _, s := range signals {
			if s.ID == sig.ID {
				return s.Outcome == model.OutcomePending
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}
