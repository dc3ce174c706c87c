package engine

import (
	"github.com/shopspring/decimal"

	"orderflow-engine/broadcast"
	"orderflow-engine/model"
	"orderflow-engine/outcome"
	"orderflow-engine/session"
	"orderflow-engine/store"
)

// pricePoint is one observed trade price fed to the outcome scheduler so
// it can fill due 1m/5m marks.
type pricePoint struct {
	symbol string
	atMs   int64
	price  decimal.Decimal
}

// scheduleMsg registers a freshly emitted signal for deferred evaluation.
type scheduleMsg struct {
	sig  model.Signal
	tick float64
}

// outcomeScheduler is the single task permitted to call outcome.Tracker's
// methods, per the tracker's own single-owner contract. Every symbol
// pipeline feeds it through buffered channels instead of touching the
// tracker directly.
type outcomeScheduler struct {
	tracker *outcome.Tracker
	hub     *broadcast.Hub
	st      *store.Store
	sessMgr *session.Manager

	schedule chan scheduleMsg
	prices   chan pricePoint
	done     chan struct{}
}

func newOutcomeScheduler(tracker *outcome.Tracker, hub *broadcast.Hub, st *store.Store, sessMgr *session.Manager) *outcomeScheduler {
	return &outcomeScheduler{
		tracker:  tracker,
		hub:      hub,
		st:       st,
		sessMgr:  sessMgr,
		schedule: make(chan scheduleMsg, 4096),
		prices:   make(chan pricePoint, 16384),
		done:     make(chan struct{}),
	}
}

func (o *outcomeScheduler) run() {
	for {
		select {
		case msg := <-o.schedule:
			sig := msg.sig
			o.tracker.Schedule(&sig, msg.tick)
		case p := <-o.prices:
			for _, sig := range o.tracker.OnPrice(p.symbol, p.atMs, p.price) {
				o.finalize(*sig)
			}
		case <-o.done:
			for _, sig := range o.tracker.EndSession() {
				o.finalize(*sig)
			}
			return
		}
	}
}

func (o *outcomeScheduler) finalize(sig model.Signal) {
	move1m, move5m := 0.0, 0.0
	if sig.PriceAfter1m != nil {
		move1m, _ = sig.PriceAfter1m.Sub(sig.PriceAtEmit).Float64()
	}
	if sig.PriceAfter5m != nil {
		move5m, _ = sig.PriceAfter5m.Sub(sig.PriceAtEmit).Float64()
	}
	o.sessMgr.RecordOutcome(sig, move1m, move5m)
	o.st.EnqueueSignal(sig)
}

func (o *outcomeScheduler) stop() { close(o.done) }
