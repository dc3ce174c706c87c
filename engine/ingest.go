package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderflow-engine/absorption"
	"orderflow-engine/aggregator"
	"orderflow-engine/broadcast"
	"orderflow-engine/confluence"
	"orderflow-engine/cvd"
	"orderflow-engine/imbalance"
	"orderflow-engine/metrics"
	"orderflow-engine/model"
	"orderflow-engine/session"
	"orderflow-engine/store"
	"orderflow-engine/tradesource"
	"orderflow-engine/volumeprofile"
)

// symbolPipeline is the single ingest task for one symbol: C1 -> C2 ->
// {C3, C4} -> {C5, C6} -> C7, with all state confined to this goroutine.
// It shares the hub, store, and session manager, and reaches the outcome
// tracker only through the outcome scheduler's channels; these are the
// only cross-task collaborators and are each either single-writer
// (Store), lock-free (the min-size gate), internally synchronized (Hub,
// Session Manager), or owned by one task (Outcome Tracker).
type symbolPipeline struct {
	symbol string
	tick   float64

	source tradesource.Source

	agg    *aggregator.Aggregator
	cvdTr  *cvd.Tracker
	vp     *volumeprofile.Profile
	absorb *absorption.Detector
	imb    *imbalance.Detector
	conf   *confluence.Engine

	minSize *int64Gate

	hub     *broadcast.Hub
	st      *store.Store
	sessMgr *session.Manager

	priceUpdates chan<- pricePoint
	scheduleCh   chan<- scheduleMsg

	significantImbalance float64
	priceAtBucketOpen    decimal.Decimal
}

func (p *symbolPipeline) run(ctx context.Context) {
	for {
		trade, err := p.source.Next(ctx)
		if err != nil {
			if err == context.Canceled || ctx.Err() != nil || err == tradesource.ErrEnd {
				p.drain()
				return
			}
			if fatal, ok := err.(*tradesource.SourceFatal); ok {
				log.Printf("🛑 fatal source error for %s: %v", p.symbol, fatal)
				p.drain()
				return
			}
			continue
		}

		if trade.Size < p.minSize.Get() {
			continue
		}
		if !validTrade(trade) {
			metrics.MalformedTrades.Inc()
			continue
		}

		p.ingest(trade)
	}
}

func validTrade(t model.Trade) bool {
	return t.Symbol != "" && t.Size > 0 && t.Timestamp > 0 && !t.Price.IsNegative()
}

// ingest runs one trade through the whole C2-C7 chain.
func (p *symbolPipeline) ingest(trade model.Trade) {
	p.sessMgr.RecordTrade(trade.Price, trade.Size)
	p.priceUpdates <- pricePoint{symbol: p.symbol, atMs: trade.Timestamp, price: trade.Price}

	priceChange := decimal.Zero
	if p.agg.IsOpen() {
		priceChange = trade.Price.Sub(p.priceAtBucketOpen)
	} else {
		p.priceAtBucketOpen = trade.Price
	}

	p.vp.Ingest(trade)

	cvdSign := 0
	switch {
	case p.cvdTr.Value() > 0:
		cvdSign = 1
	case p.cvdTr.Value() < 0:
		cvdSign = -1
	}

	absCtx := absorption.Context{
		PriceChange: priceChange,
		CVDSign:     cvdSign,
		Now:         trade.Timestamp,
		AtKeyLevel:  p.atKeyLevel,
	}
	if evt, ok := p.absorb.Ingest(trade, absCtx); ok {
		p.hub.Publish(broadcast.AbsorptionEnvelope(evt))
		p.emitSignal(model.SignalAbsorption, absorptionDirection(evt), trade.Price, trade.Timestamp)
	}

	if rolled, emitted := p.agg.Ingest(trade); emitted {
		p.onAggregateClosed(rolled)
	}
}

func absorptionDirection(evt model.AbsorptionEvent) model.Direction {
	if evt.Accumulator.Type == model.SideBuy {
		return model.DirectionBullish
	}
	return model.DirectionBearish
}

func (p *symbolPipeline) atKeyLevel(price decimal.Decimal) bool {
	snap := p.vp.Snapshot(0, price)
	tickDelta := decimal.NewFromFloat(p.tick)
	near := func(a decimal.Decimal) bool {
		return a.Sub(price).Abs().LessThanOrEqual(tickDelta)
	}
	return near(snap.POC) || near(snap.VAH) || near(snap.VAL)
}

// onAggregateClosed fires once a 1-second bucket rolls over: the bucket
// summary, CVD update, volume-profile snapshot, absorption pruning, and
// stacked-imbalance scan all run off the closed bucket, in that order.
func (p *symbolPipeline) onAggregateClosed(agg model.Aggregate) {
	p.hub.Publish(broadcast.BubbleEnvelope(agg, p.significantImbalance))
	p.priceAtBucketOpen = agg.LastPrice

	point, direction, flipped := p.cvdTr.Update(agg)
	p.hub.Publish(broadcast.CVDPointEnvelope(point))
	if flipped {
		p.hub.Publish(broadcast.DeltaFlipEnvelope(p.symbol, agg.BucketStart, direction, point.Value))
		p.emitSignal(model.SignalDeltaFlip, direction, agg.LastPrice, agg.BucketStart)
	}

	vpSnap := p.vp.Snapshot(agg.BucketStart, agg.LastPrice)
	p.hub.Publish(broadcast.VolumeProfileEnvelope(vpSnap))

	p.absorb.Prune(agg.BucketStart)
	p.hub.Publish(broadcast.AbsorptionZonesEnvelope(p.symbol, p.absorb.LiveZones()))

	for _, imbEvt := range p.imb.Scan(vpSnap.Levels, agg.BucketStart) {
		p.hub.Publish(broadcast.StackedImbalanceEnvelope(imbEvt))
		dir := model.DirectionBullish
		if imbEvt.Side == model.SideSell {
			dir = model.DirectionBearish
		}
		p.emitSignal(model.SignalStackedImbalance, dir, agg.LastPrice, agg.BucketStart)
	}
}

// emitSignal persists a freshly detected signal, schedules its outcome
// evaluation, and feeds it to the confluence engine, which may in turn
// emit a second, higher-order signal whose envelope is broadcast here.
// The detector-specific envelope of the first signal is published by the
// caller.
func (p *symbolPipeline) emitSignal(t model.SignalType, direction model.Direction, price decimal.Decimal, timestamp int64) {
	sig := p.newSignal(t, direction, price, timestamp)
	p.recordAndPublishSignal(sig)

	if confEvt, ok := p.conf.Record(t, direction, price, timestamp); ok {
		p.hub.Publish(broadcast.ConfluenceEnvelope(confEvt))
		confSig := p.newSignal(model.SignalConfluence, confEvt.Direction, confEvt.Price, confEvt.Timestamp)
		p.recordAndPublishSignal(confSig)
	}
}

func (p *symbolPipeline) newSignal(t model.SignalType, direction model.Direction, price decimal.Decimal, timestamp int64) model.Signal {
	return model.Signal{
		ID:          uuid.New(),
		SessionID:   p.sessMgr.ID(),
		CreatedAt:   time.Now().UTC(),
		Symbol:      p.symbol,
		Timestamp:   timestamp,
		Type:        t,
		Direction:   direction,
		PriceAtEmit: price,
		Outcome:     model.OutcomePending,
	}
}

func (p *symbolPipeline) recordAndPublishSignal(sig model.Signal) {
	p.sessMgr.RecordSignal(sig)
	p.st.EnqueueSignal(sig)
	p.scheduleCh <- scheduleMsg{sig: sig, tick: p.tick}
	metrics.SignalsEmitted.WithLabelValues(string(sig.Type)).Inc()
}

// drain flushes the currently open bucket once, at source exhaustion or
// cancellation, so the last partial second is not silently lost.
func (p *symbolPipeline) drain() {
	if agg, ok := p.agg.Flush(); ok {
		p.onAggregateClosed(agg)
	}
}
