// Package engine wires C1-C12 into the running pipeline: one ingest task
// per symbol, a single outcome scheduler, the broadcast hub, the store,
// and the session manager, with a WaitGroup-tracked graceful shutdown.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"orderflow-engine/absorption"
	"orderflow-engine/aggregator"
	"orderflow-engine/broadcast"
	"orderflow-engine/cache"
	"orderflow-engine/confluence"
	"orderflow-engine/config"
	"orderflow-engine/cvd"
	"orderflow-engine/imbalance"
	"orderflow-engine/model"
	"orderflow-engine/outcome"
	"orderflow-engine/replay"
	"orderflow-engine/session"
	"orderflow-engine/store"
	"orderflow-engine/tradesource"
	"orderflow-engine/volumeprofile"
)

// Engine owns every long-lived component of one trading session and the
// goroutines that drive them.
type Engine struct {
	cfg   *config.Config
	ticks *config.TickTable

	Hub     *broadcast.Hub
	Store   *store.Store
	Session *session.Manager
	Clock   *replay.Clock
	Cache   *cache.Cache

	minSize   *int64Gate
	scheduler *outcomeScheduler

	replayTrades map[string][]model.Trade

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Engine for cfg. replayTrades is only consulted when
// cfg.Demo is false and the caller wants historical replay instead of the
// live vendor feed; pass nil for live or demo mode.
func New(cfg *config.Config, ticks *config.TickTable, replayTrades map[string][]model.Trade) *Engine {
	return &Engine{cfg: cfg, ticks: ticks, replayTrades: replayTrades}
}

// Start opens the store, builds the session and pipelines, and launches
// every goroutine. It returns once everything is running; Stop reverses
// it.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	st, err := store.Open(e.cfg.DBPath, e.cfg.Thresholds.StoreBacklogSize)
	if err != nil {
		return fmt.Errorf("engine: Start: open store: %w", err)
	}
	e.Store = st
	e.Cache = cache.New(e.cfg.RedisAddr)

	mode := model.ModeDemo
	switch {
	case !e.cfg.Demo && e.replayTrades != nil:
		mode = model.ModeReplay
	case !e.cfg.Demo:
		mode = model.ModeLive
	}
	e.Session = session.Open(mode, e.cfg.Symbols)

	e.minSize = newInt64Gate(e.cfg.MinSize)
	if mode == model.ModeReplay {
		e.Clock = replay.NewReplayClock(0)
		e.Clock.Resume()
	} else {
		e.Clock = replay.NewLiveClock()
	}

	e.Hub = broadcast.New(e.cfg.Thresholds.SubscriberBufferSize, &commandRouter{clock: e.Clock, minSize: e.minSize})

	outTr := outcome.New(e.cfg.Thresholds.OutcomeMark1m, e.cfg.Thresholds.OutcomeMark5m, e.cfg.Thresholds.OutcomeWinTicks)
	e.scheduler = newOutcomeScheduler(outTr, e.Hub, e.Store, e.Session)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.scheduler.run()
	}()

	for _, symbol := range e.cfg.Symbols {
		pipeline, err := e.buildPipeline(runCtx, symbol, mode)
		if err != nil {
			cancel()
			return fmt.Errorf("engine: Start: build pipeline for %s: %w", symbol, err)
		}
		e.wg.Add(1)
		go func(p *symbolPipeline) {
			defer e.wg.Done()
			p.run(runCtx)
		}(pipeline)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runPeriodicBroadcasts(runCtx, mode)
	}()

	log.Printf("🚀 engine started: mode=%s symbols=%v port=%d", mode, e.cfg.Symbols, e.cfg.Port)
	return nil
}

func (e *Engine) buildPipeline(ctx context.Context, symbol string, mode model.SessionMode) (*symbolPipeline, error) {
	tick := e.ticks.TickFor(symbol)

	var source tradesource.Source
	switch mode {
	case model.ModeDemo:
		source = tradesource.NewDemoSource(symbol, int64(len(symbol))+time.Now().UnixNano())
	case model.ModeReplay:
		source = tradesource.NewReplaySource(e.replayTrades[symbol], e.Clock)
	case model.ModeLive:
		live := tradesource.NewLiveSource(e.cfg.LiveURL, e.cfg.APIKey)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := live.Run(ctx); err != nil {
				log.Printf("🛑 live trade source for %s exited: %v", symbol, err)
			}
		}()
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			live.RunHealthMonitor(ctx)
		}()
		source = live
	default:
		return nil, fmt.Errorf("unknown session mode %q", mode)
	}

	th := e.cfg.Thresholds
	return &symbolPipeline{
		symbol:               symbol,
		tick:                 tick,
		source:               source,
		agg:                  aggregator.New(symbol),
		cvdTr:                cvd.New(symbol, th.ZeroCrossMinAbsCVD),
		vp:                   volumeprofile.New(symbol, tick),
		absorb:               absorption.New(symbol, tick, th.AbsorptionMinSize, th.AbsorptionIdleLimit),
		imb:                  imbalance.New(symbol, th.StackedImbalanceRatio, th.StackedImbalanceRun),
		conf:                 confluence.New(symbol, th.ConfluenceWindowMs),
		minSize:              e.minSize,
		hub:                  e.Hub,
		st:                   e.Store,
		sessMgr:              e.Session,
		priceUpdates:         e.scheduler.prices,
		scheduleCh:           e.scheduler.schedule,
		significantImbalance: th.SignificantImbalance,
	}, nil
}

// runPeriodicBroadcasts emits SessionStats every second, and ReplayStatus
// every second in replay mode, reading time from the engine's clock so
// replay sessions stay fully deterministic.
func (e *Engine) runPeriodicBroadcasts(ctx context.Context, mode model.SessionMode) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := e.Clock.Advance()
			e.Hub.Publish(broadcast.SessionStatsEnvelope(e.Session.Snapshot(now.Timestamp)))
			if mode == model.ModeReplay {
				e.Hub.Publish(broadcast.ReplayStatusEnvelope(now.Running, now.Speed, now.VirtualMs))
			}
		}
	}
}

// Stop cancels every ingest task, drains the outcome scheduler (marking
// any still-open signal pending-forever), persists the closed session,
// and flushes the store before closing it.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	e.scheduler.stop()
	e.wg.Wait()

	final := e.Session.Close()
	e.Store.EnqueueSession(final)

	if err := e.Store.Flush(ctx); err != nil {
		log.Printf("⚠️ engine: Stop: flush store: %v", err)
	}
	if err := e.Store.Close(); err != nil {
		return fmt.Errorf("engine: Stop: close store: %w", err)
	}
	_ = e.Cache.Close()
	log.Printf("🏁 engine stopped: session=%s signals dropped=%d", final.ID, e.Store.DroppedWrites())
	return nil
}
