package engine

import "sync/atomic"

// int64Gate is a lock-free minimum-trade-size filter shared between the
// broadcast hub's command router and every symbol's ingest task, updated
// live by the set_min_size command.
type int64Gate struct {
	v atomic.Int64
}

func newInt64Gate(initial int64) *int64Gate {
	g := &int64Gate{}
	g.v.Store(initial)
	return g
}

func (g *int64Gate) Set(v int64) { g.v.Store(v) }
func (g *int64Gate) Get() int64  { return g.v.Load() }
