package engine

import "orderflow-engine/replay"

// commandRouter implements broadcast.CommandRouter, dispatching inbound
// subscriber commands to the replay clock and the shared minimum-trade-
// size filter.
type commandRouter struct {
	clock   *replay.Clock
	minSize *int64Gate
}

func (r *commandRouter) Pause()               { r.clock.Pause() }
func (r *commandRouter) Resume()              { r.clock.Resume() }
func (r *commandRouter) SetSpeed(speed float64) { r.clock.SetSpeed(speed) }
func (r *commandRouter) SetMinSize(size int64)  { r.minSize.Set(size) }
