// Package replay implements the virtual clock (C12) that every timer in
// the pipeline reads through, so that replay mode is fully deterministic
// given identical input.
package replay

import (
	"sync"
	"time"
)

// Status is a snapshot of the replay controller's state, broadcast on
// every change and once per second.
type Status struct {
	Running   bool
	Speed     float64
	VirtualMs int64
	Timestamp int64
}

// Clock is the single source of time for C3, C8 and C12 itself. In live
// and demo mode it tracks wall-clock. In replay mode it advances by
// real_delta * speed while running, 0 while paused.
type Clock struct {
	mu        sync.Mutex
	virtualMs int64
	speed     float64
	running   bool
	live      bool // true: NowMs() tracks wall clock directly, ignoring virtualMs bookkeeping
	lastTick  time.Time
	onChange  func(Status)
}

// NewLiveClock returns a clock that always reports wall-clock time, used
// for live and demo sessions.
func NewLiveClock() *Clock {
	return &Clock{live: true, running: true, speed: 1}
}

// NewReplayClock returns a paused virtual clock starting at startMs.
func NewReplayClock(startMs int64) *Clock {
	return &Clock{virtualMs: startMs, speed: 1, lastTick: time.Now()}
}

// OnChange registers a callback invoked (holding no lock) whenever the
// clock's running/speed state changes, or on ticks driven by Advance.
func (c *Clock) OnChange(fn func(Status)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// NowMs returns the current time, in milliseconds, as this clock sees it.
func (c *Clock) NowMs() int64 {
	if c.live {
		return time.Now().UnixMilli()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.virtualMs
}

// Advance moves the virtual clock forward by the wall-clock delta since
// the previous call, scaled by speed, when running. Live clocks ignore
// this entirely. Returns the resulting status.
func (c *Clock) Advance() Status {
	if c.live {
		return Status{Running: true, Speed: 1, VirtualMs: time.Now().UnixMilli(), Timestamp: time.Now().UnixMilli()}
	}
	c.mu.Lock()
	now := time.Now()
	if c.running {
		delta := now.Sub(c.lastTick)
		c.virtualMs += int64(float64(delta.Milliseconds()) * c.speed)
	}
	c.lastTick = now
	st := Status{Running: c.running, Speed: c.speed, VirtualMs: c.virtualMs, Timestamp: now.UnixMilli()}
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb(st)
	}
	return st
}

// Pause stops the virtual clock from advancing.
func (c *Clock) Pause() Status { return c.setRunning(false) }

// Resume restarts the virtual clock.
func (c *Clock) Resume() Status { return c.setRunning(true) }

func (c *Clock) setRunning(running bool) Status {
	c.mu.Lock()
	if running && !c.running {
		c.lastTick = time.Now()
	}
	c.running = running
	st := Status{Running: c.running, Speed: c.speed, VirtualMs: c.virtualMs, Timestamp: time.Now().UnixMilli()}
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb(st)
	}
	return st
}

// SetSpeed changes the replay multiplier. speed<=0 is clamped to a small
// positive value to avoid the clock freezing silently.
func (c *Clock) SetSpeed(speed float64) Status {
	if speed <= 0 {
		speed = 0.01
	}
	c.mu.Lock()
	c.lastTick = time.Now()
	c.speed = speed
	st := Status{Running: c.running, Speed: c.speed, VirtualMs: c.virtualMs, Timestamp: time.Now().UnixMilli()}
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb(st)
	}
	return st
}

// SetVirtualMs force-sets the virtual clock, used by ReplaySource to jump
// to the next trade's timestamp when running at unbounded speed.
func (c *Clock) SetVirtualMs(ms int64) {
	if c.live {
		return
	}
	c.mu.Lock()
	if ms > c.virtualMs {
		c.virtualMs = ms
	}
	c.lastTick = time.Now()
	c.mu.Unlock()
}

// IsLive reports whether this clock tracks wall-clock time unconditionally.
func (c *Clock) IsLive() bool { return c.live }
