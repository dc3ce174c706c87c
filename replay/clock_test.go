package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayClockPausedDoesNotAdvance(t *testing.T) {
	c := NewReplayClock(1000)
	c.Pause()
	st := c.Advance()
	time.Sleep(5 * time.Millisecond)
	st2 := c.Advance()
	require.False(t, st.Running)
	assert.Equal(t, st.VirtualMs, st2.VirtualMs)
}

func TestReplayClockAdvancesWhileRunning(t *testing.T) {
	c := NewReplayClock(0)
	c.Resume()
	time.Sleep(10 * time.Millisecond)
	st := c.Advance()
	assert.True(t, st.VirtualMs > 0)
}

func TestReplayClockSetVirtualMsMonotone(t *testing.T) {
	c := NewReplayClock(100)
	c.SetVirtualMs(50)
	assert.Equal(t, int64(100), c.NowMs())
	c.SetVirtualMs(500)
	assert.Equal(t, int64(500), c.NowMs())
}

func TestLiveClockTracksWallClock(t *testing.T) {
	c := NewLiveClock()
	before := time.Now().UnixMilli()
	now := c.NowMs()
	assert.True(t, now >= before)
}

func TestOnChangeCallbackFires(t *testing.T) {
	c := NewReplayClock(0)
	var got Status
	c.OnChange(func(s Status) { got = s })
	c.Resume()
	assert.True(t, got.Running)
	c.SetSpeed(2)
	assert.Equal(t, 2.0, got.Speed)
}
