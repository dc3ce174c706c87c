package broadcast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	paused  bool
	resumed bool
	speed   float64
	minSize int64
}

func (f *fakeRouter) Pause()              { f.paused = true }
func (f *fakeRouter) Resume()             { f.resumed = true }
func (f *fakeRouter) SetSpeed(s float64)  { f.speed = s }
func (f *fakeRouter) SetMinSize(sz int64) { f.minSize = sz }

// Two subscribers A (fast) and B (blocked). Emit 2000 aggregates. A
// receives all 2000 in order; B's buffer of 1024 overflows; B's drop
// counter >= 976.
func TestScenarioSixBackpressure(t *testing.T) {
	h := New(1024, nil)
	a := h.Subscribe("A")
	b := h.Subscribe("B")

	// A is the fast subscriber: it drains each message inline as it is
	// published. B never drains.
	for i := 0; i < 2000; i++ {
		h.Publish(Envelope{Type: TypeBubble, Payload: i})
		env := <-a.Buffer
		assert.Equal(t, i, env.Payload.(int))
	}

	assert.Equal(t, int64(0), a.DropCount)
	assert.GreaterOrEqual(t, b.DropCount, int64(976))
	assert.LessOrEqual(t, len(b.Buffer), 1024)
}

func TestFastSubscriberReceivesAllInOrder(t *testing.T) {
	h := New(4096, nil)
	a := h.Subscribe("A")

	var wg sync.WaitGroup
	received := make([]int, 0, 2000)
	var mu sync.Mutex
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			env := <-a.Buffer
			mu.Lock()
			received = append(received, env.Payload.(int))
			mu.Unlock()
		}
	}()

	for i := 0; i < 2000; i++ {
		h.Publish(Envelope{Type: TypeBubble, Payload: i})
	}
	wg.Wait()

	require.Len(t, received, 2000)
	for i, v := range received {
		assert.Equal(t, i, v)
	}
}

func TestUnsubscribeHasNoEffectOnOthers(t *testing.T) {
	h := New(16, nil)
	a := h.Subscribe("A")
	b := h.Subscribe("B")
	h.Unsubscribe("A")

	h.Publish(Envelope{Type: TypeBubble, Payload: 1})
	assert.Len(t, a.Buffer, 0)
	assert.Len(t, b.Buffer, 1)
	assert.Equal(t, 1, h.SubscriberCount())
}

func TestSendTargetsSingleSubscriber(t *testing.T) {
	h := New(16, nil)
	a := h.Subscribe("A")
	b := h.Subscribe("B")

	ok := h.Send("A", Envelope{Type: TypeError, Payload: "boom"})
	assert.True(t, ok)
	assert.Len(t, a.Buffer, 1)
	assert.Len(t, b.Buffer, 0)
}

func TestSendToUnknownSubscriberReturnsFalse(t *testing.T) {
	h := New(16, nil)
	assert.False(t, h.Send("ghost", Envelope{Type: TypeError}))
}

func TestHandleCommandRoutesToRouter(t *testing.T) {
	r := &fakeRouter{}
	h := New(16, r)

	_, isErr := h.HandleCommand(ClientCommand{Action: "replay_pause"})
	assert.False(t, isErr)
	assert.True(t, r.paused)

	speed := 2.0
	_, isErr = h.HandleCommand(ClientCommand{Action: "set_replay_speed", Speed: &speed})
	assert.False(t, isErr)
	assert.Equal(t, 2.0, r.speed)

	env, isErr := h.HandleCommand(ClientCommand{Action: "bogus"})
	assert.True(t, isErr)
	assert.Equal(t, TypeError, env.Type)
}
