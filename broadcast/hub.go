package broadcast

import (
	"sync"

	"orderflow-engine/metrics"
)

// CommandRouter dispatches inbound client commands to the replay clock
// and the aggregator's min-size filter.
type CommandRouter interface {
	Pause()
	Resume()
	SetSpeed(speed float64)
	SetMinSize(size int64)
}

// Subscriber is one downstream consumer's bounded outbound buffer. The
// hub is the sole writer into Buffer; the subscriber's own write pump
// consumes it, and the hub reads from it only to drop the oldest message
// on overflow.
type Subscriber struct {
	ID         string
	Buffer     chan Envelope
	DropCount  int64
	mu         sync.Mutex
}

func newSubscriber(id string, bufferSize int) *Subscriber {
	return &Subscriber{ID: id, Buffer: make(chan Envelope, bufferSize)}
}

// enqueue delivers env to the subscriber's buffer, dropping the oldest
// undelivered message on overflow and incrementing DropCount.
func (s *Subscriber) enqueue(env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case s.Buffer <- env:
			return
		default:
		}
		select {
		case <-s.Buffer:
			s.DropCount++
			metrics.SubscriberDrops.WithLabelValues(s.ID).Inc()
		default:
			// another goroutine drained concurrently; retry the send
		}
	}
}

// Hub is the multi-producer, multi-subscriber broadcast fabric. Publish
// is safe for concurrent use by the ingest tasks: it holds the read side
// of the registration mutex while fanning out, so publishers only
// contend with Subscribe/Unsubscribe, and each subscriber's enqueue is
// serialized by that subscriber's own mutex.
type Hub struct {
	bufferSize int
	router     CommandRouter

	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

// New creates a hub with the given per-subscriber buffer size.
func New(bufferSize int, router CommandRouter) *Hub {
	return &Hub{bufferSize: bufferSize, router: router, subscribers: make(map[string]*Subscriber)}
}

// Subscribe registers a new subscriber and returns it.
func (h *Hub) Subscribe(id string) *Subscriber {
	sub := newSubscriber(id, h.bufferSize)
	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber; it has no effect on other
// subscribers.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subscribers, id)
	h.mu.Unlock()
}

// Publish fans env out to every current subscriber, in emission order
// per subscriber.
func (h *Hub) Publish(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		sub.enqueue(env)
	}
}

// Send delivers env to exactly one subscriber, used for replies (e.g. a
// command error) that should not fan out to every connection. Reports
// whether the subscriber was still registered.
func (h *Hub) Send(id string, env Envelope) bool {
	h.mu.RLock()
	sub, ok := h.subscribers[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	sub.enqueue(env)
	return true
}

// SubscriberCount reports the number of currently registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// HandleCommand routes one parsed inbound client command to the replay
// clock or the min-size gate. Returns an error envelope for unknown
// actions or missing required fields.
func (h *Hub) HandleCommand(cmd ClientCommand) (Envelope, bool) {
	if h.router == nil {
		return ErrorEnvelope("no command router configured"), true
	}
	switch cmd.Action {
	case "replay_pause":
		h.router.Pause()
	case "replay_resume":
		h.router.Resume()
	case "set_replay_speed":
		if cmd.Speed == nil {
			return ErrorEnvelope("set_replay_speed requires speed"), true
		}
		h.router.SetSpeed(*cmd.Speed)
	case "set_min_size":
		if cmd.MinSize == nil {
			return ErrorEnvelope("set_min_size requires min_size"), true
		}
		h.router.SetMinSize(*cmd.MinSize)
	default:
		return ErrorEnvelope("unknown action: " + cmd.Action), true
	}
	return Envelope{}, false
}
