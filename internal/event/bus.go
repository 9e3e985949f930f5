package event

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
)

// DefaultReplaySize is the number of recent events kept per session.
const DefaultReplaySize = 50

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// channel is the per-session state of the bus.
type channel struct {
	// pub serializes publishers so handlers observe events in publish order.
	pub  sync.Mutex
	mu   sync.RWMutex
	subs []subscription
	seq  uint64
	ring []Event
	head int
	full bool
}

func (c *channel) record(e Event) {
	if len(c.ring) == 0 {
		return
	}
	c.ring[c.head] = e
	c.head = (c.head + 1) % len(c.ring)
	if c.head == 0 {
		c.full = true
	}
}

func (c *channel) recent() []Event {
	if !c.full {
		return append([]Event(nil), c.ring[:c.head]...)
	}
	out := make([]Event, 0, len(c.ring))
	out = append(out, c.ring[c.head:]...)
	return append(out, c.ring[:c.head]...)
}

// Bus is a per-session publish/subscribe channel with bounded replay.
//
// Publishing never blocks on missing subscribers and never fails. Handlers
// run synchronously on the publishing goroutine, in subscription order, and
// a panicking handler is recovered so it cannot break delivery to others.
// Handlers must not publish or subscribe to their own session; slow
// consumers should hand events off to their own goroutine.
type Bus struct {
	mu         sync.Mutex
	sessions   map[string]*channel
	replaySize int
	nextID     atomic.Uint64
	logger     *logging.Logger
}

// NewBus creates a bus keeping replaySize recent events per session. A
// non-positive size uses DefaultReplaySize.
func NewBus(replaySize int, logger *logging.Logger) *Bus {
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Bus{
		sessions:   make(map[string]*channel),
		replaySize: replaySize,
		logger:     logger,
	}
}

func (b *Bus) channel(sessionID string) *channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.sessions[sessionID]
	if !ok {
		c = &channel{ring: make([]Event, b.replaySize)}
		b.sessions[sessionID] = c
	}
	return c
}

// Subscribe registers handler for a session's events and returns a function
// that removes it. The returned function is idempotent.
func (b *Bus) Subscribe(sessionID string, handler Handler) (unsubscribe func()) {
	_, unsubscribe = b.subscribe(sessionID, handler, false)
	return unsubscribe
}

// SubscribeWithReplay atomically snapshots the recent events and registers
// handler, so the caller sees every event exactly once across the replay and
// the live stream.
func (b *Bus) SubscribeWithReplay(sessionID string, handler Handler) (replay []Event, unsubscribe func()) {
	return b.subscribe(sessionID, handler, true)
}

func (b *Bus) subscribe(sessionID string, handler Handler, withReplay bool) ([]Event, func()) {
	c := b.channel(sessionID)
	id := b.nextID.Add(1)

	// Holding pub excludes a concurrent publish between the snapshot and the
	// registration.
	c.pub.Lock()
	c.mu.Lock()
	var replay []Event
	if withReplay {
		replay = c.recent()
	}
	c.subs = append(c.subs, subscription{id: id, handler: handler})
	c.mu.Unlock()
	c.pub.Unlock()

	var once sync.Once
	return replay, func() {
		once.Do(func() { c.remove(id) })
	}
}

func (c *channel) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subs {
		if sub.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Publish assigns the next sequence number to e, records it for replay, and
// delivers it to the session's current subscribers. It returns the stamped
// event.
func (b *Bus) Publish(sessionID string, e Event) Event {
	c := b.channel(sessionID)

	c.pub.Lock()
	defer c.pub.Unlock()

	c.mu.Lock()
	c.seq++
	e.Seq = c.seq
	e.SessionID = sessionID
	c.record(e)
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		b.safeCall(sub.handler, e)
	}
	return e
}

// safeCall invokes a handler and recovers from panics, logging the stack.
func (b *Bus) safeCall(handler Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"session_id", e.SessionID,
				"event", string(e.Kind),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	handler(e)
}

// RecentEvents returns up to the replay size most recent events of a
// session, oldest first.
func (b *Bus) RecentEvents(sessionID string) []Event {
	b.mu.Lock()
	c, ok := b.sessions[sessionID]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recent()
}

// Clear discards a session's subscribers and replay buffer.
func (b *Bus) Clear(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sessionID)
}

// SubscriberCount returns the number of handlers registered for a session.
func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.Lock()
	c, ok := b.sessions[sessionID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Sessions returns the number of sessions with bus state.
func (b *Bus) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
