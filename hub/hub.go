package hub

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"shoplist/domain"
)

const defaultBuffer = 16

// Subscription is one live viewer registration. Events for its list arrive on
// C until the subscription is removed, after which C is closed.
type Subscription struct {
	id     uint64
	listID string
	ch     chan domain.Event
}

// C returns the channel on which broadcasts are delivered.
func (s *Subscription) C() <-chan domain.Event { return s.ch }

// ListID returns the list this viewer watches.
func (s *Subscription) ListID() string { return s.listID }

// ID returns a process-unique id for logging.
func (s *Subscription) ID() uint64 { return s.id }

// Hub maps list ids to their live viewers. It is created once per process and
// handed to whatever needs to subscribe or broadcast.
type Hub struct {
	buffer int
	logger *log.Logger
	nextID atomic.Uint64
	drops  atomic.Uint64

	mu     sync.Mutex
	closed bool
	lists  map[string]map[*Subscription]struct{}
}

// New creates a Hub whose viewers buffer up to buffer pending events.
func New(buffer int, logger *log.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Hub{
		buffer: buffer,
		logger: logger,
		lists:  make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new viewer for listID. After Close the returned
// subscription is already closed.
func (h *Hub) Subscribe(listID string) *Subscription {
	sub := &Subscription{
		id:     h.nextID.Add(1),
		listID: listID,
		ch:     make(chan domain.Event, h.buffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	subs := h.lists[listID]
	if subs == nil {
		subs = make(map[*Subscription]struct{})
		h.lists[listID] = subs
	}
	subs[sub] = struct{}{}
	h.logger.WithFields(log.Fields{"list": listID, "viewer": sub.id, "viewers": len(subs)}).Debug("viewer subscribed")
	return sub
}

// Unsubscribe removes the registration and closes its channel. Calling it more
// than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.lists[sub.listID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.lists, sub.listID)
	}
	h.logger.WithFields(log.Fields{"list": sub.listID, "viewer": sub.id}).Debug("viewer unsubscribed")
}

// Broadcast hands ev to every viewer of listID and returns how many accepted
// it. A viewer whose buffer is full misses the event; it stays registered.
func (h *Hub) Broadcast(listID string, ev domain.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for sub := range h.lists[listID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			h.drops.Add(1)
			h.logger.WithFields(log.Fields{"list": listID, "viewer": sub.id}).Warn("viewer buffer full, event dropped")
		}
	}
	return delivered
}

// Notify broadcasts ev to the viewers of the list it carries.
func (h *Hub) Notify(_ context.Context, ev domain.Event) {
	h.Broadcast(ev.List.ID, ev)
}

// Count returns the number of live viewers of listID.
func (h *Hub) Count(listID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lists[listID])
}

// Dropped returns the number of deliveries skipped so far.
func (h *Hub) Dropped() uint64 { return h.drops.Load() }

// Close removes every registration. Viewers observe a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for listID, subs := range h.lists {
		for sub := range subs {
			close(sub.ch)
		}
		delete(h.lists, listID)
	}
}
