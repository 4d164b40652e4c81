package events

import "sync"

// Hub broadcasts events to subscribers. Each subscriber gets a buffered
// channel; a subscriber that falls behind misses events instead of blocking
// the publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
	buf     int
}

// NewHub creates a hub whose subscriber channels hold buf events.
func NewHub(buf int) *Hub {
	if buf <= 0 {
		buf = 32
	}
	return &Hub{clients: make(map[chan Event]struct{}), buf: buf}
}

// Subscribe registers a new subscriber. The returned func unsubscribes and
// closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buf)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish implements Publisher.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			// slow subscriber, drop
		}
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
