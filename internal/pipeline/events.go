package pipeline

import (
	"log"
	"sync"
	"time"

	"github.com/ryan258/insight-capsule/internal/domain"
)

// Registry fans lifecycle events out to subscribers. Delivery is buffered and
// non-blocking: a slow subscriber loses events instead of stalling the
// orchestrator, and a subscriber that calls back into the orchestrator can
// never deadlock it.
type Registry struct {
	mu     sync.Mutex
	subs   map[int]chan domain.Event
	next   int
	closed bool
	logger *log.Logger
}

// NewRegistry creates an empty listener registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{subs: make(map[int]chan domain.Event), logger: logger}
}

// Subscribe registers a listener channel with the given buffer size and
// returns it along with an unsubscribe function.
func (r *Registry) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan domain.Event, buffer)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	id := r.next
	r.next++
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
}

// Publish delivers the event to every subscriber without blocking.
func (r *Registry) Publish(ev domain.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			r.logger.Printf("[pipeline] listener %d lagging, dropped %s event", id, ev.Kind)
		}
	}
}

// Close unsubscribes everyone.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}
