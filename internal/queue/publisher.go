package queue

import (
	"log/slog"
	"sync"

	"github.com/phrazzld/drift/internal/domain"
)

// StatusPublisher broadcasts the derived SyncStatus to subscribers after
// every queue or network mutation. A panicking subscriber is recovered and
// logged; it can never abort the engine's control flow.
type StatusPublisher struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(domain.SyncStatus)
	logger      *slog.Logger
}

// NewStatusPublisher creates a publisher with no subscribers.
func NewStatusPublisher(logger *slog.Logger) *StatusPublisher {
	return &StatusPublisher{
		subscribers: make(map[int]func(domain.SyncStatus)),
		logger:      logger.With("component", "status_publisher"),
	}
}

// Subscribe registers a callback for status broadcasts and returns an
// unsubscribe function.
func (p *StatusPublisher) Subscribe(cb func(domain.SyncStatus)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = cb
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subscribers, id)
		p.mu.Unlock()
	}
}

// Publish delivers the status to every subscriber.
func (p *StatusPublisher) Publish(status domain.SyncStatus) {
	p.mu.Lock()
	subs := make([]func(domain.SyncStatus), 0, len(p.subscribers))
	for _, cb := range p.subscribers {
		subs = append(subs, cb)
	}
	p.mu.Unlock()

	// Delivered outside the lock so a subscriber may re-enter the engine.
	for _, cb := range subs {
		p.deliver(cb, status)
	}
}

func (p *StatusPublisher) deliver(cb func(domain.SyncStatus), status domain.SyncStatus) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("status subscriber panicked", "panic", r)
		}
	}()
	cb(status)
}
