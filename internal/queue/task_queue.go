package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/drift/internal/domain"
)

// TaskQueue is the authoritative in-memory ordered collection of pending
// items. Append order is creation order and is preserved across snapshot
// load. No capacity ceiling is enforced.
type TaskQueue struct {
	mu     sync.RWMutex
	items  []domain.QueueItem
	index  map[string]int
	logger *slog.Logger
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue(logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		index:  make(map[string]int),
		logger: logger.With("component", "task_queue"),
	}
}

// Enqueue builds an item from the descriptor, assigns it an ID, and
// appends it. It returns the created item immediately; persistence and
// processing are the engine's concern.
func (q *TaskQueue) Enqueue(d domain.Descriptor, now time.Time) domain.QueueItem {
	item := domain.QueueItem{
		ID:          domain.NewItemID(d.Type, now),
		Type:        d.Type,
		Payload:     d.Payload,
		CreatedAt:   now,
		ScheduledAt: now,
		RetryCount:  0,
		MaxRetries:  d.MaxRetries,
		Priority:    d.Priority,
	}

	q.mu.Lock()
	q.index[item.ID] = len(q.items)
	q.items = append(q.items, item)
	size := len(q.items)
	q.mu.Unlock()

	q.logger.Debug("item enqueued",
		"item_id", item.ID,
		"item_type", item.Type,
		"queue_len", size)
	return item
}

// Get returns the item with the given ID, if pending.
func (q *TaskQueue) Get(id string) (domain.QueueItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i, ok := q.index[id]
	if !ok {
		return domain.QueueItem{}, false
	}
	return q.items[i], true
}

// Remove deletes the item with the given ID, preserving the order of the
// remaining items. It reports whether the item was present.
func (q *TaskQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i, ok := q.index[id]
	if !ok {
		return false
	}
	q.items = append(q.items[:i], q.items[i+1:]...)
	delete(q.index, id)
	for j := i; j < len(q.items); j++ {
		q.index[q.items[j].ID] = j
	}
	return true
}

// Update replaces the stored copy of an item, matched by ID. It reports
// whether the item was present.
func (q *TaskQueue) Update(item domain.QueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i, ok := q.index[item.ID]
	if !ok {
		return false
	}
	q.items[i] = item
	return true
}

// List returns a defensive copy of the queue in order.
func (q *TaskQueue) List() []domain.QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]domain.QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Size returns the number of pending items.
func (q *TaskQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Clear removes every item.
func (q *TaskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.index = make(map[string]int)
}

// Replace swaps the queue contents for a loaded snapshot, preserving the
// snapshot's order.
func (q *TaskQueue) Replace(items []domain.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]domain.QueueItem, len(items))
	copy(q.items, items)
	q.index = make(map[string]int, len(items))
	for i, item := range q.items {
		q.index[item.ID] = i
	}
}
