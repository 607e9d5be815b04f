package queue

import (
	"container/heap"
	"sync"
	"time"
)

// retrySchedule tracks when each pending item is next due, ordered by a
// min-heap on the scheduled time. The coordinator's sweep polls it to
// decide whether anything is worth a drain pass, so retries never
// busy-poll and never fire before their scheduled time. Cancelling an item
// removes its entry, so a stale reattempt cannot fire after cancellation.
type retrySchedule struct {
	mu      sync.Mutex
	entries scheduleHeap
	byID    map[string]*scheduleEntry
}

type scheduleEntry struct {
	id    string
	due   time.Time
	index int
}

func newRetrySchedule() *retrySchedule {
	return &retrySchedule{
		byID: make(map[string]*scheduleEntry),
	}
}

// Set records or updates the due time for an item.
func (s *retrySchedule) Set(id string, due time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		e.due = due
		heap.Fix(&s.entries, e.index)
		return
	}
	e := &scheduleEntry{id: id, due: due}
	s.byID[id] = e
	heap.Push(&s.entries, e)
}

// Remove drops the entry for an item, if present.
func (s *retrySchedule) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return
	}
	heap.Remove(&s.entries, e.index)
	delete(s.byID, id)
}

// NextDue returns the earliest scheduled time, if any entry exists.
func (s *retrySchedule) NextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries.Len() == 0 {
		return time.Time{}, false
	}
	return s.entries[0].due, true
}

// AnyDue reports whether at least one entry is due at or before now.
func (s *retrySchedule) AnyDue(now time.Time) bool {
	due, ok := s.NextDue()
	return ok && !due.After(now)
}

// Len returns the number of tracked entries.
func (s *retrySchedule) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Clear drops every entry.
func (s *retrySchedule) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]*scheduleEntry)
}

// scheduleHeap implements heap.Interface ordered by due time, with entry
// IDs as a stable tiebreak.
type scheduleHeap []*scheduleEntry

func (h scheduleHeap) Len() int { return len(h) }

func (h scheduleHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].id < h[j].id
	}
	return h[i].due.Before(h[j].due)
}

func (h scheduleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *scheduleHeap) Push(x any) {
	e := x.(*scheduleEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *scheduleHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
