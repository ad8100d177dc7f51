package intake

import (
	"sync"

	"solana-sniper/internal/domain"
)

// queue is a bounded FIFO of candidate events. Unlike a channel it supports
// purging queued items for an abandoned mint.
type queue struct {
	mu    sync.Mutex
	items []*domain.CandidateEvent
	cap   int
}

func newQueue(capacity int) *queue {
	return &queue{cap: capacity}
}

// push appends an event. Returns false when the queue is full.
func (q *queue) push(ev *domain.CandidateEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		return false
	}
	q.items = append(q.items, ev)
	return true
}

// pop removes and returns the oldest event, nil when empty.
func (q *queue) pop() *domain.CandidateEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev
}

// purge removes queued events matching the predicate and returns them.
func (q *queue) purge(match func(*domain.CandidateEvent) bool) []*domain.CandidateEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	var removed []*domain.CandidateEvent
	kept := q.items[:0]
	for _, ev := range q.items {
		if match(ev) {
			removed = append(removed, ev)
		} else {
			kept = append(kept, ev)
		}
	}
	q.items = kept
	return removed
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
