package events

import "sync"

// Queue is an ordered list of pending events. Any goroutine may push; only
// the scheduler drains.
type Queue struct {
	mu      sync.Mutex
	pending []Event
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an event.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, ev)
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain executes every event that was pending when it was called, in push
// order. Events pushed while draining wait for the next call. Events whose
// recipient no longer accepts them are dropped. A panic in an event is
// propagated to the caller.
func (q *Queue) Drain() (ran, dropped int) {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, ev := range batch {
		if !ev.Applicable() {
			dropped++
			continue
		}
		ev.Execute()
		ran++
	}
	return ran, dropped
}
