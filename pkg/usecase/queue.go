package usecase

import (
	"sync"
	"time"
)

// queuedEvent is one callback event parked while a writer held the lock
type queuedEvent struct {
	spNo     string
	status   int
	queuedAt time.Time
}

// callbackQueue buffers callback events until the drain timer finds the
// sync lock free.
type callbackQueue struct {
	mu    sync.Mutex
	items []queuedEvent
}

func (q *callbackQueue) push(spNo string, status int, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, queuedEvent{spNo: spNo, status: status, queuedAt: now})
}

func (q *callbackQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

func (q *callbackQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain empties the queue and returns the pending events deduplicated by
// approval number, keeping only the latest status of each. Arrival order of
// the surviving entries is preserved.
func (q *callbackQueue) drain() []queuedEvent {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	latest := make(map[string]int, len(items))
	for i, ev := range items {
		latest[ev.spNo] = i
	}

	drained := make([]queuedEvent, 0, len(latest))
	for i, ev := range items {
		if latest[ev.spNo] == i {
			drained = append(drained, ev)
		}
	}
	return drained
}
