package usecase

import "time"

// Test-only accessors to the internal callback queue

type CallbackQueue = callbackQueue

type DrainedEvent struct {
	SpNo   string
	Status int
}

func (q *callbackQueue) Push(spNo string, status int, now time.Time) {
	q.push(spNo, status, now)
}

func (q *callbackQueue) Drain() []DrainedEvent {
	events := q.drain()
	out := make([]DrainedEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, DrainedEvent{SpNo: ev.spNo, Status: ev.status})
	}
	return out
}

func (q *callbackQueue) Len() int {
	return q.length()
}
