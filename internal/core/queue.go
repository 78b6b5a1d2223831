package core

import (
	"sync"
	"time"

	"github.com/seentics/seentics-go/internal/logging"
)

// SendFunc delivers a batch of events. A non-nil error means the whole
// batch is considered undelivered and will be retried.
type SendFunc func(events []Event) error

// Queue is the ordered outgoing event buffer. Add schedules at most one
// pending flush timer; Flush atomically swaps the buffer out before
// sending, so events added during an in-flight send land in a fresh buffer.
// A failed batch is prepended back ahead of newer events, preserving the
// original order across retries.
type Queue struct {
	mu       sync.Mutex
	events   []Event
	timer    *time.Timer
	interval time.Duration
	maxBatch int
	send     SendFunc
}

// NewQueue builds a queue flushing every interval, or immediately once
// maxBatch events are buffered. maxBatch <= 0 disables the size trigger.
func NewQueue(interval time.Duration, maxBatch int, send SendFunc) *Queue {
	return &Queue{interval: interval, maxBatch: maxBatch, send: send}
}

// Add appends an event and arms the flush timer if none is pending.
func (q *Queue) Add(e Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	full := q.maxBatch > 0 && len(q.events) >= q.maxBatch
	if q.timer == nil && !full {
		q.timer = time.AfterFunc(q.interval, q.Flush)
	}
	q.mu.Unlock()

	if full {
		q.Flush()
	}
}

// Len reports the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Flush drains and sends the current buffer. Empty buffers are a no-op. On
// delivery failure the batch is requeued ahead of anything added meanwhile
// and a fresh timer is armed for the next attempt.
func (q *Queue) Flush() {
	batch := q.Drain()
	if len(batch) == 0 {
		return
	}

	if err := q.send(batch); err != nil {
		logging.L().Warn("event batch delivery failed, requeueing", "count", len(batch), "error", err)
		q.mu.Lock()
		q.events = append(batch, q.events...)
		if q.timer == nil {
			q.timer = time.AfterFunc(q.interval, q.Flush)
		}
		q.mu.Unlock()
	}
}

// Drain swaps the buffer out without sending and disarms the timer. Used
// at unload when the caller hands the batch to the beacon path instead.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	batch := q.events
	q.events = nil
	return batch
}
