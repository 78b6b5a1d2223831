package core

import (
	"fmt"
	"sync"

	"github.com/seentics/seentics-go/internal/logging"
)

// Handler receives a topic payload. Handlers run synchronously on the
// emitting goroutine, in subscription order.
type Handler func(payload any)

type subscription struct {
	id int
	fn Handler
}

// Bus is the synchronous pub/sub channel the trackers talk over. A panic in
// one handler is contained so the remaining handlers still run; that is the
// only coupling contract between independently loaded trackers.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]subscription
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// On subscribes to a topic and returns an unsubscribe function.
func (b *Bus) On(topic string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, sub := range subs {
			if sub.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers payload to every subscriber of topic, in subscription
// order. Subscribers added during delivery see the next emit, not this one.
func (b *Bus) Emit(topic string, payload any) {
	b.mu.Lock()
	subs := append([]subscription{}, b.subs[topic]...)
	b.mu.Unlock()

	for _, sub := range subs {
		invoke(topic, sub.fn, payload)
	}
}

func invoke(topic string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("bus handler panicked", "topic", topic, "panic", fmt.Sprint(r))
		}
	}()
	fn(payload)
}
