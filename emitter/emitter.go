// Package emitter provides the publish/subscribe capability composed into
// ports and the hub.
//
// Subscribers registered with Once form a pending-operation queue keyed by
// signal: they run exactly once, on the first Emit after registration, in
// registration order. Subscribers added while an Emit is in progress wait for
// the next Emit.
package emitter

import "sync"

// Handler receives the value passed to Emit.
type Handler func(value any)

type subscription struct {
	id   uint64
	fn   Handler
	once bool
}

// Emitter holds named signal subscribers. The zero value is ready to use.
type Emitter struct {
	mu       sync.Mutex
	handlers map[string][]subscription
	nextID   uint64
}

// New returns an empty Emitter.
func New() *Emitter {
	return &Emitter{}
}

// On subscribes fn to every future emission of signal. The returned func
// removes the subscription.
func (e *Emitter) On(signal string, fn Handler) func() {
	id := e.add(signal, fn, false)
	return func() { e.remove(signal, id) }
}

// Once queues fn to run on the next emission of signal only.
func (e *Emitter) Once(signal string, fn Handler) {
	e.add(signal, fn, true)
}

// Emit invokes the subscribers of signal and returns how many ran. One-shot
// subscribers are dequeued before any handler runs, so a handler that
// re-queues itself is deferred to the following Emit.
func (e *Emitter) Emit(signal string, value any) int {
	e.mu.Lock()
	subs := e.handlers[signal]
	remaining := make([]subscription, 0, len(subs))
	for _, sub := range subs {
		if !sub.once {
			remaining = append(remaining, sub)
		}
	}
	if len(remaining) == 0 {
		delete(e.handlers, signal)
	} else {
		e.handlers[signal] = remaining
	}
	e.mu.Unlock()

	for _, sub := range subs {
		sub.fn(value)
	}
	return len(subs)
}

// Pending reports how many one-shot subscribers wait on signal.
func (e *Emitter) Pending(signal string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, sub := range e.handlers[signal] {
		if sub.once {
			count++
		}
	}
	return count
}

func (e *Emitter) add(signal string, fn Handler, once bool) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[string][]subscription)
	}
	e.nextID++
	e.handlers[signal] = append(e.handlers[signal], subscription{id: e.nextID, fn: fn, once: once})
	return e.nextID
}

func (e *Emitter) remove(signal string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.handlers[signal]
	for i, sub := range subs {
		if sub.id == id {
			e.handlers[signal] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(e.handlers[signal]) == 0 {
		delete(e.handlers, signal)
	}
}
