package core

import (
	"github.com/tailored-agentic-units/switchboard/emitter"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/proxy"
)

// Endpoint is one end of a core channel. It carries untyped events.
type Endpoint struct {
	binding proxy.Binding
	events  *emitter.Emitter
}

func newEndpoint(b proxy.Binding) *Endpoint {
	e := &Endpoint{binding: b, events: emitter.New()}
	b.Register(e.dispatch)
	return e
}

func (e *Endpoint) ID() string {
	return e.binding.ID
}

// Emit sends an event to the other end. Events emitted before the channel
// is bound are delivered once it is.
func (e *Endpoint) Emit(event string, value any) {
	e.binding.Emit(messaging.Event(event, value))
}

// On subscribes fn to events from the other end. The returned func cancels
// the subscription.
func (e *Endpoint) On(event string, fn func(value any)) func() {
	return e.events.On(event, fn)
}

func (e *Endpoint) dispatch(msg messaging.Message) {
	if msg.String(messaging.KeyAction) != messaging.ActionEvent {
		return
	}
	e.events.Emit(msg.String(messaging.KeyType), msg[messaging.KeyValue])
}
