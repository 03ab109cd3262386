// Package proxy implements the Proxy port, the application-side endpoint of a
// channel pair.
//
// A Proxy does not know its outgoing flow when it is created: the Port
// Manager assigns flows after registration. The Proxy learns the flow from
// the first control or default message carrying a channel field, and
// outbound messages emitted before then wait for the start signal.
//
// Interfaces built through GetInterface share the Proxy's channel. Each one
// registers a dispatcher under its own sub-id; inbound messages addressed
// with a "to" field reach only that dispatcher, others are broadcast.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tailored-agentic-units/switchboard/emitter"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/port"
)

const signalStart = "start"

// Dispatcher receives application messages arriving at a Proxy.
type Dispatcher func(msg messaging.Message)

// Binding connects an interface to its Proxy.
type Binding struct {
	// ID is the interface's sub-id, the value of "to" in addressed messages.
	ID string

	// Register installs the interface's inbound dispatcher.
	Register func(Dispatcher)

	// Emit sends a message on the Proxy's outgoing channel. It is safe to
	// call from any goroutine.
	Emit func(messaging.Message)
}

// Factory builds an interface value bound to a Proxy.
type Factory[T any] func(Binding) T

// Option configures a Proxy.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// Proxy is a port exposing interfaces of type T over one channel pair.
type Proxy[T any] struct {
	id      string
	ids     *port.Sequence
	factory Factory[T]

	mutex          sync.Mutex
	router         port.Router
	emitChannel    string
	controlChannel string
	reverse        string
	emits          map[string]Dispatcher
	order          []string

	signals *emitter.Emitter
	logger  *slog.Logger
}

// New creates a Proxy whose id and interface sub-ids are drawn from ids.
func New[T any](ids *port.Sequence, factory Factory[T], opts ...Option) *Proxy[T] {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}

	return &Proxy[T]{
		id:      ids.Next(),
		ids:     ids,
		factory: factory,
		emits:   make(map[string]Dispatcher),
		signals: emitter.New(),
		logger:  s.logger,
	}
}

func (p *Proxy[T]) ID() string {
	return p.id
}

// Bind attaches the Proxy to its router. A channel learned before the
// router arrived is announced now, and queued emits are released.
func (p *Proxy[T]) Bind(router port.Router) {
	p.mutex.Lock()
	p.router = router
	channel, reverse := p.emitChannel, p.reverse
	p.reverse = ""
	p.mutex.Unlock()

	if channel == "" {
		return
	}
	err := router.Schedule(func() {
		if reverse != "" {
			router.OnMessage(channel, messaging.Announcement(reverse))
		}
		p.signals.Emit(signalStart, nil)
	})
	if err != nil {
		p.logger.WarnContext(
			context.Background(),
			"failed to start proxy",
			slog.String("proxy_id", p.id),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Proxy[T]) String() string {
	if channel := p.EmitChannel(); channel != "" {
		return "[Proxy " + channel + "]"
	}
	return "[unbound Proxy]"
}

// EmitChannel returns the outgoing flow, or "" before it is discovered.
func (p *Proxy[T]) EmitChannel() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.emitChannel
}

// ControlChannel returns the flow back to the Port Manager, once announced.
func (p *Proxy[T]) ControlChannel() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.controlChannel
}

// OnMessage handles channel bootstrap on the control flow and application
// traffic on the default flow. Other flows are ignored.
func (p *Proxy[T]) OnMessage(source string, msg messaging.Message) {
	switch {
	case source == messaging.FlowControl && msg.Has(messaging.KeyReverse):
		channel, reverse := msg.String(messaging.KeyChannel), msg.String(messaging.KeyReverse)
		p.mutex.Lock()
		p.emitChannel = channel
		router := p.router
		if router == nil {
			p.reverse = reverse
		}
		p.mutex.Unlock()

		if router == nil {
			p.logger.DebugContext(context.Background(), "proxy has no router, deferring announcement", slog.String("proxy_id", p.id))
			return
		}
		router.OnMessage(channel, messaging.Announcement(reverse))
		p.signals.Emit(signalStart, nil)

	case source == messaging.FlowControl && msg.Has(messaging.KeyChannel):
		p.mutex.Lock()
		p.controlChannel = msg.String(messaging.KeyChannel)
		p.mutex.Unlock()

	case source == messaging.FlowDefault:
		p.mutex.Lock()
		if p.emitChannel == "" && msg.Has(messaging.KeyChannel) {
			p.emitChannel = msg.String(messaging.KeyChannel)
			p.mutex.Unlock()
			p.signals.Emit(signalStart, nil)
			return
		}
		p.mutex.Unlock()

		p.dispatch(msg)
	}
}

func (p *Proxy[T]) dispatch(msg messaging.Message) {
	p.mutex.Lock()
	var targets []Dispatcher
	if msg.Has(messaging.KeyTo) {
		to := fmt.Sprint(msg[messaging.KeyTo])
		if d, ok := p.emits[to]; ok {
			targets = append(targets, d)
		} else {
			p.mutex.Unlock()
			p.logger.WarnContext(
				context.Background(),
				"could not deliver message, no such interface",
				slog.String("proxy_id", p.id),
				slog.String("to", to),
			)
			return
		}
	} else {
		for _, id := range p.order {
			targets = append(targets, p.emits[id])
		}
	}
	p.mutex.Unlock()

	for _, d := range targets {
		d(msg)
	}
}

// GetInterface builds a new interface on a fresh sub-id.
func (p *Proxy[T]) GetInterface() T {
	return p.GetInterfaceConstructor()()
}

// GetInterfaceConstructor allocates a sub-id and returns a constructor for
// interfaces bound to it. Interfaces built by one constructor share the
// sub-id; the latest registration receives addressed messages.
func (p *Proxy[T]) GetInterfaceConstructor() func() T {
	id := p.ids.Next()
	return func() T {
		return p.factory(Binding{
			ID:       id,
			Register: func(d Dispatcher) { p.register(id, d) },
			Emit:     p.doEmit,
		})
	}
}

func (p *Proxy[T]) register(id string, d Dispatcher) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, exists := p.emits[id]; !exists {
		p.order = append(p.order, id)
	}
	p.emits[id] = d
}

func (p *Proxy[T]) doEmit(msg messaging.Message) {
	p.mutex.Lock()
	channel, router := p.emitChannel, p.router
	if channel == "" || router == nil {
		p.signals.Once(signalStart, func(any) { p.doEmit(msg) })
		p.mutex.Unlock()
		return
	}
	p.mutex.Unlock()

	if err := router.Post(channel, msg); err != nil {
		p.logger.WarnContext(
			context.Background(),
			"failed to emit message",
			slog.String("proxy_id", p.id),
			slog.String("error", err.Error()),
		)
	}
}
