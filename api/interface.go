package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tailored-agentic-units/switchboard/emitter"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/proxy"
)

// Option configures interfaces and providers.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Call is a pending method result.
type Call struct {
	method string
	done   chan struct{}
	value  any
}

func newCall(method string) *Call {
	return &Call{method: method, done: make(chan struct{})}
}

// Done is closed when the reply arrives.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Value returns the reply value. It is nil until Done is closed.
func (c *Call) Value() any {
	select {
	case <-c.done:
		return c.value
	default:
		return nil
	}
}

// Wait blocks until the reply arrives or ctx is done. Calls carry no
// timeout of their own.
func (c *Call) Wait(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		return c.value, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", c.method, ctx.Err())
	}
}

func (c *Call) resolve(value any) {
	c.value = value
	close(c.done)
}

// Interface is the consumer side of a template bound to a Proxy.
type Interface struct {
	template *Template
	binding  proxy.Binding

	mutex    sync.Mutex
	inflight []*Call

	events *emitter.Emitter
	logger *slog.Logger
}

// NewFactory returns a proxy factory building consumer interfaces for t.
func NewFactory(t *Template, opts ...Option) proxy.Factory[*Interface] {
	s := newSettings(opts)
	return func(b proxy.Binding) *Interface {
		i := &Interface{
			template: t,
			binding:  b,
			events:   emitter.New(),
			logger:   s.logger,
		}
		b.Register(i.dispatch)
		return i
	}
}

func (i *Interface) ID() string {
	return i.binding.ID
}

// Call sends a method call with args conformed to the method's tags. Replies
// resolve calls strictly in the order the calls were issued.
func (i *Interface) Call(method string, args ...any) (*Call, error) {
	m, ok := i.template.lookup(method, KindMethod)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	c := newCall(method)
	i.mutex.Lock()
	i.inflight = append(i.inflight, c)
	i.mutex.Unlock()

	i.binding.Emit(messaging.MethodCall(method, Conform(m.Value, args)))
	return c, nil
}

// On subscribes fn to a declared event. Payloads are conformed to the
// event's tags. The returned func cancels the subscription.
func (i *Interface) On(event string, fn func(values []any)) (func(), error) {
	if _, ok := i.template.lookup(event, KindEvent); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	return i.events.On(event, func(v any) {
		values, _ := v.([]any)
		fn(values)
	}), nil
}

// Get reads a property. Asynchronous properties are not supported.
func (i *Interface) Get(property string) (any, error) {
	return nil, fmt.Errorf("%w: %s", ErrPropertyUnsupported, property)
}

// Pending returns the number of calls awaiting a reply.
func (i *Interface) Pending() int {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return len(i.inflight)
}

func (i *Interface) dispatch(msg messaging.Message) {
	switch msg.String(messaging.KeyAction) {
	case messaging.ActionMethod:
		i.mutex.Lock()
		if len(i.inflight) == 0 {
			i.mutex.Unlock()
			i.logger.WarnContext(
				context.Background(),
				"dropping reply with no call in flight",
				slog.String("interface_id", i.binding.ID),
				slog.String("method", msg.String(messaging.KeyType)),
			)
			return
		}
		c := i.inflight[0]
		i.inflight = i.inflight[1:]
		i.mutex.Unlock()

		c.resolve(msg[messaging.KeyValue])

	case messaging.ActionEvent:
		name := msg.String(messaging.KeyType)
		m, ok := i.template.lookup(name, KindEvent)
		if !ok {
			return
		}
		i.events.Emit(name, Conform(m.Value, []any{msg[messaging.KeyValue]}))
	}
}
