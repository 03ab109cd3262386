package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/proxy"
)

// Handler serves one method. args are conformed to the method's tags.
// Handlers run on the routing loop.
type Handler func(ctx context.Context, args []any) (any, error)

// Provider is the serving side of a template bound to a Proxy.
type Provider struct {
	template *Template
	binding  proxy.Binding
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewProviderFactory returns a proxy factory building providers that answer
// calls with handlers, keyed by method name.
func NewProviderFactory(t *Template, handlers map[string]Handler, opts ...Option) proxy.Factory[*Provider] {
	s := newSettings(opts)
	return func(b proxy.Binding) *Provider {
		p := &Provider{
			template: t,
			binding:  b,
			handlers: handlers,
			logger:   s.logger,
		}
		b.Register(p.dispatch)
		return p
	}
}

func (p *Provider) ID() string {
	return p.binding.ID
}

// Emit raises a declared event on the far side with value conformed to the
// event's first tag.
func (p *Provider) Emit(event string, value any) error {
	m, ok := p.template.lookup(event, KindEvent)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}

	if len(m.Value) > 0 {
		value = Conform(m.Value[:1], []any{value})[0]
	}
	p.binding.Emit(messaging.Event(event, value))
	return nil
}

// dispatch answers every method call, including unknown ones, so the
// caller's FIFO stays aligned. Failures are replied as {error: ...} values.
func (p *Provider) dispatch(msg messaging.Message) {
	if msg.String(messaging.KeyAction) != messaging.ActionMethod {
		return
	}

	name := msg.String(messaging.KeyType)
	p.binding.Emit(messaging.MethodReply(name, p.serve(name, msg.Slice(messaging.KeyValue))))
}

func (p *Provider) serve(name string, raw []any) any {
	m, ok := p.template.lookup(name, KindMethod)
	if !ok {
		return failure(fmt.Errorf("%w: %s", ErrUnknownMethod, name))
	}

	handler, ok := p.handlers[name]
	if !ok {
		return failure(fmt.Errorf("method %s not implemented", name))
	}

	value, err := handler(context.Background(), Conform(m.Value, raw))
	if err != nil {
		p.logger.DebugContext(
			context.Background(),
			"method failed",
			slog.String("provider_id", p.binding.ID),
			slog.String("method", name),
			slog.String("error", err.Error()),
		)
		return failure(err)
	}
	return value
}

func failure(err error) map[string]any {
	return map[string]any{messaging.KeyError: err.Error()}
}
