// Package core provides the shared core capability of a routing context.
//
// The core creates channels: a channel is a pair of connected endpoints, of
// which one is handed out immediately with an identifier and the other is
// bound later by presenting that identifier. Both endpoints are proxies
// managed by the Port Manager, so the pair may be split across any ports
// that can pass the identifier between them.
//
// Core methods mutate routing state and must run on the routing loop.
// Requests arriving through the manager already do; other callers go through
// the hub's Schedule.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/switchboard/manager"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/port"
	"github.com/tailored-agentic-units/switchboard/proxy"
)

// Methods understood by OnMessage.
const (
	MethodCreateChannel = "createChannel"
	MethodBindChannel   = "bindChannel"
	MethodGetID         = "getId"
)

var (
	ErrUnknownChannel = errors.New("unknown channel identifier")
	ErrUnknownMethod  = errors.New("unknown core method")
)

// Option configures a Core.
type Option func(*Core)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) { c.logger = logger }
}

// WithSequence shares an id sequence with the context's other proxies.
func WithSequence(ids *port.Sequence) Option {
	return func(c *Core) { c.ids = ids }
}

// Core is the capability handed out by core requests.
type Core struct {
	manager *manager.Manager
	ids     *port.Sequence
	id      string

	mutex   sync.Mutex
	unbound map[string]*proxy.Proxy[*Endpoint]

	logger *slog.Logger
}

// Factory returns a manager.CoreFactory building a Core with opts.
func Factory(opts ...Option) manager.CoreFactory {
	return func(m *manager.Manager) (manager.Core, error) {
		return New(m, opts...)
	}
}

// New creates the core of m. Its context id is the "id" entry of the host
// environment when one is configured, and a random uuid otherwise.
func New(m *manager.Manager, opts ...Option) (*Core, error) {
	if m == nil {
		return nil, manager.ErrNoCore
	}

	c := &Core{
		manager: m,
		unbound: make(map[string]*proxy.Proxy[*Endpoint]),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ids == nil {
		c.ids = port.NewSequence(0)
	}

	if id, ok := m.Config().Global["id"].(string); ok && id != "" {
		c.id = id
	} else {
		c.id = uuid.NewString()
	}
	return c, nil
}

// ID returns the identifier of this routing context.
func (c *Core) ID() string {
	return c.id
}

// CreateChannel creates the first endpoint of a channel and returns it with
// the identifier that binds the second.
func (c *Core) CreateChannel() (string, *Endpoint, error) {
	p := proxy.New(c.ids, newEndpoint, proxy.WithLogger(c.logger))
	endpoint := p.GetInterface()
	if err := c.manager.Setup(p); err != nil {
		return "", nil, fmt.Errorf("failed to set up channel: %w", err)
	}

	identifier := uuid.NewString()
	c.mutex.Lock()
	c.unbound[identifier] = p
	c.mutex.Unlock()

	return identifier, endpoint, nil
}

// BindChannel creates the second endpoint of the channel named by
// identifier and links the two. An identifier binds once.
func (c *Core) BindChannel(identifier string) (*Endpoint, error) {
	c.mutex.Lock()
	local, ok := c.unbound[identifier]
	delete(c.unbound, identifier)
	c.mutex.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, identifier)
	}

	remote := proxy.New(c.ids, newEndpoint, proxy.WithLogger(c.logger))
	endpoint := remote.GetInterface()
	if err := c.manager.CreateLink(local, messaging.FlowDefault, remote, "", false); err != nil {
		return nil, fmt.Errorf("failed to bind channel %s: %w", identifier, err)
	}
	return endpoint, nil
}

// Unbound returns the number of channels awaiting their second endpoint.
func (c *Core) Unbound() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.unbound)
}

// OnMessage serves a core method call from origin, replying on origin's
// control flow. Failures are replied as {error: message} values.
func (c *Core) OnMessage(origin port.Port, msg messaging.Message) {
	method := msg.String(messaging.KeyType)
	value, err := c.call(method, msg.Slice(messaging.KeyValue))
	if err != nil {
		c.logger.WarnContext(
			context.Background(),
			"core method failed",
			slog.String("method", method),
			slog.String("origin", port.Describe(origin)),
			slog.String("error", err.Error()),
		)
		value = map[string]any{messaging.KeyError: err.Error()}
	}

	flow, ok := c.manager.ControlFlow(origin.ID())
	if !ok {
		c.logger.WarnContext(context.Background(), "core caller is not controlled", slog.String("origin", port.Describe(origin)))
		return
	}
	c.manager.Hub().OnMessage(flow, messaging.MethodReply(method, value))
}

func (c *Core) call(method string, args []any) (any, error) {
	switch method {
	case MethodCreateChannel:
		identifier, endpoint, err := c.CreateChannel()
		if err != nil {
			return nil, err
		}
		return map[string]any{"identifier": identifier, "channel": endpoint}, nil

	case MethodBindChannel:
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: missing identifier", ErrUnknownChannel)
		}
		return c.BindChannel(fmt.Sprint(args[0]))

	case MethodGetID:
		return c.ID(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
}
