package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/emitter"
	"github.com/tailored-agentic-units/switchboard/hub"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/observability"
	"github.com/tailored-agentic-units/switchboard/port"
	"github.com/tailored-agentic-units/switchboard/resource"
)

// ID is the port id of every Port Manager.
const ID = messaging.FlowControl

// Core is the shared capability handed out by core requests.
type Core interface {
	OnMessage(origin port.Port, msg messaging.Message)
}

// CoreFactory builds the core of a manager. It runs at most once, on the
// first core request.
type CoreFactory func(m *Manager) (Core, error)

// Option configures a Manager.
type Option func(*Manager)

func WithRegistry(registry *port.Registry) Option {
	return func(m *Manager) { m.registry = registry }
}

func WithResources(resources *resource.Registry) Option {
	return func(m *Manager) { m.resources = resources }
}

func WithCore(factory CoreFactory) Option {
	return func(m *Manager) { m.coreFactory = factory }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithObserver(observer observability.Observer) Option {
	return func(m *Manager) { m.observer = observer }
}

// Manager is the control port of a routing context.
type Manager struct {
	hub       hub.Hub
	registry  *port.Registry
	resources *resource.Registry

	config       config.Shared
	controlFlows map[string]string
	dataFlows    map[string][]string
	reverseFlows map[string]string

	delegate   string
	toDelegate map[string]bool

	coreFactory CoreFactory
	core        Core
	coreOnce    sync.Once
	coreErr     error

	signals  *emitter.Emitter
	logger   *slog.Logger
	observer observability.Observer
	ctx      context.Context
}

// New creates the Port Manager for h, registers it and subscribes it to the
// hub's config signal.
func New(ctx context.Context, h hub.Hub, opts ...Option) (*Manager, error) {
	m := &Manager{
		hub:          h,
		registry:     port.NewRegistry(),
		resources:    resource.New(),
		config:       config.DefaultShared(),
		controlFlows: make(map[string]string),
		dataFlows:    map[string][]string{ID: {}},
		reverseFlows: make(map[string]string),
		toDelegate:   make(map[string]bool),
		signals:      emitter.New(),
		logger:       slog.Default(),
		observer:     observability.NoOpObserver{},
		ctx:          ctx,
	}
	for _, opt := range opts {
		opt(m)
	}

	h.OnConfig(func(cfg config.Shared) {
		m.config.Merge(&cfg)
		m.signals.Emit(signalConfig, nil)
	})

	if err := h.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register port manager: %w", err)
	}
	return m, nil
}

func (m *Manager) ID() string {
	return ID
}

func (m *Manager) String() string {
	return "[Local Controller]"
}

// Config returns a copy of the merged shared configuration.
func (m *Manager) Config() config.Shared {
	return m.config.Clone()
}

func (m *Manager) Registry() *port.Registry {
	return m.registry
}

func (m *Manager) Resources() *resource.Registry {
	return m.resources
}

func (m *Manager) Hub() hub.Hub {
	return m.hub
}

// OnMessage interprets a control request. flow is the name label of the
// requester's control flow, which is the requester's port id.
func (m *Manager) OnMessage(flow string, msg messaging.Message) {
	reverseFlow, known := m.controlFlows[flow]
	if !known {
		m.logger.WarnContext(m.ctx, "unknown message source", slog.String("flow", flow))
		return
	}

	origin, ok := m.hub.Destination(reverseFlow)
	if !ok {
		m.logger.WarnContext(
			m.ctx,
			"control flow has no destination",
			slog.String("flow", flow),
			slog.String("control_flow", reverseFlow),
		)
		return
	}

	if m.delegate != "" && reverseFlow != m.delegate && m.toDelegate[flow] {
		m.emit(EventDelegate, observability.LevelVerbose, map[string]any{
			"flow":     flow,
			"delegate": m.delegate,
		})
		m.hub.OnMessage(m.delegate, messaging.Delegation(flow, msg))
		return
	}

	req, err := ParseRequest(msg)
	if err != nil {
		m.logger.WarnContext(
			m.ctx,
			"dropping control request",
			slog.String("flow", flow),
			slog.String("error", err.Error()),
			slog.String("message", msg.Describe()),
		)
		m.emit(EventRequestUnknown, observability.LevelWarning, map[string]any{
			"flow":    flow,
			"request": msg.String(messaging.KeyRequest),
		})
		return
	}

	m.handle(origin, reverseFlow, req)
}

func (m *Manager) handle(origin port.Port, reverseFlow string, req Request) {
	switch r := req.(type) {
	case DebugRequest:
		if m.config.Debug {
			m.logger.InfoContext(
				m.ctx,
				"debug",
				slog.String("origin", port.Describe(origin)),
				slog.String("message", r.Message.Describe()),
			)
		}

	case LinkRequest:
		destination, err := m.resolve(r.To)
		if err != nil {
			m.logger.WarnContext(m.ctx, "cannot link", slog.String("origin", origin.ID()), slog.String("error", err.Error()))
			return
		}
		m.CreateLink(origin, r.Name, destination, r.OverrideDest, false)

	case CreateRequest:
		m.Setup(origin)

	case PortRequest:
		args := r.Args
		if r.ExposeManager {
			args = m
		}
		p, err := m.construct(r.Service, args)
		if err != nil {
			return
		}
		m.CreateLink(origin, r.Name, p, "", false)

	case BindPortRequest:
		p, err := m.construct(r.Service, r.Args)
		if err != nil {
			return
		}
		m.CreateLink(port.Ref(r.ID), "custom"+r.Port, p, messaging.FlowDefault, true)

	case DelegateRequest:
		if m.delegate == "" {
			m.delegate = reverseFlow
		}
		m.toDelegate[r.Flow] = true

	case ResourceRequest:
		m.resources.AddResolver(r.Resolver)
		if err := m.resources.AddRetriever(r.Service, r.Retriever); err != nil {
			m.logger.WarnContext(m.ctx, "unwilling to override retriever", slog.String("service", r.Service))
		}

	case CoreRequest:
		if m.core != nil && reverseFlow == m.delegate {
			m.core.OnMessage(origin, r.Message)
			return
		}
		core, err := m.Core()
		if err != nil {
			m.logger.WarnContext(m.ctx, "cannot provide core", slog.String("error", err.Error()))
			return
		}
		m.hub.OnMessage(reverseFlow, messaging.CoreReply(core))
	}
}

// Core returns the shared core capability, building it on first use.
func (m *Manager) Core() (Core, error) {
	m.coreOnce.Do(func() {
		if m.coreFactory == nil {
			m.coreErr = ErrNoCore
			return
		}
		m.core, m.coreErr = m.coreFactory(m)
	})
	return m.core, m.coreErr
}

func (m *Manager) construct(service string, args any) (port.Port, error) {
	p, err := m.registry.New(service, args)
	if err != nil {
		if errors.Is(err, port.ErrServiceNotFound) {
			err = fmt.Errorf("%w: %s", ErrUnknownService, service)
		}
		m.logger.WarnContext(
			m.ctx,
			"failed to construct port",
			slog.String("service", service),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return p, nil
}

func (m *Manager) resolve(to any) (port.Port, error) {
	switch v := to.(type) {
	case port.Port:
		return v, nil
	case string:
		if p, ok := m.hub.Lookup(v); ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %s", hub.ErrPortNotFound, v)
	default:
		return nil, fmt.Errorf("%w: link destination %T", ErrMalformedRequest, to)
	}
}

// whenConfigured reports whether the host configuration has arrived. If it
// has not, replay is queued to run once it does.
func (m *Manager) whenConfigured(replay func()) bool {
	if m.config.Ready() {
		return true
	}
	m.signals.Once(signalConfig, func(any) { replay() })
	return false
}

func (m *Manager) emit(typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(m.ctx, m.observer, typ, level, m.String(), data)
}
