package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/emitter"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/observability"
	"github.com/tailored-agentic-units/switchboard/port"
)

// Route is one installed flow.
type Route struct {
	ID          string
	Source      string
	Destination string
	Name        string
}

type Hub interface {
	port.Router

	Name() string

	Register(p port.Port) error
	Deregister(p port.Port) error
	Lookup(id string) (port.Port, bool)

	Install(source port.Port, destination, name string) (string, error)
	Uninstall(source port.Port, flow string) error
	Destination(flow string) (port.Port, bool)
	Route(flow string) (Route, bool)

	Configure(cfg config.Shared)
	OnConfig(fn func(config.Shared)) func()

	Run(ctx context.Context) error
	Metrics() MetricsSnapshot
	Shutdown()
}

type envelope struct {
	flow    string
	message messaging.Message
	fn      func()
}

type hub struct {
	name string

	ports  map[string]port.Port
	routes map[string]Route
	mutex  sync.RWMutex

	inbox   *mailbox[envelope]
	signals *emitter.Emitter

	logger   *slog.Logger
	observer observability.Observer
	metrics  *Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

func New(ctx context.Context, hubConfig config.HubConfig) Hub {
	cfg := config.DefaultHubConfig()
	cfg.Merge(&hubConfig)

	hubCtx, cancel := context.WithCancel(ctx)

	observer, err := observability.GetObserver(cfg.Observer, cfg.Logger)
	if err != nil {
		cfg.Logger.WarnContext(
			ctx,
			"falling back to noop observer",
			slog.String("hub_name", cfg.Name),
			slog.String("error", err.Error()),
		)
		observer = observability.NoOpObserver{}
	}

	return &hub{
		name:     cfg.Name,
		ports:    make(map[string]port.Port),
		routes:   make(map[string]Route),
		inbox:    newMailbox[envelope](hubCtx, cfg.ChannelBufferSize),
		signals:  emitter.New(),
		logger:   cfg.Logger,
		observer: observer,
		metrics:  NewMetrics(),
		ctx:      hubCtx,
		cancel:   cancel,
	}
}

func (h *hub) Name() string {
	return h.name
}

func (h *hub) String() string {
	return "[Hub " + h.name + "]"
}

func (h *hub) Register(p port.Port) error {
	id := p.ID()
	if id == "" {
		h.logger.WarnContext(h.ctx, "refusing to register unidentified port", slog.String("hub_name", h.name))
		return ErrUnidentifiedPort
	}

	h.mutex.Lock()
	if _, exists := h.ports[id]; exists {
		h.mutex.Unlock()
		h.logger.WarnContext(
			h.ctx,
			"refusing to re-register port",
			slog.String("hub_name", h.name),
			slog.String("port_id", id),
		)
		return fmt.Errorf("%w: %s", ErrPortExists, id)
	}
	h.ports[id] = p
	h.mutex.Unlock()

	if binder, ok := p.(port.Binder); ok {
		binder.Bind(h)
	}

	h.metrics.RecordPort(1)
	h.emit(EventPortRegister, observability.LevelVerbose, map[string]any{"port_id": id})
	return nil
}

func (h *hub) Deregister(p port.Port) error {
	id := p.ID()

	h.mutex.Lock()
	_, exists := h.ports[id]
	delete(h.ports, id)
	h.mutex.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrPortNotFound, id)
	}

	h.metrics.RecordPort(-1)
	h.emit(EventPortDeregister, observability.LevelVerbose, map[string]any{"port_id": id})
	return nil
}

func (h *hub) Lookup(id string) (port.Port, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	p, exists := h.ports[id]
	return p, exists
}

func (h *hub) Install(source port.Port, destination, name string) (string, error) {
	h.mutex.Lock()
	if _, exists := h.ports[destination]; !exists {
		h.mutex.Unlock()
		h.logger.WarnContext(
			h.ctx,
			"refusing to install flow to unregistered port",
			slog.String("hub_name", h.name),
			slog.String("source", source.ID()),
			slog.String("destination", destination),
			slog.String("name", name),
		)
		return "", fmt.Errorf("%w: %s", ErrPortNotFound, destination)
	}

	id := generateFlowID()
	for {
		if _, taken := h.routes[id]; !taken {
			break
		}
		id = generateFlowID()
	}

	h.routes[id] = Route{
		ID:          id,
		Source:      source.ID(),
		Destination: destination,
		Name:        name,
	}
	h.mutex.Unlock()

	h.metrics.RecordFlow(1)
	h.emit(EventFlowInstall, observability.LevelVerbose, map[string]any{
		"flow":        id,
		"source":      source.ID(),
		"destination": destination,
		"name":        name,
	})
	return id, nil
}

func (h *hub) Uninstall(source port.Port, flow string) error {
	h.mutex.Lock()
	route, exists := h.routes[flow]
	if !exists {
		h.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrFlowNotFound, flow)
	}
	if route.Source != source.ID() {
		h.mutex.Unlock()
		h.logger.WarnContext(
			h.ctx,
			"refusing to uninstall flow owned by another port",
			slog.String("hub_name", h.name),
			slog.String("flow", flow),
			slog.String("owner", route.Source),
			slog.String("requester", source.ID()),
		)
		return fmt.Errorf("%w: %s", ErrFlowOwnership, flow)
	}
	delete(h.routes, flow)
	h.mutex.Unlock()

	h.metrics.RecordFlow(-1)
	h.emit(EventFlowUninstall, observability.LevelVerbose, map[string]any{
		"flow":   flow,
		"source": route.Source,
	})
	return nil
}

func (h *hub) Destination(flow string) (port.Port, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	route, exists := h.routes[flow]
	if !exists {
		return nil, false
	}
	p, exists := h.ports[route.Destination]
	return p, exists
}

func (h *hub) Route(flow string) (Route, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	route, exists := h.routes[flow]
	return route, exists
}

func (h *hub) OnMessage(flow string, msg messaging.Message) {
	h.mutex.RLock()
	route, exists := h.routes[flow]
	var destination port.Port
	if exists {
		destination = h.ports[route.Destination]
	}
	h.mutex.RUnlock()

	if !exists {
		h.drop(flow, "message for unknown flow")
		return
	}
	if destination == nil {
		h.drop(flow, "message for deregistered destination")
		return
	}

	h.metrics.RecordRouted(1)
	destination.OnMessage(route.Name, msg)
}

func (h *hub) Post(flow string, msg messaging.Message) error {
	if err := h.inbox.send(h.ctx, envelope{flow: flow, message: msg}); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	h.metrics.RecordPosted(1)
	return nil
}

func (h *hub) Schedule(fn func()) error {
	if err := h.inbox.send(h.ctx, envelope{fn: fn}); err != nil {
		return fmt.Errorf("failed to schedule work: %w", err)
	}
	return nil
}

// Run processes posted messages and scheduled work in arrival order until
// ctx is done or the hub is shut down.
func (h *hub) Run(ctx context.Context) error {
	h.logger.DebugContext(ctx, "routing loop started", slog.String("hub_name", h.name))

	for {
		env, err := h.inbox.receive(ctx)
		if err != nil {
			h.logger.DebugContext(
				ctx,
				"routing loop stopped",
				slog.String("hub_name", h.name),
				slog.String("reason", err.Error()),
			)
			return err
		}

		if env.fn != nil {
			env.fn()
			continue
		}
		h.OnMessage(env.flow, env.message)
	}
}

func (h *hub) Configure(cfg config.Shared) {
	h.signals.Emit(SignalConfig, cfg)
}

func (h *hub) OnConfig(fn func(config.Shared)) func() {
	return h.signals.On(SignalConfig, func(v any) {
		if cfg, ok := v.(config.Shared); ok {
			fn(cfg)
		}
	})
}

func (h *hub) Metrics() MetricsSnapshot {
	snapshot := h.metrics.Snapshot()
	snapshot.Backlog = int64(h.inbox.length())
	return snapshot
}

func (h *hub) Shutdown() {
	h.logger.DebugContext(h.ctx, "shutting down hub", slog.String("hub_name", h.name))
	h.cancel()
}

func (h *hub) drop(flow, reason string) {
	h.metrics.RecordDropped(1)
	h.logger.WarnContext(
		h.ctx,
		reason,
		slog.String("hub_name", h.name),
		slog.String("flow", flow),
	)
	h.emit(EventMessageDropped, observability.LevelWarning, map[string]any{"flow": flow})
}

func (h *hub) emit(typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(h.ctx, h.observer, typ, level, h.String(), data)
}

func generateFlowID() string {
	return uuid.Must(uuid.NewV7()).String()
}
