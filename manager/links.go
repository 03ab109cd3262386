package manager

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sort"

	"github.com/tailored-agentic-units/switchboard/hub"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/observability"
	"github.com/tailored-agentic-units/switchboard/port"
)

// Setup registers p with the hub and installs its control flow pair: the
// manager-to-port flow labelled "control" and the port-to-manager flow
// labelled with the port id. p receives a setup message carrying its control
// channel and the shared configuration.
//
// Before the host configuration arrives, Setup is deferred and returns nil.
func (m *Manager) Setup(p port.Port) error {
	id := p.ID()
	if id == "" {
		m.logger.WarnContext(m.ctx, "refusing to set up unidentified port")
		return ErrUnidentifiedPort
	}

	if _, controlled := m.controlFlows[id]; controlled {
		m.logger.WarnContext(m.ctx, "refusing to re-initialize port", slog.String("port_id", id))
		return fmt.Errorf("%w: %s", ErrAlreadyControlled, id)
	}

	if !m.whenConfigured(func() { m.Setup(p) }) {
		m.logger.DebugContext(m.ctx, "deferring setup until configured", slog.String("port_id", id))
		return nil
	}

	if err := m.hub.Register(p); err != nil && !errors.Is(err, hub.ErrPortExists) {
		return fmt.Errorf("failed to register %s: %w", id, err)
	}

	flow, err := m.hub.Install(m, id, messaging.FlowControl)
	if err != nil {
		return fmt.Errorf("failed to install control flow: %w", err)
	}
	reverse, err := m.hub.Install(p, ID, id)
	if err != nil {
		m.hub.Uninstall(m, flow)
		return fmt.Errorf("failed to install control flow: %w", err)
	}

	m.controlFlows[id] = flow
	m.dataFlows[id] = []string{reverse}
	m.reverseFlows[flow] = reverse
	m.reverseFlows[reverse] = flow

	m.emit(EventSetup, observability.LevelInfo, map[string]any{
		"port_id": id,
		"control": flow,
		"reverse": reverse,
	})

	m.hub.OnMessage(flow, messaging.Setup(reverse, m.config.Clone()))
	return nil
}

// CreateLink installs a flow pair between source and destination: the
// outgoing flow source to destination labelled destName ("default" when
// empty), and the reverse flow labelled name. destination is set up first
// if it is not yet controlled.
//
// Only one side is told about the pair. With toDest the destination receives
// a createLink message down its control flow; otherwise the source does. The
// other side learns its channel from the first message it receives on it.
//
// Before the host configuration arrives, CreateLink is deferred and returns
// nil.
func (m *Manager) CreateLink(source port.Port, name string, destination port.Port, destName string, toDest bool) error {
	if !m.whenConfigured(func() { m.CreateLink(source, name, destination, destName, toDest) }) {
		m.logger.DebugContext(m.ctx, "deferring link until configured", slog.String("source", source.ID()))
		return nil
	}

	if _, controlled := m.dataFlows[source.ID()]; !controlled {
		m.logger.WarnContext(m.ctx, "refusing to link uncontrolled port", slog.String("port_id", source.ID()))
		return fmt.Errorf("%w: %s", ErrNotControlled, source.ID())
	}

	if _, controlled := m.controlFlows[destination.ID()]; !controlled {
		if err := m.Setup(destination); err != nil {
			return err
		}
	}

	outgoingName := destName
	if outgoingName == "" {
		outgoingName = messaging.FlowDefault
	}

	outgoing, err := m.hub.Install(source, destination.ID(), outgoingName)
	if err != nil {
		return fmt.Errorf("failed to install outgoing flow: %w", err)
	}

	destination, ok := m.hub.Destination(outgoing)
	if !ok {
		m.hub.Uninstall(source, outgoing)
		return fmt.Errorf("%w: %s", ErrInconsistentFlow, outgoing)
	}

	reverse, err := m.hub.Install(destination, source.ID(), name)
	if err != nil {
		m.hub.Uninstall(source, outgoing)
		return fmt.Errorf("failed to install reverse flow: %w", err)
	}

	m.reverseFlows[outgoing] = reverse
	m.reverseFlows[reverse] = outgoing
	m.dataFlows[source.ID()] = append(m.dataFlows[source.ID()], outgoing)
	m.dataFlows[destination.ID()] = append(m.dataFlows[destination.ID()], reverse)

	m.emit(EventLinkCreate, observability.LevelInfo, map[string]any{
		"source":      source.ID(),
		"destination": destination.ID(),
		"outgoing":    outgoing,
		"reverse":     reverse,
	})

	if toDest {
		m.hub.OnMessage(m.controlFlows[destination.ID()], messaging.CreateLink(outgoingName, reverse, outgoing))
	} else {
		m.hub.OnMessage(m.controlFlows[source.ID()], messaging.CreateLink(name, outgoing, reverse))
	}
	return nil
}

// RemoveLink uninstalls flow, owned by source, together with its reverse.
// A flow without a registered destination or paired reverse is left alone.
func (m *Manager) RemoveLink(source port.Port, flow string) error {
	partner, found := m.hub.Destination(flow)
	reverse, paired := m.reverseFlows[flow]
	route, routed := m.hub.Route(flow)

	if !found || !paired || !routed || route.Source != source.ID() {
		m.logger.WarnContext(
			m.ctx,
			"improperly registered flow to remove",
			slog.String("port_id", source.ID()),
			slog.String("flow", flow),
		)
		return fmt.Errorf("%w: %s", ErrInconsistentFlow, flow)
	}

	if err := m.hub.Uninstall(source, flow); err != nil {
		m.logger.WarnContext(m.ctx, "failed to uninstall flow", slog.String("flow", flow), slog.String("error", err.Error()))
	}
	if err := m.hub.Uninstall(partner, reverse); err != nil {
		m.logger.WarnContext(m.ctx, "failed to uninstall flow", slog.String("flow", reverse), slog.String("error", err.Error()))
	}

	delete(m.reverseFlows, flow)
	delete(m.reverseFlows, reverse)
	m.forget(partner.ID(), reverse)
	m.forget(source.ID(), flow)

	m.emit(EventLinkRemove, observability.LevelInfo, map[string]any{
		"port_id": source.ID(),
		"flow":    flow,
		"reverse": reverse,
	})
	return nil
}

// Destroy removes every flow owned by p, deregisters it and forgets its
// control bookkeeping. Ports that implement io.Closer are closed.
func (m *Manager) Destroy(p port.Port) error {
	id := p.ID()
	if id == "" {
		m.logger.WarnContext(m.ctx, "unable to tear down unidentified port")
		return ErrUnidentifiedPort
	}

	owned, controlled := m.dataFlows[id]
	if !controlled {
		m.logger.WarnContext(m.ctx, "unable to tear down uncontrolled port", slog.String("port_id", id))
		return fmt.Errorf("%w: %s", ErrNotControlled, id)
	}

	owned = slices.Clone(owned)
	for i := len(owned) - 1; i >= 0; i-- {
		m.RemoveLink(p, owned[i])
	}

	if control := m.controlFlows[id]; control != "" && control == m.delegate {
		m.delegate = ""
	}
	delete(m.controlFlows, id)
	delete(m.dataFlows, id)

	if err := m.hub.Deregister(p); err != nil {
		m.logger.WarnContext(m.ctx, "failed to deregister port", slog.String("port_id", id), slog.String("error", err.Error()))
	}

	m.emit(EventDestroy, observability.LevelInfo, map[string]any{
		"port_id": id,
		"flows":   len(owned),
	})

	if closer, ok := p.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			m.logger.WarnContext(m.ctx, "failed to close port", slog.String("port_id", id), slog.String("error", err.Error()))
		}
	}
	return nil
}

// ControlFlow returns the flow the manager uses to reach the control port of
// the port with the given id.
func (m *Manager) ControlFlow(id string) (string, bool) {
	flow, ok := m.controlFlows[id]
	return flow, ok
}

// Snapshot is a copy of the manager's routing bookkeeping.
type Snapshot struct {
	ControlFlows map[string]string
	DataFlows    map[string][]string
	ReverseFlows map[string]string
	Delegate     string
	Delegated    []string
	Pending      int
}

// Snapshot copies the manager's tables. It must be called from the routing
// loop, or while the loop is not running.
func (m *Manager) Snapshot() Snapshot {
	dataFlows := make(map[string][]string, len(m.dataFlows))
	for id, flows := range m.dataFlows {
		dataFlows[id] = slices.Clone(flows)
	}

	delegated := make([]string, 0, len(m.toDelegate))
	for flow := range m.toDelegate {
		delegated = append(delegated, flow)
	}
	sort.Strings(delegated)

	return Snapshot{
		ControlFlows: maps.Clone(m.controlFlows),
		DataFlows:    dataFlows,
		ReverseFlows: maps.Clone(m.reverseFlows),
		Delegate:     m.delegate,
		Delegated:    delegated,
		Pending:      m.signals.Pending(signalConfig),
	}
}

func (m *Manager) forget(id, flow string) {
	flows, controlled := m.dataFlows[id]
	if !controlled {
		return
	}
	if i := slices.Index(flows, flow); i >= 0 {
		m.dataFlows[id] = slices.Delete(flows, i, i+1)
	}
}
