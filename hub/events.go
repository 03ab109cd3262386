package hub

import "github.com/tailored-agentic-units/switchboard/observability"

// Hub event types.
const (
	EventPortRegister   observability.EventType = "hub.port.register"
	EventPortDeregister observability.EventType = "hub.port.deregister"
	EventFlowInstall    observability.EventType = "hub.flow.install"
	EventFlowUninstall  observability.EventType = "hub.flow.uninstall"
	EventMessageDropped observability.EventType = "hub.message.dropped"
)

// SignalConfig is raised by Configure.
const SignalConfig = "config"
