package manager

import "github.com/tailored-agentic-units/switchboard/observability"

// Manager event types.
const (
	EventSetup          observability.EventType = "manager.setup"
	EventLinkCreate     observability.EventType = "manager.link.create"
	EventLinkRemove     observability.EventType = "manager.link.remove"
	EventDestroy        observability.EventType = "manager.destroy"
	EventDelegate       observability.EventType = "manager.delegate"
	EventRequestUnknown observability.EventType = "manager.request.unknown"
)

const signalConfig = "config"
