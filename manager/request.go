package manager

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/resource"
)

// RequestKind names a control request.
type RequestKind string

const (
	KindDebug    RequestKind = messaging.RequestDebug
	KindLink     RequestKind = messaging.RequestLink
	KindCreate   RequestKind = messaging.RequestCreate
	KindPort     RequestKind = messaging.RequestPort
	KindBindPort RequestKind = messaging.RequestBindPort
	KindDelegate RequestKind = messaging.RequestDelegate
	KindResource RequestKind = messaging.RequestResource
	KindCore     RequestKind = messaging.RequestCore
)

// Request is a parsed control request. The set of implementations is closed;
// ParseRequest is the only constructor from wire messages.
type Request interface {
	Kind() RequestKind
}

// DebugRequest asks the manager to print Message when debugging is enabled.
type DebugRequest struct {
	Message messaging.Message
}

// LinkRequest links the requester with To, which is either a port.Port or
// the id of a registered port. Name labels the flow back to the requester;
// OverrideDest labels the flow to To and defaults to "default".
type LinkRequest struct {
	Name         string
	To           any
	OverrideDest string
}

// CreateRequest asks the manager to set up the requester.
type CreateRequest struct{}

// PortRequest constructs a port of Service and links it to the requester.
// With ExposeManager the manager itself is passed as constructor args.
type PortRequest struct {
	Name          string
	Service       string
	Args          any
	ExposeManager bool
}

// BindPortRequest constructs a port of Service and links it to the
// controlled port ID on the flow "custom"+Port. The new port is notified.
type BindPortRequest struct {
	ID      string
	Port    string
	Service string
	Args    any
}

// DelegateRequest marks Flow for delegation to the requester.
type DelegateRequest struct {
	Flow string
}

// ResourceRequest contributes a resolver and a retriever for Service.
type ResourceRequest struct {
	Service   string
	Resolver  resource.Resolver
	Retriever resource.Retriever
}

// CoreRequest asks for the shared core capability.
type CoreRequest struct {
	Message messaging.Message
}

func (DebugRequest) Kind() RequestKind    { return KindDebug }
func (LinkRequest) Kind() RequestKind     { return KindLink }
func (CreateRequest) Kind() RequestKind   { return KindCreate }
func (PortRequest) Kind() RequestKind     { return KindPort }
func (BindPortRequest) Kind() RequestKind { return KindBindPort }
func (DelegateRequest) Kind() RequestKind { return KindDelegate }
func (ResourceRequest) Kind() RequestKind { return KindResource }
func (CoreRequest) Kind() RequestKind     { return KindCore }

// ParseRequest converts a control message into its typed request.
func ParseRequest(msg messaging.Message) (Request, error) {
	kind := RequestKind(msg.String(messaging.KeyRequest))

	switch kind {
	case KindDebug:
		return DebugRequest{Message: msg}, nil

	case KindLink:
		to, ok := msg[messaging.KeyTo]
		if !ok || to == nil {
			return nil, malformed(kind, messaging.KeyTo)
		}
		return LinkRequest{
			Name:         msg.String(messaging.KeyName),
			To:           to,
			OverrideDest: msg.String(messaging.KeyOverride),
		}, nil

	case KindCreate:
		return CreateRequest{}, nil

	case KindPort:
		service := msg.String(messaging.KeyService)
		if service == "" {
			return nil, malformed(kind, messaging.KeyService)
		}
		name := msg.String(messaging.KeyName)
		if name == "" {
			name = messaging.FlowDefault
		}
		return PortRequest{
			Name:          name,
			Service:       service,
			Args:          msg[messaging.KeyArgs],
			ExposeManager: msg.Bool(messaging.KeyExpose),
		}, nil

	case KindBindPort:
		id := msg.String(messaging.KeyID)
		if id == "" {
			return nil, malformed(kind, messaging.KeyID)
		}
		service := msg.String(messaging.KeyService)
		if service == "" {
			return nil, malformed(kind, messaging.KeyService)
		}
		var portName string
		if v, ok := msg[messaging.KeyPort]; ok && v != nil {
			portName = fmt.Sprint(v)
		}
		return BindPortRequest{
			ID:      id,
			Port:    portName,
			Service: service,
			Args:    msg[messaging.KeyArgs],
		}, nil

	case KindDelegate:
		flow := msg.String(messaging.KeyFlow)
		if flow == "" {
			return nil, malformed(kind, messaging.KeyFlow)
		}
		return DelegateRequest{Flow: flow}, nil

	case KindResource:
		args := msg.Slice(messaging.KeyArgs)
		if len(args) != 2 {
			return nil, malformed(kind, messaging.KeyArgs)
		}
		resolver, ok := asResolver(args[0])
		if !ok {
			return nil, malformed(kind, "resolver")
		}
		retriever, ok := asRetriever(args[1])
		if !ok {
			return nil, malformed(kind, "retriever")
		}
		return ResourceRequest{
			Service:   msg.String(messaging.KeyService),
			Resolver:  resolver,
			Retriever: retriever,
		}, nil

	case KindCore:
		return CoreRequest{Message: msg.Message(messaging.KeyMessage)}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequest, string(kind))
	}
}

func malformed(kind RequestKind, field string) error {
	return fmt.Errorf("%w: %s request missing %s", ErrMalformedRequest, kind, field)
}

func asResolver(v any) (resource.Resolver, bool) {
	switch fn := v.(type) {
	case nil:
		return nil, true
	case resource.Resolver:
		return fn, true
	case func(context.Context, string, string) (string, bool, error):
		return fn, true
	default:
		return nil, false
	}
}

func asRetriever(v any) (resource.Retriever, bool) {
	switch fn := v.(type) {
	case nil:
		return nil, true
	case resource.Retriever:
		return fn, true
	case func(context.Context, string) (string, error):
		return fn, true
	default:
		return nil, false
	}
}
