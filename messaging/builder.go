package messaging

// Control request kinds carried in the request field.
const (
	RequestDebug    = "debug"
	RequestLink     = "link"
	RequestCreate   = "create"
	RequestPort     = "port"
	RequestBindPort = "bindport"
	RequestDelegate = "delegate"
	RequestResource = "resource"
	RequestCore     = "core"
	RequestHandle   = "handle"
)

// Message types emitted by the Port Manager and proxies.
const (
	TypeSetup        = "setup"
	TypeCreateLink   = "createLink"
	TypeDelegation   = "Delegation"
	TypeCore         = "core"
	TypeAnnouncement = "channel announcement"
)

// Proxy wire actions.
const (
	ActionMethod = "method"
	ActionEvent  = "event"
)

// Flow names with fixed meaning.
const (
	FlowControl = "control"
	FlowDefault = "default"
)

func DebugRequest(payload any) Message {
	return Message{KeyRequest: RequestDebug, KeyMessage: payload}
}

// LinkRequest asks the manager to link the sender with to, which may be a
// port value or a registered port id. The reverse flow is labelled name.
func LinkRequest(name string, to any) Message {
	return Message{KeyRequest: RequestLink, KeyName: name, KeyTo: to}
}

func CreateRequest() Message {
	return Message{KeyRequest: RequestCreate}
}

// PortRequest asks the manager to construct service with args and link it
// to the sender.
func PortRequest(service string, args any) Message {
	return Message{KeyRequest: RequestPort, KeyService: service, KeyArgs: args}
}

func BindPortRequest(id, port, service string, args any) Message {
	return Message{
		KeyRequest: RequestBindPort,
		KeyID:      id,
		KeyPort:    port,
		KeyService: service,
		KeyArgs:    args,
	}
}

func DelegateRequest(flow string) Message {
	return Message{KeyRequest: RequestDelegate, KeyFlow: flow}
}

// ResourceRequest registers a resolver and a retriever for service. Both are
// in-process function values and never cross a transport.
func ResourceRequest(service string, resolver, retriever any) Message {
	return Message{
		KeyRequest: RequestResource,
		KeyService: service,
		KeyArgs:    []any{resolver, retriever},
	}
}

func CoreRequest(message Message) Message {
	return Message{KeyRequest: RequestCore, KeyMessage: message}
}

// Setup tells a newly controlled port the id of its flow back to the manager.
func Setup(channel string, config any) Message {
	return Message{KeyType: TypeSetup, KeyChannel: channel, KeyConfig: config}
}

// CreateLink announces a new flow pair. channel is the flow the recipient
// sends on; reverse is the flow it will receive on.
func CreateLink(name, channel, reverse string) Message {
	msg := Message{KeyType: TypeCreateLink, KeyChannel: channel, KeyReverse: reverse}
	if name != "" {
		msg[KeyName] = name
	}
	return msg
}

func Delegation(flow string, message Message) Message {
	return Message{
		KeyType:    TypeDelegation,
		KeyRequest: RequestHandle,
		KeyQuiet:   true,
		KeyFlow:    flow,
		KeyMessage: message,
	}
}

func CoreReply(core any) Message {
	return Message{KeyType: TypeCore, KeyCore: core}
}

func MethodCall(name string, args []any) Message {
	return Message{KeyAction: ActionMethod, KeyType: name, KeyValue: args}
}

func MethodReply(name string, value any) Message {
	return Message{KeyAction: ActionMethod, KeyType: name, KeyValue: value}
}

func Event(name string, value any) Message {
	return Message{KeyAction: ActionEvent, KeyType: name, KeyValue: value}
}

// Announcement relays a reverse flow id to the far end of a channel so it
// can discover where to reply.
func Announcement(channel string) Message {
	return Message{KeyType: TypeAnnouncement, KeyChannel: channel}
}
