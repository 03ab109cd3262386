// Package messaging provides the structured message primitives that cross
// every flow in the routing graph.
//
// A Message is a string-keyed map. It is deliberately untyped on the wire:
// transports deliver opaque structured values, and each receiver interprets
// the fields it understands. Typed interpretation happens at the edges
// (manager.ParseRequest for control traffic, api.Conform for application
// payloads).
//
// # Message Families
//
// Control requests, sent by a port down its control flow to the Port Manager:
//
//	messaging.LinkRequest("default", destination)
//	messaging.PortRequest("Worker", args)
//	messaging.DelegateRequest(flow)
//
// Manager notifications, sent by the Port Manager to a port's control flow:
//
//	messaging.Setup(reverse, cfg)
//	messaging.CreateLink(name, channel, reverse)
//	messaging.Delegation(flow, original)
//
// Proxy wire messages, exchanged on application flows:
//
//	messaging.MethodCall("sendMessage", []any{"bob", "hi"})
//	messaging.MethodReply("sendMessage", result)
//	messaging.Event("onMessage", value)
//	messaging.Announcement(channel)
//
// # Field Access
//
// Accessors return zero values for absent or mistyped fields so callers can
// inspect a message without type assertions:
//
//	if channel := msg.String(messaging.KeyChannel); channel != "" {
//	    ...
//	}
package messaging
