// Package manager implements the Port Manager, the privileged "control" port
// of a routing context.
//
// Every port is first wired to the manager: Setup registers it with the hub
// and installs a control flow pair, after which the port may issue control
// requests (link, create, port, bindport, delegate, resource, core) down its
// control channel. The manager owns three tables:
//
//   - controlFlows: port id to the manager-to-port control flow
//   - dataFlows: port id to the flows that port owns, for teardown
//   - reverseFlows: flow id to its paired flow in the opposite direction
//
// The manager is confined to the hub's routing loop. Its tables are not
// guarded by a lock; every operation leaves them mutually consistent before
// sending any message, because delivery may re-enter the manager.
//
// Operations that need the host configuration are deferred until the hub
// raises its config signal and are then replayed exactly once.
package manager
