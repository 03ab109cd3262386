// Package hub provides the process-wide routing table of a context.
//
// The hub owns two tables: registered ports keyed by port id, and installed
// flows keyed by flow id. A flow is a directed, named edge from a source port
// to a destination port. Flow ids are opaque UUIDv7 strings allocated by
// Install; the name given at installation is a label, not part of the key,
// so the same (source, destination, name) triple may be installed any number
// of times and each installation yields a distinct id.
//
// # Delivery
//
// OnMessage is the sole delivery primitive. It resolves the flow id to its
// destination port and calls the port's OnMessage with the flow's name label:
//
//	flow, _ := h.Install(manager, worker.ID(), "control")
//	h.OnMessage(flow, messaging.Setup(reverse, cfg))
//	// worker.OnMessage("control", {type: setup, ...})
//
// Messages for an unknown or uninstalled flow are dropped with a warning;
// they are never delivered elsewhere.
//
// # Routing Loop
//
// A context is single-threaded. Everything that mutates routing state runs on
// one goroutine, the loop started by Run. Transport listeners and other
// goroutines re-enter the graph through Post and Schedule, which enqueue work
// for the loop:
//
//	go h.Run(ctx)
//	h.Post(flow, msg)          // from a transport listener
//	h.Schedule(func() { ... }) // run a closure on the loop
//
// Within one flow, messages posted from one goroutine are delivered in order.
//
// # Configuration Signal
//
// The hub's owner distributes context configuration with Configure. The Port
// Manager subscribes with OnConfig and defers setup work until it arrives.
//
// # Metrics
//
// Metrics reports registered ports, installed flows and routed/dropped
// message counts. NewCollector exposes the same values to Prometheus.
package hub
