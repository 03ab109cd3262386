// Package port defines the participants of the routing graph.
//
// A Port is anything addressable by the hub: application proxies, transport
// adapters and the Port Manager itself. Ports receive messages through
// OnMessage, where flow is the name label of the route that delivered the
// message ("control", "default", or a port id for traffic arriving at the
// manager). Ports that also send implement Binder and receive a Router when
// registered.
package port

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/tailored-agentic-units/switchboard/messaging"
)

// Port is an addressable participant in the routing graph.
type Port interface {
	ID() string
	OnMessage(flow string, msg messaging.Message)
}

// Router is the sending side of the hub as seen by a registered port.
type Router interface {
	// OnMessage delivers msg along flow synchronously. It must only be
	// called from the routing loop.
	OnMessage(flow string, msg messaging.Message)

	// Post enqueues msg for delivery along flow from any goroutine.
	Post(flow string, msg messaging.Message) error

	// Schedule runs fn on the routing loop from any goroutine.
	Schedule(fn func()) error
}

// Binder is implemented by ports that send messages into the graph.
type Binder interface {
	Bind(router Router)
}

// Ref is a Port that carries only an identifier. It names an existing port
// without holding its receive capability.
type Ref string

func (r Ref) ID() string { return string(r) }

func (r Ref) OnMessage(string, messaging.Message) {}

func (r Ref) String() string { return "[" + string(r) + "]" }

// Describe returns p's textual description.
func Describe(p Port) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return "[" + p.ID() + "]"
}

// Sequence is an owned identifier generator. One Sequence is shared by
// reference among the components of a context that need process-unique
// numeric ids.
type Sequence struct {
	last atomic.Int64
}

// NewSequence returns a Sequence whose first id is start+1.
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.last.Store(start)
	return s
}

// Next returns the next id.
func (s *Sequence) Next() string {
	return strconv.FormatInt(s.last.Add(1), 10)
}
