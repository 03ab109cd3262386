package hub

import "errors"

// Sentinel errors for routing table operations.
var (
	ErrUnidentifiedPort = errors.New("port has no id")
	ErrPortExists       = errors.New("port already registered")
	ErrPortNotFound     = errors.New("port not found")
	ErrFlowNotFound     = errors.New("flow not found")
	ErrFlowOwnership    = errors.New("flow does not belong to port")
)
