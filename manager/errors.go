package manager

import "errors"

var (
	ErrUnidentifiedPort  = errors.New("unidentified port")
	ErrAlreadyControlled = errors.New("port already controlled")
	ErrNotControlled     = errors.New("port not controlled")
	ErrInconsistentFlow  = errors.New("improperly registered flow")
	ErrUnknownService    = errors.New("unknown port service")
	ErrNoCore            = errors.New("no core available")

	ErrUnknownRequest   = errors.New("unknown control request")
	ErrMalformedRequest = errors.New("malformed control request")
)
