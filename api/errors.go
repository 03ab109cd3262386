package api

import "errors"

var (
	ErrInvalidTemplate     = errors.New("invalid api template")
	ErrUnknownMethod       = errors.New("unknown method")
	ErrUnknownEvent        = errors.New("unknown event")
	ErrPropertyUnsupported = errors.New("properties are not supported")
)
