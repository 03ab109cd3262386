package port

import "errors"

// Sentinel errors for the service registry.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrServiceExists   = errors.New("service already registered")
	ErrEmptyService    = errors.New("service name is empty")
)
