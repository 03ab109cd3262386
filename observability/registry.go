package observability

import (
	"fmt"
	"log/slog"
	"sync"
)

var (
	observers = map[string]Observer{
		"noop": NoOpObserver{},
	}
	mutex sync.RWMutex
)

// GetObserver returns a registered observer by name. The name "slog" always
// resolves to a SlogObserver over logger (slog.Default() when nil) unless an
// observer was explicitly registered under that name.
func GetObserver(name string, logger *slog.Logger) (Observer, error) {
	mutex.RLock()
	obs, exists := observers[name]
	mutex.RUnlock()

	if exists {
		return obs, nil
	}

	if name == "slog" {
		if logger == nil {
			logger = slog.Default()
		}
		return NewSlogObserver(logger), nil
	}

	return nil, fmt.Errorf("unknown observer: %s", name)
}

// RegisterObserver adds or replaces a named observer in the global registry.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}
