// Package codec encodes the frames carried by transport adapters.
//
// Every codec accepts the JSON data model (maps with string keys, slices,
// strings, numbers, bools, nil). Decoded maps are always map[string]any;
// the concrete numeric type of decoded numbers depends on the codec.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownCodec = errors.New("unknown codec")

// Codec marshals frame values.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps codec names and content types to codecs.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Codec
	byType map[string]Codec
}

// NewRegistry returns a registry preloaded with the JSON, CBOR and Protobuf
// codecs.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]Codec),
		byType: make(map[string]Codec),
	}
	r.Register(JSON())
	r.Register(Proto())
	if c, err := CBOR(); err == nil {
		r.Register(c)
	}
	return r
}

// Register adds c, replacing any codec of the same name or content type.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[c.Name()] = c
	r.byType[c.ContentType()] = c
}

// Get returns the codec registered under name.
func (r *Registry) Get(name string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
	return c, nil
}

// ForContentType returns the codec for a content type.
func (r *Registry) ForContentType(contentType string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byType[contentType]
	return c, ok
}

// Names returns the registered codec names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Get returns a codec from the default registry.
func Get(name string) (Codec, error) {
	return defaultRegistry.Get(name)
}
