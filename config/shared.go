package config

import (
	"fmt"
	"maps"

	"github.com/go-viper/mapstructure/v2"
)

// Shared is the context-wide configuration distributed by the Port Manager.
// It travels inside setup messages, so every field must be serializable.
type Shared struct {
	// Debug enables printing of debug control requests
	Debug bool `json:"debug" mapstructure:"debug"`

	// Source names the default program for worker ports
	Source string `json:"source,omitempty" mapstructure:"source"`

	// Codec names the frame codec used by transport adapters ("json", "cbor", "proto")
	Codec string `json:"codec,omitempty" mapstructure:"codec"`

	// Global describes the host environment. Nil until configured.
	Global map[string]any `json:"global,omitempty" mapstructure:"global"`
}

// DefaultShared returns an unconfigured Shared value.
func DefaultShared() Shared {
	return Shared{
		Codec: "json",
	}
}

// Ready reports whether the host environment has been supplied.
func (c *Shared) Ready() bool {
	return c.Global != nil
}

func (c *Shared) Merge(source *Shared) {
	if source.Debug {
		c.Debug = source.Debug
	}

	if source.Source != "" {
		c.Source = source.Source
	}

	if source.Codec != "" {
		c.Codec = source.Codec
	}

	if source.Global != nil {
		if c.Global == nil {
			c.Global = make(map[string]any, len(source.Global))
		}
		maps.Copy(c.Global, source.Global)
	}
}

// Clone returns a copy of c that shares no maps with it.
func (c Shared) Clone() Shared {
	if c.Global != nil {
		c.Global = maps.Clone(c.Global)
	}
	return c
}

// DecodeShared reads a Shared value received in a message. In-process
// senders pass Shared itself; values that crossed a codec arrive as maps.
func DecodeShared(v any) (Shared, error) {
	switch c := v.(type) {
	case nil:
		return Shared{}, nil
	case Shared:
		return c.Clone(), nil
	case *Shared:
		return c.Clone(), nil
	}

	var out Shared
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return Shared{}, fmt.Errorf("failed to decode shared config: %w", err)
	}
	if err := decoder.Decode(v); err != nil {
		return Shared{}, fmt.Errorf("failed to decode shared config: %w", err)
	}
	return out, nil
}
