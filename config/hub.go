package config

import "log/slog"

// HubConfig defines configuration for a Hub instance.
type HubConfig struct {
	// Hub identity
	Name string `json:"name" mapstructure:"name"`

	// Initial capacity of the queue feeding the routing loop. The queue grows
	// past it rather than blocking senders.
	ChannelBufferSize int `json:"channel_buffer_size" mapstructure:"channel_buffer_size"`

	// Observer names the observability.Observer receiving routing events
	Observer string `json:"observer" mapstructure:"observer"`

	// Observability
	Logger *slog.Logger `json:"-" mapstructure:"-"`
}

// DefaultHubConfig returns a HubConfig with sensible defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Name:              "default",
		ChannelBufferSize: 256,
		Observer:          "slog",
		Logger:            slog.Default(),
	}
}

func (c *HubConfig) Merge(source *HubConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.ChannelBufferSize > 0 {
		c.ChannelBufferSize = source.ChannelBufferSize
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
