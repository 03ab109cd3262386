// Package config provides configuration structures for a routing context.
//
// A context is one hub, its Port Manager and the ports they manage. Two
// configuration types describe it:
//
//   - HubConfig: settings for the hub itself (name, loop buffer, observer, logger)
//   - Shared: the configuration the Port Manager merges when the hub owner
//     signals it, and hands to every port it sets up
//
// Settings bundles both for file-based loading.
//
// # Default Configuration
//
//	cfg := config.DefaultHubConfig()
//	// Name: "default"
//	// ChannelBufferSize: 256
//	// Observer: "slog"
//	// Logger: slog.Default()
//
// # Readiness
//
// Shared.Global describes the host environment. The Port Manager treats a
// Shared value with a nil Global as "not yet configured" and defers setup and
// link operations until the hub's config signal delivers one.
//
// # Loading
//
// Load reads a JSON, YAML or TOML file through viper, applies SWITCHBOARD_
// environment overrides and merges the result over the defaults:
//
//	settings, err := config.Load("switchboard.yaml")
//	h := hub.New(ctx, settings.Hub)
//	h.Configure(settings.Shared)
//
// # Configuration Merging
//
// All configuration types support the Merge pattern: loaded values merge over
// defaults.
//
//   - Strings: Merge if source is non-empty
//   - Integers: Merge if source is greater than zero
//   - Booleans: Merge if source is true
//   - Maps: Keys from source overwrite keys in the destination
//   - Pointers: Merge if source is non-nil
package config
