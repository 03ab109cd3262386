// Package api turns declarative API templates into callable interfaces.
//
// A Template lists named members, each a property, a method or an event,
// with positional type tags (string, number, bool, object, callback).
// Conform coerces values crossing a channel to those tags. A value of the
// wrong shape is converted, never rejected, and objects are deep-copied so a
// receiver never holds a reference into the sender's memory.
//
// NewFactory builds consumer interfaces whose methods send calls and return
// pending results matched to replies in FIFO order. NewProviderFactory builds
// the serving side.
package api
