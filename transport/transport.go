// Package transport bridges the routing graph across a context boundary.
//
// A Channel carries Frames, each a (flow, message) pair, between this
// context and another one. Port adapts a Channel to the routing graph: it
// forwards messages it receives to the far side and re-enters frames from
// the far side through the hub.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/switchboard/codec"
	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/messaging"
)

var ErrClosed = errors.New("channel closed")

// Frame is one message crossing a channel.
type Frame struct {
	Flow    string            `json:"flow" cbor:"flow"`
	Message messaging.Message `json:"message" cbor:"message"`
}

// Channel is a bidirectional, ordered frame channel.
type Channel interface {
	Send(ctx context.Context, frame Frame) error
	Receive(ctx context.Context) (Frame, error)
	Close() error
}

// Program runs the far side of a channel until the channel closes or ctx
// is done.
type Program func(ctx context.Context, ch Channel) error

// Opener connects a Port to its far side once the port is configured.
type Opener func(ctx context.Context, cfg config.Shared) (Channel, error)

// EncodeFrame marshals f with c.
func EncodeFrame(c codec.Codec, f Frame) ([]byte, error) {
	data, err := c.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame for %s: %w", f.Flow, err)
	}
	return data, nil
}

// DecodeFrame unmarshals a frame encoded by EncodeFrame.
func DecodeFrame(c codec.Codec, data []byte) (Frame, error) {
	var f Frame
	if err := c.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return f, nil
}

// CodecFor returns the codec named by cfg, or JSON when none is named.
func CodecFor(cfg config.Shared) (codec.Codec, error) {
	if cfg.Codec == "" {
		return codec.JSON(), nil
	}
	return codec.Get(cfg.Codec)
}
