// Package rpc carries transport channels over Connect RPC.
//
// A bridge session is two procedures on the switchboard.v1.Bridge service.
// Receive is a server stream delivering frames from the remote program;
// its first message is an empty marker sent once the session exists. Send
// is a unary call delivering one frame to the program. Both calls name
// their session in the Switchboard-Session header. Frames travel as
// google.protobuf.Struct values.
package rpc

import (
	"errors"
	"log/slog"
)

const (
	ServiceName      = "switchboard.v1.Bridge"
	Path             = "/switchboard.v1.Bridge/"
	ReceiveProcedure = "/switchboard.v1.Bridge/Receive"
	SendProcedure    = "/switchboard.v1.Bridge/Send"
	SessionHeader    = "Switchboard-Session"
)

var (
	ErrNoSession     = errors.New("no such session")
	ErrSessionExists = errors.New("session already open")
	ErrMissingURL    = errors.New("remote port requires a url")
)

// Option configures handlers and remote ports.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
	buffer int
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithBufferSize sets the frame buffer of each session.
func WithBufferSize(size int) Option {
	return func(s *settings) { s.buffer = size }
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default(), buffer: 64}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
