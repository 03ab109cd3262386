// Package worker provides the Worker service: a transport port whose far
// side is a program running in its own goroutine, connected by an
// in-memory pipe.
//
// The program is chosen from the port's construction args when the port is
// opened: "script" holds JavaScript source, "url" names a script to retrieve
// through the resource registry, and "source" names a registered program.
// Without args the configured source is used.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cast"

	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/port"
	"github.com/tailored-agentic-units/switchboard/resource"
	"github.com/tailored-agentic-units/switchboard/transport"
	"github.com/tailored-agentic-units/switchboard/transport/script"
)

// Service is the registry name of the worker port.
const Service = "Worker"

var ErrUnknownProgram = errors.New("unknown worker program")

// Option configures worker ports.
type Option func(*settings)

type settings struct {
	logger    *slog.Logger
	resources *resource.Registry
	buffer    int
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithResources lets workers load scripts by url.
func WithResources(resources *resource.Registry) Option {
	return func(s *settings) { s.resources = resources }
}

// WithBufferSize sets the pipe buffer between a port and its program.
func WithBufferSize(size int) Option {
	return func(s *settings) { s.buffer = size }
}

// Register adds the Worker service to reg. programs maps source names to
// programs.
func Register(reg *port.Registry, programs map[string]transport.Program, opts ...Option) error {
	s := settings{logger: slog.Default(), buffer: 64}
	for _, opt := range opts {
		opt(&s)
	}

	return reg.Register(Service, func(args any) (port.Port, error) {
		if msg, ok := args.(messaging.Message); ok {
			args = map[string]any(msg)
		}
		params := cast.ToStringMapString(args)
		open := func(ctx context.Context, cfg config.Shared) (transport.Channel, error) {
			program, err := s.choose(ctx, params, cfg, programs)
			if err != nil {
				return nil, err
			}

			c, err := transport.CodecFor(cfg)
			if err != nil {
				return nil, err
			}

			local, remote := transport.NewPipe(c, s.buffer)
			go func() {
				defer remote.Close()
				if err := program(ctx, remote); err != nil {
					s.logger.WarnContext(ctx, "worker program failed", slog.String("error", err.Error()))
				}
			}()
			return local, nil
		}
		return transport.NewPort(Service, open, transport.WithLogger(s.logger)), nil
	})
}

func (s settings) choose(ctx context.Context, params map[string]string, cfg config.Shared, programs map[string]transport.Program) (transport.Program, error) {
	if source, ok := params["script"]; ok {
		return script.Program("inline", source, script.WithLogger(s.logger))
	}

	if url, ok := params["url"]; ok {
		if s.resources == nil {
			return nil, fmt.Errorf("%w: no resource registry for %s", ErrUnknownProgram, url)
		}
		source, err := s.resources.Retrieve(ctx, url)
		if err != nil {
			return nil, err
		}
		return script.Program(url, source, script.WithLogger(s.logger))
	}

	name := params["source"]
	if name == "" {
		name = cfg.Source
	}
	program, ok := programs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, name)
	}
	return program, nil
}
