package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/switchboard/codec"
	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/port"
	"github.com/tailored-agentic-units/switchboard/transport"
)

// Service is the registry name of the remote port.
const Service = "Remote"

type client struct {
	session string
	send    *connect.Client[structpb.Struct, emptypb.Empty]
	frames  chan transport.Frame
	done    chan struct{}
	cancel  context.CancelFunc
	once    sync.Once
	logger  *slog.Logger
}

// Dial opens a bridge session with the handler at baseURL. The session ends
// when the channel is closed or ctx is done.
func Dial(ctx context.Context, httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) (transport.Channel, error) {
	return dial(ctx, httpClient, baseURL, newSettings(nil), opts...)
}

func dial(ctx context.Context, httpClient connect.HTTPClient, baseURL string, s settings, opts ...connect.ClientOption) (transport.Channel, error) {
	session := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)

	receive := connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ReceiveProcedure, opts...)
	req := connect.NewRequest(&emptypb.Empty{})
	req.Header().Set(SessionHeader, session)

	stream, err := receive.CallServerStream(ctx, req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open bridge session: %w", err)
	}
	if !stream.Receive() {
		err := stream.Err()
		stream.Close()
		cancel()
		if err == nil {
			err = transport.ErrClosed
		}
		return nil, fmt.Errorf("failed to open bridge session: %w", err)
	}

	c := &client{
		session: session,
		send:    connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+SendProcedure, opts...),
		frames:  make(chan transport.Frame, s.buffer),
		done:    make(chan struct{}),
		cancel:  cancel,
		logger:  s.logger,
	}
	go c.read(ctx, stream)
	return c, nil
}

func (c *client) read(ctx context.Context, stream *connect.ServerStreamForClient[structpb.Struct]) {
	defer close(c.frames)
	defer stream.Close()

	for stream.Receive() {
		var frame transport.Frame
		if err := codec.FromStruct(stream.Msg(), &frame); err != nil {
			c.logger.WarnContext(ctx, "dropping malformed frame", slog.String("session", c.session), slog.String("error", err.Error()))
			continue
		}

		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		c.logger.WarnContext(ctx, "bridge stream failed", slog.String("session", c.session), slog.String("error", err.Error()))
	}
}

func (c *client) Send(ctx context.Context, frame transport.Frame) error {
	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}

	s, err := codec.ToStruct(frame)
	if err != nil {
		return err
	}
	req := connect.NewRequest(s)
	req.Header().Set(SessionHeader, c.session)
	if _, err := c.send.CallUnary(ctx, req); err != nil {
		return fmt.Errorf("failed to send frame for %s: %w", frame.Flow, err)
	}
	return nil
}

func (c *client) Receive(ctx context.Context) (transport.Frame, error) {
	select {
	case frame, ok := <-c.frames:
		if !ok {
			return transport.Frame{}, transport.ErrClosed
		}
		return frame, nil
	case <-c.done:
		return transport.Frame{}, transport.ErrClosed
	case <-ctx.Done():
		return transport.Frame{}, ctx.Err()
	}
}

func (c *client) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
	})
	return nil
}

// Register adds the Remote service to reg. Remote ports take a "url" arg
// naming the base URL of a bridge handler. Frames use the Connect JSON
// encoding when the configured codec is "json" and binary Protobuf
// otherwise.
func Register(reg *port.Registry, httpClient connect.HTTPClient, opts ...Option) error {
	s := newSettings(opts)

	return reg.Register(Service, func(args any) (port.Port, error) {
		if msg, ok := args.(messaging.Message); ok {
			args = map[string]any(msg)
		}
		url := cast.ToStringMapString(args)["url"]
		if url == "" {
			return nil, ErrMissingURL
		}

		open := func(ctx context.Context, cfg config.Shared) (transport.Channel, error) {
			var clientOpts []connect.ClientOption
			if cfg.Codec == "json" {
				clientOpts = append(clientOpts, connect.WithProtoJSON())
			}
			return dial(ctx, httpClient, url, s, clientOpts...)
		}
		return transport.NewPort(Service, open, transport.WithLogger(s.logger)), nil
	})
}
