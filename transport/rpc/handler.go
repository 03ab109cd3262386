package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/switchboard/codec"
	"github.com/tailored-agentic-units/switchboard/transport"
)

// Handler hosts bridge sessions, running program once per session. Mount it
// at Path.
type Handler struct {
	program transport.Program
	logger  *slog.Logger
	buffer  int
	mux     *http.ServeMux

	mutex    sync.Mutex
	sessions map[string]transport.Channel
}

func NewHandler(program transport.Program, opts ...Option) *Handler {
	s := newSettings(opts)
	h := &Handler{
		program:  program,
		logger:   s.logger,
		buffer:   s.buffer,
		sessions: make(map[string]transport.Channel),
	}

	h.mux = http.NewServeMux()
	h.mux.Handle(ReceiveProcedure, connect.NewServerStreamHandler(ReceiveProcedure, h.receive))
	h.mux.Handle(SendProcedure, connect.NewUnaryHandler(SendProcedure, h.send))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Sessions returns the number of open sessions.
func (h *Handler) Sessions() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return len(h.sessions)
}

func (h *Handler) receive(ctx context.Context, req *connect.Request[emptypb.Empty], stream *connect.ServerStream[structpb.Struct]) error {
	id := req.Header().Get(SessionHeader)
	if id == "" {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: missing %s header", ErrNoSession, SessionHeader))
	}

	local, remote := transport.NewPipe(codec.JSON(), h.buffer)
	h.mutex.Lock()
	if _, exists := h.sessions[id]; exists {
		h.mutex.Unlock()
		return connect.NewError(connect.CodeAlreadyExists, fmt.Errorf("%w: %s", ErrSessionExists, id))
	}
	h.sessions[id] = local
	h.mutex.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		local.Close()
		h.mutex.Lock()
		delete(h.sessions, id)
		h.mutex.Unlock()
		h.logger.DebugContext(ctx, "bridge session closed", slog.String("session", id))
	}()

	go func() {
		defer remote.Close()
		if err := h.program(ctx, remote); err != nil {
			h.logger.WarnContext(ctx, "bridge program failed", slog.String("session", id), slog.String("error", err.Error()))
		}
	}()

	h.logger.DebugContext(ctx, "bridge session opened", slog.String("session", id))
	if err := stream.Send(&structpb.Struct{}); err != nil {
		return err
	}

	for {
		frame, err := local.Receive(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		s, err := codec.ToStruct(frame)
		if err != nil {
			h.logger.WarnContext(ctx, "dropping unencodable frame", slog.String("session", id), slog.String("flow", frame.Flow))
			continue
		}
		if err := stream.Send(s); err != nil {
			return err
		}
	}
}

func (h *Handler) send(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
	id := req.Header().Get(SessionHeader)

	h.mutex.Lock()
	local, ok := h.sessions[id]
	h.mutex.Unlock()
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("%w: %s", ErrNoSession, id))
	}

	var frame transport.Frame
	if err := codec.FromStruct(req.Msg, &frame); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := local.Send(ctx, frame); err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}
