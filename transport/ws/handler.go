package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/tailored-agentic-units/switchboard/codec"
	"github.com/tailored-agentic-units/switchboard/transport"
)

// Handler upgrades requests to WebSocket connections and runs program on
// each one until either side closes.
type Handler struct {
	program     transport.Program
	upgrader    websocket.Upgrader
	settings    settings
	connections atomic.Int64
}

func NewHandler(program transport.Program, opts ...Option) *Handler {
	return &Handler{
		program:  program,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		settings: newSettings(opts),
	}
}

// Connections returns the number of open connections.
func (h *Handler) Connections() int {
	return int(h.connections.Load())
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := codec.JSON()
	if name := r.URL.Query().Get(CodecParam); name != "" {
		var err error
		if c, err = codec.Get(name); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.settings.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.connections.Add(1)
	defer h.connections.Add(-1)

	ch := newConn(socket, c, h.settings)
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-ch.done
		cancel()
	}()

	h.settings.logger.DebugContext(ctx, "websocket connected", slog.String("remote", r.RemoteAddr), slog.String("codec", c.Name()))
	if err := h.program(ctx, ch); err != nil {
		h.settings.logger.WarnContext(ctx, "websocket program failed", slog.String("error", err.Error()))
	}
}
