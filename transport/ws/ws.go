// Package ws carries transport channels over WebSocket connections.
//
// Each WebSocket message holds one frame encoded with the connection's
// codec, named by the "codec" query parameter of the upgrade request. JSON
// frames travel as text messages and all others as binary messages.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tailored-agentic-units/switchboard/codec"
	"github.com/tailored-agentic-units/switchboard/transport"
)

// Service is the registry name of the WebSocket port.
const Service = "WebSocket"

// CodecParam is the query parameter naming the frame codec.
const CodecParam = "codec"

var ErrMissingURL = errors.New("websocket port requires a url")

const writeWait = 10 * time.Second

// Option configures handlers and WebSocket ports.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
	buffer int
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithBufferSize sets how many received frames may wait for a reader.
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

// conn adapts a WebSocket connection to a transport channel. Writes are
// serialized; a single goroutine reads.
type conn struct {
	ws     *websocket.Conn
	codec  codec.Codec
	frames chan transport.Frame
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger

	writeMu sync.Mutex
}

func newConn(ws *websocket.Conn, c codec.Codec, s settings) *conn {
	cn := &conn{
		ws:     ws,
		codec:  c,
		frames: make(chan transport.Frame, s.buffer),
		done:   make(chan struct{}),
		logger: s.logger,
	}
	go cn.read()
	return cn
}

func (c *conn) messageType() int {
	if c.codec.Name() == "json" {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

func (c *conn) read() {
	defer close(c.frames)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.closed() {
				c.logger.Warn("websocket read failed", slog.String("error", err.Error()))
			}
			c.Close()
			return
		}

		frame, err := transport.DecodeFrame(c.codec, data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", slog.String("error", err.Error()))
			continue
		}

		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *conn) Send(ctx context.Context, frame transport.Frame) error {
	if c.closed() {
		return transport.ErrClosed
	}

	data, err := transport.EncodeFrame(c.codec, frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(c.messageType(), data); err != nil {
		if c.closed() {
			return transport.ErrClosed
		}
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (c *conn) Receive(ctx context.Context) (transport.Frame, error) {
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

func (c *conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}
