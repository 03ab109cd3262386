package ws

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cast"

	"github.com/tailored-agentic-units/switchboard/codec"
	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/port"
	"github.com/tailored-agentic-units/switchboard/transport"
)

// Dial connects to the handler at rawURL, exchanging frames encoded with c.
// http and https URLs are dialed as ws and wss.
func Dial(ctx context.Context, rawURL string, c codec.Codec, opts ...Option) (transport.Channel, error) {
	return dial(ctx, rawURL, c, newSettings(opts))
}

func dial(ctx context.Context, rawURL string, c codec.Codec, s settings) (transport.Channel, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("websocket url: %w", err)
	}
	switch target.Scheme {
	case "http":
		target.Scheme = "ws"
	case "https":
		target.Scheme = "wss"
	}
	query := target.Query()
	query.Set(CodecParam, c.Name())
	target.RawQuery = query.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	socket, _, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return newConn(socket, c, s), nil
}

// Register adds the WebSocket service to reg. WebSocket ports take a "url"
// arg and encode frames with the configured codec.
func Register(reg *port.Registry, opts ...Option) error {
	s := newSettings(opts)

	return reg.Register(Service, func(args any) (port.Port, error) {
		if msg, ok := args.(messaging.Message); ok {
			args = map[string]any(msg)
		}
		target := strings.TrimSpace(cast.ToStringMapString(args)["url"])
		if target == "" {
			return nil, ErrMissingURL
		}

		open := func(ctx context.Context, cfg config.Shared) (transport.Channel, error) {
			c, err := transport.CodecFor(cfg)
			if err != nil {
				return nil, err
			}
			return dial(ctx, target, c, s)
		}
		return transport.NewPort(Service, open, transport.WithLogger(s.logger)), nil
	})
}
