package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/emitter"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/port"
)

// SignalStarted is raised once the far side is connected.
const SignalStarted = "started"

// Option configures a Port.
type Option func(*settings)

type settings struct {
	logger     *slog.Logger
	bufferSize int
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithBufferSize sets how many outbound frames may wait for the writer.
func WithBufferSize(size int) Option {
	return func(s *settings) { s.bufferSize = size }
}

// Port adapts a Channel to the routing graph.
//
// The first control message carrying a channel field tells the port its
// control channel and configuration; the port then opens its Channel. Messages
// received before the Channel is open are queued behind the started signal
// and sent in order. Frames arriving from the far side are posted to the hub;
// frames addressed to flow "control" go to the port's control channel.
type Port struct {
	id     string
	open   Opener
	outbox chan Frame

	mutex          sync.Mutex
	router         port.Router
	config         config.Shared
	controlChannel string
	channel        Channel
	starting       bool
	started        bool

	signals *emitter.Emitter
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPort creates a port whose id is kind followed by a random uuid.
func NewPort(kind string, open Opener, opts ...Option) *Port {
	s := settings{logger: slog.Default(), bufferSize: 256}
	for _, opt := range opts {
		opt(&s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Port{
		id:      kind + " " + uuid.NewString(),
		open:    open,
		outbox:  make(chan Frame, s.bufferSize),
		config:  config.DefaultShared(),
		signals: emitter.New(),
		logger:  s.logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (p *Port) ID() string {
	return p.id
}

func (p *Port) String() string {
	return "[" + p.id + "]"
}

func (p *Port) Bind(router port.Router) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.router = router
}

// Config returns the configuration received with the control channel.
func (p *Port) Config() config.Shared {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.config.Clone()
}

// Started reports whether the far side is connected.
func (p *Port) Started() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.started
}

// OnStarted runs fn once the far side is connected, immediately if it
// already is.
func (p *Port) OnStarted(fn func()) {
	p.mutex.Lock()
	if !p.started {
		p.signals.Once(SignalStarted, func(any) { fn() })
		p.mutex.Unlock()
		return
	}
	p.mutex.Unlock()
	fn()
}

func (p *Port) OnMessage(flow string, msg messaging.Message) {
	p.mutex.Lock()

	if flow == messaging.FlowControl && p.controlChannel == "" {
		channel := msg.String(messaging.KeyChannel)
		if channel == "" {
			p.mutex.Unlock()
			return
		}
		p.controlChannel = channel
		if cfg, err := config.DecodeShared(msg[messaging.KeyConfig]); err == nil {
			p.config.Merge(&cfg)
		} else {
			p.logger.WarnContext(p.ctx, "ignoring malformed config", slog.String("port_id", p.id), slog.String("error", err.Error()))
		}
		p.mutex.Unlock()

		p.Start()
		return
	}

	if !p.started {
		p.signals.Once(SignalStarted, func(any) { p.OnMessage(flow, msg) })
		p.mutex.Unlock()
		return
	}
	p.mutex.Unlock()

	select {
	case p.outbox <- Frame{Flow: flow, Message: msg}:
	case <-p.ctx.Done():
	}
}

// Start opens the channel off the routing loop and marks the port started
// on the loop. It has no effect after the first call.
func (p *Port) Start() {
	p.mutex.Lock()
	if p.starting {
		p.mutex.Unlock()
		return
	}
	p.starting = true
	cfg := p.config.Clone()
	router := p.router
	p.mutex.Unlock()

	go func() {
		ch, err := p.open(p.ctx, cfg)
		if err != nil {
			p.logger.WarnContext(p.ctx, "failed to open channel", slog.String("port_id", p.id), slog.String("error", err.Error()))
			return
		}
		if router == nil {
			p.ready(ch)
			return
		}
		if err := router.Schedule(func() { p.ready(ch) }); err != nil {
			ch.Close()
		}
	}()
}

func (p *Port) ready(ch Channel) {
	p.mutex.Lock()
	p.channel = ch
	p.started = true
	p.mutex.Unlock()

	go p.write(ch)
	go p.listen(ch)

	p.logger.DebugContext(p.ctx, "channel started", slog.String("port_id", p.id))
	p.signals.Emit(SignalStarted, nil)
}

func (p *Port) write(ch Channel) {
	for {
		select {
		case frame := <-p.outbox:
			if err := ch.Send(p.ctx, frame); err != nil {
				if p.ctx.Err() != nil {
					return
				}
				p.logger.WarnContext(
					p.ctx,
					"failed to send frame",
					slog.String("port_id", p.id),
					slog.String("flow", frame.Flow),
					slog.String("error", err.Error()),
				)
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Port) listen(ch Channel) {
	for {
		frame, err := ch.Receive(p.ctx)
		if err != nil {
			if p.ctx.Err() == nil && !errors.Is(err, ErrClosed) {
				p.logger.WarnContext(p.ctx, "channel receive failed", slog.String("port_id", p.id), slog.String("error", err.Error()))
			}
			return
		}

		p.mutex.Lock()
		flow := frame.Flow
		if flow == messaging.FlowControl && p.controlChannel != "" {
			flow = p.controlChannel
		}
		router := p.router
		p.mutex.Unlock()

		if router == nil {
			continue
		}
		if err := router.Post(flow, frame.Message); err != nil {
			return
		}
	}
}

// Close disconnects the far side.
func (p *Port) Close() error {
	p.cancel()

	p.mutex.Lock()
	ch := p.channel
	p.mutex.Unlock()

	if ch != nil {
		return ch.Close()
	}
	return nil
}
