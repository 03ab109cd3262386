package transport

import (
	"context"
	"sync"

	"github.com/tailored-agentic-units/switchboard/codec"
)

// NewPipe returns two connected channel ends. Frames are encoded with c on
// send and decoded on receive, so the ends share no memory. Closing either
// end closes both.
func NewPipe(c codec.Codec, size int) (Channel, Channel) {
	ab := make(chan []byte, size)
	ba := make(chan []byte, size)
	shared := &pipeState{done: make(chan struct{})}

	return &pipeEnd{codec: c, in: ba, out: ab, state: shared},
		&pipeEnd{codec: c, in: ab, out: ba, state: shared}
}

type pipeState struct {
	once sync.Once
	done chan struct{}
}

type pipeEnd struct {
	codec codec.Codec
	in    <-chan []byte
	out   chan<- []byte
	state *pipeState
}

func (p *pipeEnd) Send(ctx context.Context, f Frame) error {
	data, err := EncodeFrame(p.codec, f)
	if err != nil {
		return err
	}

	select {
	case <-p.state.done:
		return ErrClosed
	default:
	}

	select {
	case p.out <- data:
		return nil
	case <-p.state.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) (Frame, error) {
	select {
	case data := <-p.in:
		return DecodeFrame(p.codec, data)
	case <-p.state.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.state.once.Do(func() { close(p.state.done) })
	return nil
}
