// Package script runs JavaScript programs on the far side of a transport
// channel.
//
// A script receives frames through a global onmessage function, called with
// an event object {flow, message}, and sends frames with the global
// postMessage(flow, message). console.log writes to the program's logger.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dop251/goja"

	"github.com/tailored-agentic-units/switchboard/transport"
)

var ErrNoHandler = errors.New("script defines no onmessage handler")

// Option configures a script program.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// Program compiles source and returns a transport program running it. Each
// run gets its own runtime. name labels the script in errors and logs.
func Program(name, source string, opts ...Option) (transport.Program, error) {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}

	compiled, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile script %s: %w", name, err)
	}

	return func(ctx context.Context, ch transport.Channel) error {
		return run(ctx, ch, name, compiled, s.logger)
	}, nil
}

func run(ctx context.Context, ch transport.Channel, name string, compiled *goja.Program, logger *slog.Logger) error {
	vm := goja.New()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	console := vm.NewObject()
	console.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		logger.InfoContext(ctx, fmt.Sprint(args...), slog.String("script", name))
		return goja.Undefined()
	})
	vm.Set("console", console)

	vm.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		if goja.IsUndefined(call.Argument(0)) {
			panic(vm.NewTypeError("postMessage: flow is required"))
		}
		flow := call.Argument(0).String()

		msg, ok := call.Argument(1).Export().(map[string]any)
		if !ok {
			panic(vm.NewTypeError("postMessage: message must be an object"))
		}
		if err := ch.Send(ctx, transport.Frame{Flow: flow, Message: msg}); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})

	if _, err := vm.RunProgram(compiled); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("script %s failed: %w", name, err)
	}

	handler, ok := goja.AssertFunction(vm.Get("onmessage"))
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, name)
	}

	for {
		frame, err := ch.Receive(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		event := map[string]any{
			"flow":    frame.Flow,
			"message": map[string]any(frame.Message),
		}
		if _, err := handler(goja.Undefined(), vm.ToValue(event)); err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				return nil
			}
			logger.WarnContext(
				ctx,
				"script handler failed",
				slog.String("script", name),
				slog.String("flow", frame.Flow),
				slog.String("error", err.Error()),
			)
		}
	}
}
