package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tailored-agentic-units/switchboard/api"
	"github.com/tailored-agentic-units/switchboard/hub"
	"github.com/tailored-agentic-units/switchboard/manager"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/port"
	"github.com/tailored-agentic-units/switchboard/proxy"
)

const demoManifest = `{
	"sendMessage": {"type": "method", "value": ["string", "string"]}
}`

// startDemo links a consumer proxy to a new port of service and issues one
// sendMessage call. It must run before the routing loop starts.
func startDemo(h hub.Hub, m *manager.Manager, service, url, text string, logger *slog.Logger) (func(context.Context) (any, error), error) {
	tmpl, err := api.Parse([]byte(demoManifest))
	if err != nil {
		return nil, err
	}

	p := proxy.New(port.NewSequence(0), api.NewFactory(tmpl, api.WithLogger(logger)), proxy.WithLogger(logger))
	iface := p.GetInterface()
	if err := m.Setup(p); err != nil {
		return nil, fmt.Errorf("failed to set up demo proxy: %w", err)
	}

	args := map[string]any{}
	if url != "" {
		args["url"] = url
	}
	if err := h.Post(p.ControlChannel(), messaging.PortRequest(service, args)); err != nil {
		return nil, err
	}

	call, err := iface.Call("sendMessage", "switchboard", text)
	if err != nil {
		return nil, err
	}
	return call.Wait, nil
}
