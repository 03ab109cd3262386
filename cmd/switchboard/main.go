package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/core"
	"github.com/tailored-agentic-units/switchboard/hub"
	"github.com/tailored-agentic-units/switchboard/manager"
	"github.com/tailored-agentic-units/switchboard/port"
	"github.com/tailored-agentic-units/switchboard/resource"
	"github.com/tailored-agentic-units/switchboard/transport"
	"github.com/tailored-agentic-units/switchboard/transport/rpc"
	"github.com/tailored-agentic-units/switchboard/transport/script"
	"github.com/tailored-agentic-units/switchboard/transport/worker"
	"github.com/tailored-agentic-units/switchboard/transport/ws"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config file (json, yaml or toml)")
		serve      = flag.String("serve", "", "Address to serve bridge, websocket and metrics endpoints on")
		service    = flag.String("service", worker.Service, "Port service the demo links to (Worker, Remote, WebSocket)")
		url        = flag.String("url", "", "Endpoint url for Remote and WebSocket ports")
		scripts    = flag.String("scripts", "", "Directory served to workers as file:// script urls")
		message    = flag.String("message", "", "Send this message through the demo link and print the reply")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if *serve == "" && *message == "" {
		fmt.Fprintln(os.Stderr, "Usage: switchboard [-config <file>] -serve <addr> | -message <text>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	settings := config.DefaultSettings()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		settings = *loaded
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	settings.Hub.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	echo, err := script.Program("echo.js", script.Echo, script.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to compile echo program: %v", err)
	}

	h := hub.New(ctx, settings.Hub)
	defer h.Shutdown()

	registry := port.NewRegistry()
	resources := resource.NewWithHTTP(http.DefaultClient)
	if *scripts != "" {
		must(resources.AddRetriever("file", resource.NewCache(resource.FileRetriever(*scripts)).Retrieve))
	}
	programs := map[string]transport.Program{"echo": echo}
	must(worker.Register(registry, programs, worker.WithLogger(logger), worker.WithResources(resources)))
	must(rpc.Register(registry, http.DefaultClient, rpc.WithLogger(logger)))
	must(ws.Register(registry, ws.WithLogger(logger)))

	m, err := manager.New(
		ctx,
		h,
		manager.WithRegistry(registry),
		manager.WithResources(resources),
		manager.WithCore(core.Factory(core.WithLogger(logger))),
		manager.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create port manager: %v", err)
	}

	shared := settings.Shared
	if shared.Source == "" {
		shared.Source = "echo"
	}
	if shared.Global == nil {
		shared.Global = map[string]any{"id": settings.Hub.Name}
	}
	h.Configure(shared)

	var reply func(context.Context) (any, error)
	if *message != "" {
		reply, err = startDemo(h, m, *service, *url, *message, logger)
		if err != nil {
			log.Fatalf("Failed to start demo: %v", err)
		}
	}

	go func() {
		if err := h.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("routing loop stopped", slog.String("error", err.Error()))
		}
	}()

	if reply != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		value, err := reply(waitCtx)
		cancel()
		if err != nil {
			log.Fatalf("Demo call failed: %v", err)
		}
		fmt.Printf("Reply: %v\n", value)
	}

	if *serve == "" {
		return
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(hub.NewCollector(h))

	mux := http.NewServeMux()
	mux.Handle(rpc.Path, rpc.NewHandler(echo, rpc.WithLogger(logger)))
	mux.Handle("/ws", ws.NewHandler(echo, ws.WithLogger(logger)))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: *serve, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving", slog.String("addr", *serve))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("failed to register: %v", err))
	}
}
