package hub_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/hub"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/observability"
	"github.com/tailored-agentic-units/switchboard/port"
)

type delivery struct {
	flow string
	msg  messaging.Message
}

type recordingPort struct {
	id     string
	mu     sync.Mutex
	got    []delivery
	router port.Router
	notify chan delivery
}

func newRecordingPort(id string) *recordingPort {
	return &recordingPort{id: id, notify: make(chan delivery, 16)}
}

func (p *recordingPort) ID() string { return p.id }

func (p *recordingPort) OnMessage(flow string, msg messaging.Message) {
	p.mu.Lock()
	p.got = append(p.got, delivery{flow: flow, msg: msg})
	p.mu.Unlock()
	select {
	case p.notify <- delivery{flow: flow, msg: msg}:
	default:
	}
}

func (p *recordingPort) Bind(r port.Router) { p.router = r }

func (p *recordingPort) deliveries() []delivery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]delivery(nil), p.got...)
}

// Helper function to create a test hub
func createTestHub(t *testing.T) (hub.Hub, *observability.Recorder) {
	t.Helper()
	rec := &observability.Recorder{}
	observability.RegisterObserver("hub-test", rec)

	cfg := config.DefaultHubConfig()
	cfg.Name = "test-hub"
	cfg.Observer = "hub-test"
	cfg.Logger = slog.New(slog.DiscardHandler)

	h := hub.New(context.Background(), cfg)
	t.Cleanup(h.Shutdown)
	return h, rec
}

func TestHub_Register(t *testing.T) {
	h, _ := createTestHub(t)
	p := newRecordingPort("p1")

	if err := h.Register(p); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if p.router == nil {
		t.Error("Register() did not bind the hub as the port's router")
	}
	if got, ok := h.Lookup("p1"); !ok || got != p {
		t.Errorf("Lookup(p1) = %v, %v", got, ok)
	}
	if m := h.Metrics(); m.Ports != 1 {
		t.Errorf("Ports = %d, want 1", m.Ports)
	}
}

func TestHub_Register_Refused(t *testing.T) {
	h, _ := createTestHub(t)

	if err := h.Register(newRecordingPort("")); !errors.Is(err, hub.ErrUnidentifiedPort) {
		t.Errorf("Register(unidentified) error = %v, want %v", err, hub.ErrUnidentifiedPort)
	}

	first := newRecordingPort("p1")
	if err := h.Register(first); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := h.Register(newRecordingPort("p1")); !errors.Is(err, hub.ErrPortExists) {
		t.Errorf("Register(duplicate) error = %v, want %v", err, hub.ErrPortExists)
	}
	if got, _ := h.Lookup("p1"); got != first {
		t.Error("duplicate registration replaced the original port")
	}
}

func TestHub_Install_UniqueFlows(t *testing.T) {
	h, _ := createTestHub(t)
	src, dst := newRecordingPort("src"), newRecordingPort("dst")
	h.Register(src)
	h.Register(dst)

	seen := make(map[string]bool)
	for range 500 {
		flow, err := h.Install(src, "dst", "default")
		if err != nil {
			t.Fatalf("Install() error = %v", err)
		}
		if seen[flow] {
			t.Fatalf("Install() returned duplicate flow id %s", flow)
		}
		seen[flow] = true
	}

	if m := h.Metrics(); m.Flows != 500 {
		t.Errorf("Flows = %d, want 500", m.Flows)
	}
}

func TestHub_Install_UnknownDestination(t *testing.T) {
	h, _ := createTestHub(t)
	src := newRecordingPort("src")
	h.Register(src)

	if _, err := h.Install(src, "missing", "default"); !errors.Is(err, hub.ErrPortNotFound) {
		t.Errorf("Install() error = %v, want %v", err, hub.ErrPortNotFound)
	}
}

func TestHub_OnMessage_DeliversNameLabel(t *testing.T) {
	h, _ := createTestHub(t)
	src, dst := newRecordingPort("src"), newRecordingPort("dst")
	h.Register(src)
	h.Register(dst)

	flow, _ := h.Install(src, "dst", "control")
	h.OnMessage(flow, messaging.Message{"type": "setup"})

	got := dst.deliveries()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	if got[0].flow != "control" {
		t.Errorf("delivered flow = %q, want %q", got[0].flow, "control")
	}
	if got[0].msg.String("type") != "setup" {
		t.Errorf("delivered message = %v", got[0].msg)
	}

	if d, ok := h.Destination(flow); !ok || d != dst {
		t.Errorf("Destination() = %v, %v, want dst", d, ok)
	}
	if r, ok := h.Route(flow); !ok || r.Source != "src" || r.Name != "control" {
		t.Errorf("Route() = %+v, %v", r, ok)
	}
}

func TestHub_OnMessage_UnknownFlow(t *testing.T) {
	h, rec := createTestHub(t)

	h.OnMessage("no-such-flow", messaging.Message{})

	if m := h.Metrics(); m.Dropped != 1 || m.Routed != 0 {
		t.Errorf("Dropped = %d, Routed = %d, want 1, 0", m.Dropped, m.Routed)
	}
	if rec.Count(hub.EventMessageDropped) != 1 {
		t.Errorf("dropped events = %d, want 1", rec.Count(hub.EventMessageDropped))
	}
}

func TestHub_Uninstall(t *testing.T) {
	h, _ := createTestHub(t)
	src, dst := newRecordingPort("src"), newRecordingPort("dst")
	h.Register(src)
	h.Register(dst)

	flow, _ := h.Install(src, "dst", "default")

	if err := h.Uninstall(dst, flow); !errors.Is(err, hub.ErrFlowOwnership) {
		t.Errorf("Uninstall(non-owner) error = %v, want %v", err, hub.ErrFlowOwnership)
	}
	if err := h.Uninstall(src, flow); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if err := h.Uninstall(src, flow); !errors.Is(err, hub.ErrFlowNotFound) {
		t.Errorf("Uninstall(twice) error = %v, want %v", err, hub.ErrFlowNotFound)
	}

	h.OnMessage(flow, messaging.Message{})
	if len(dst.deliveries()) != 0 {
		t.Error("message on uninstalled flow was delivered")
	}
	if _, ok := h.Destination(flow); ok {
		t.Error("Destination() resolved an uninstalled flow")
	}
}

func TestHub_Deregister_KeepsFlows(t *testing.T) {
	h, _ := createTestHub(t)
	src, dst := newRecordingPort("src"), newRecordingPort("dst")
	h.Register(src)
	h.Register(dst)
	flow, _ := h.Install(src, "dst", "default")

	if err := h.Deregister(dst); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}
	if err := h.Deregister(dst); !errors.Is(err, hub.ErrPortNotFound) {
		t.Errorf("Deregister(twice) error = %v, want %v", err, hub.ErrPortNotFound)
	}

	if _, ok := h.Route(flow); !ok {
		t.Error("Deregister() removed the port's flows")
	}

	h.OnMessage(flow, messaging.Message{})
	if len(dst.deliveries()) != 0 {
		t.Error("message delivered to deregistered port")
	}
	if m := h.Metrics(); m.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", m.Dropped)
	}
}

func TestHub_RunLoop(t *testing.T) {
	h, _ := createTestHub(t)
	src, dst := newRecordingPort("src"), newRecordingPort("dst")
	h.Register(src)
	h.Register(dst)
	flow, _ := h.Install(src, "dst", "default")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	for i := range 5 {
		if err := src.router.Post(flow, messaging.Message{"seq": i}); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}

	for i := range 5 {
		select {
		case d := <-dst.notify:
			if d.msg["seq"] != i {
				t.Errorf("delivery %d carried seq %v", i, d.msg["seq"])
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for delivery %d", i)
		}
	}

	ran := make(chan struct{})
	if err := h.Schedule(func() { close(ran) }); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("scheduled work did not run")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want %v", err, context.Canceled)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop after cancel")
	}

	if m := h.Metrics(); m.Posted != 5 || m.Routed != 5 {
		t.Errorf("Posted = %d, Routed = %d, want 5, 5", m.Posted, m.Routed)
	}
}

func TestHub_PostAfterShutdown(t *testing.T) {
	h, _ := createTestHub(t)
	h.Shutdown()

	if err := h.Post("flow", messaging.Message{}); err == nil {
		t.Error("Post() after Shutdown should fail")
	}
}

func TestHub_Configure(t *testing.T) {
	h, _ := createTestHub(t)

	var got []config.Shared
	cancel := h.OnConfig(func(cfg config.Shared) { got = append(got, cfg) })

	h.Configure(config.Shared{Source: "echo"})
	cancel()
	h.Configure(config.Shared{Source: "ignored"})

	if len(got) != 1 || got[0].Source != "echo" {
		t.Errorf("OnConfig received %+v, want one config with Source echo", got)
	}
}

func TestHub_Events(t *testing.T) {
	h, rec := createTestHub(t)
	src, dst := newRecordingPort("src"), newRecordingPort("dst")
	h.Register(src)
	h.Register(dst)
	flow, _ := h.Install(src, "dst", "default")
	h.Uninstall(src, flow)
	h.Deregister(dst)

	tests := []struct {
		typ  observability.EventType
		want int
	}{
		{hub.EventPortRegister, 2},
		{hub.EventFlowInstall, 1},
		{hub.EventFlowUninstall, 1},
		{hub.EventPortDeregister, 1},
	}
	for _, tt := range tests {
		if got := rec.Count(tt.typ); got != tt.want {
			t.Errorf("Count(%s) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestCollector(t *testing.T) {
	h, _ := createTestHub(t)
	h.Register(newRecordingPort("p1"))

	c := hub.NewCollector(h)
	if n := testutil.CollectAndCount(c); n != 6 {
		t.Errorf("CollectAndCount() = %d, want 6", n)
	}
}

func TestHub_PostFromLoop(t *testing.T) {
	tests := []struct {
		name   string
		buffer int
		posts  int
	}{
		{name: "within capacity", buffer: 8, posts: 4},
		{name: "past capacity", buffer: 2, posts: 300},
		{name: "single slot", buffer: 1, posts: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultHubConfig()
			cfg.Name = "loop-hub"
			cfg.ChannelBufferSize = tt.buffer
			cfg.Logger = slog.New(slog.DiscardHandler)
			h := hub.New(context.Background(), cfg)
			t.Cleanup(h.Shutdown)

			src, dst := newRecordingPort("src"), newRecordingPort("dst")
			h.Register(src)
			h.Register(dst)
			flow, _ := h.Install(src, "dst", "default")

			posted := make(chan error, 1)
			h.Schedule(func() {
				for i := range tt.posts {
					if err := h.Post(flow, messaging.Message{"seq": i}); err != nil {
						posted <- err
						return
					}
				}
				posted <- nil
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go h.Run(ctx)

			select {
			case err := <-posted:
				if err != nil {
					t.Fatalf("Post() from loop error = %v", err)
				}
			case <-time.After(time.Second):
				t.Fatalf("Post() from loop blocked, backlog = %d", h.Metrics().Backlog)
			}

			deadline := time.After(2 * time.Second)
			for h.Metrics().Routed < int64(tt.posts) {
				select {
				case <-deadline:
					t.Fatalf("Routed = %d, want %d", h.Metrics().Routed, tt.posts)
				case <-time.After(time.Millisecond):
				}
			}

			got := dst.deliveries()
			for i, d := range got {
				if d.msg["seq"] != i {
					t.Fatalf("delivery %d carried seq %v", i, d.msg["seq"])
				}
			}
			if len(got) != tt.posts {
				t.Errorf("deliveries = %d, want %d", len(got), tt.posts)
			}
		})
	}
}
