package manager_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/switchboard/config"
	"github.com/tailored-agentic-units/switchboard/hub"
	"github.com/tailored-agentic-units/switchboard/manager"
	"github.com/tailored-agentic-units/switchboard/messaging"
	"github.com/tailored-agentic-units/switchboard/port"
	"github.com/tailored-agentic-units/switchboard/resource"
)

func TestParseRequest(t *testing.T) {
	resolver := resource.Resolver(func(context.Context, string, string) (string, bool, error) { return "", false, nil })
	retriever := func(context.Context, string) (string, error) { return "", nil }

	tests := []struct {
		name    string
		msg     messaging.Message
		want    manager.RequestKind
		wantErr error
	}{
		{name: "debug", msg: messaging.DebugRequest("x"), want: manager.KindDebug},
		{name: "link", msg: messaging.LinkRequest("default", "b"), want: manager.KindLink},
		{name: "link without to", msg: messaging.Message{"request": "link"}, wantErr: manager.ErrMalformedRequest},
		{name: "create", msg: messaging.CreateRequest(), want: manager.KindCreate},
		{name: "port", msg: messaging.PortRequest("Worker", nil), want: manager.KindPort},
		{name: "port without service", msg: messaging.Message{"request": "port"}, wantErr: manager.ErrMalformedRequest},
		{name: "bindport", msg: messaging.BindPortRequest("a", "1", "Worker", nil), want: manager.KindBindPort},
		{name: "bindport without id", msg: messaging.Message{"request": "bindport", "service": "Worker"}, wantErr: manager.ErrMalformedRequest},
		{name: "delegate", msg: messaging.DelegateRequest("p"), want: manager.KindDelegate},
		{name: "delegate without flow", msg: messaging.Message{"request": "delegate"}, wantErr: manager.ErrMalformedRequest},
		{name: "resource", msg: messaging.ResourceRequest("mem", resolver, retriever), want: manager.KindResource},
		{name: "resource with bad args", msg: messaging.ResourceRequest("mem", 1, 2), wantErr: manager.ErrMalformedRequest},
		{name: "core", msg: messaging.CoreRequest(nil), want: manager.KindCore},
		{name: "unknown", msg: messaging.Message{"request": "teleport"}, wantErr: manager.ErrUnknownRequest},
		{name: "missing", msg: messaging.Message{}, wantErr: manager.ErrUnknownRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := manager.ParseRequest(tt.msg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseRequest() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRequest() error = %v", err)
			}
			if req.Kind() != tt.want {
				t.Errorf("Kind() = %q, want %q", req.Kind(), tt.want)
			}
		})
	}
}

func TestParseRequest_Fields(t *testing.T) {
	req, _ := manager.ParseRequest(messaging.PortRequest("Worker", map[string]any{"source": "echo"}))
	portReq := req.(manager.PortRequest)
	if portReq.Name != "default" {
		t.Errorf("PortRequest.Name = %q, want %q", portReq.Name, "default")
	}

	req, _ = manager.ParseRequest(messaging.Message{"request": "bindport", "id": "a", "port": 7.0, "service": "Worker"})
	if got := req.(manager.BindPortRequest).Port; got != "7" {
		t.Errorf("BindPortRequest.Port = %q, want %q", got, "7")
	}

	msg := messaging.LinkRequest("back", "b")
	msg[messaging.KeyOverride] = "inbound"
	req, _ = manager.ParseRequest(msg)
	want := manager.LinkRequest{Name: "back", To: "b", OverrideDest: "inbound"}
	if !reflect.DeepEqual(req, want) {
		t.Errorf("ParseRequest() = %+v, want %+v", req, want)
	}
}

func echoRegistry(t *testing.T, created *[]*recordingPort, args *[]any) *port.Registry {
	t.Helper()
	reg := port.NewRegistry()
	seq := port.NewSequence(0)
	err := reg.Register("Echo", func(a any) (port.Port, error) {
		p := newPort("echo-" + seq.Next())
		*created = append(*created, p)
		*args = append(*args, a)
		return p, nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return reg
}

func TestControl_Link(t *testing.T) {
	f := createConfiguredManager(t)
	ports := f.setup(t, "a", "b")
	a, b := ports[0], ports[1]

	f.send(t, a, messaging.LinkRequest("default", "b"))

	links := a.ofType(messaging.TypeCreateLink)
	if len(links) != 1 {
		t.Fatalf("createLink messages = %d, want 1", len(links))
	}
	route, _ := f.hub.Route(links[0].String(messaging.KeyChannel))
	if route.Destination != "b" {
		t.Errorf("link destination = %q, want %q", route.Destination, "b")
	}

	f.send(t, a, messaging.LinkRequest("default", b))
	if len(a.ofType(messaging.TypeCreateLink)) != 2 {
		t.Error("link to an in-process port value was not created")
	}

	f.send(t, a, messaging.LinkRequest("default", "missing"))
	if len(a.ofType(messaging.TypeCreateLink)) != 2 {
		t.Error("link to an unknown port id was created")
	}
}

func TestControl_Create(t *testing.T) {
	f := createConfiguredManager(t)
	a := f.setup(t, "a")[0]
	before := f.manager.Snapshot()

	f.send(t, a, messaging.CreateRequest())

	if after := f.manager.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Error("create from a controlled port changed the tables")
	}
}

func TestControl_Port(t *testing.T) {
	var created []*recordingPort
	var args []any
	f := createConfiguredManager(t, manager.WithRegistry(echoRegistry(t, &created, &args)))
	a := f.setup(t, "a")[0]

	f.send(t, a, messaging.PortRequest("Echo", map[string]any{"k": "v"}))

	if len(created) != 1 {
		t.Fatalf("constructed ports = %d, want 1", len(created))
	}
	echo := created[0]
	if len(echo.ofType(messaging.TypeSetup)) != 1 {
		t.Error("constructed port was not set up")
	}

	links := a.ofType(messaging.TypeCreateLink)
	if len(links) != 1 {
		t.Fatalf("createLink messages = %d, want 1", len(links))
	}
	if links[0].String(messaging.KeyName) != "default" {
		t.Errorf("link name = %q, want %q", links[0].String(messaging.KeyName), "default")
	}
	route, _ := f.hub.Route(links[0].String(messaging.KeyReverse))
	if route.Source != echo.ID() || route.Name != "default" {
		t.Errorf("reverse route = %+v, want from %s labelled default", route, echo.ID())
	}

	exposed := messaging.PortRequest("Echo", nil)
	exposed[messaging.KeyExpose] = true
	f.send(t, a, exposed)
	if len(args) != 2 || args[1] != f.manager {
		t.Errorf("exposeManager args = %v, want the manager", args)
	}

	f.send(t, a, messaging.PortRequest("Missing", nil))
	if len(a.ofType(messaging.TypeCreateLink)) != 2 {
		t.Error("unknown service produced a link")
	}
}

func TestControl_BindPort(t *testing.T) {
	var created []*recordingPort
	var args []any
	f := createConfiguredManager(t, manager.WithRegistry(echoRegistry(t, &created, &args)))
	ports := f.setup(t, "a", "b")
	a, b := ports[0], ports[1]

	f.send(t, b, messaging.BindPortRequest("a", "7", "Echo", nil))

	if len(created) != 1 {
		t.Fatalf("constructed ports = %d, want 1", len(created))
	}
	echo := created[0]

	if len(a.ofType(messaging.TypeCreateLink))+len(b.ofType(messaging.TypeCreateLink)) != 0 {
		t.Error("bindport notified the source side")
	}
	links := echo.ofType(messaging.TypeCreateLink)
	if len(links) != 1 {
		t.Fatalf("bound port createLink messages = %d, want 1", len(links))
	}
	if links[0].String(messaging.KeyName) != "default" {
		t.Errorf("name = %q, want %q", links[0].String(messaging.KeyName), "default")
	}

	route, _ := f.hub.Route(links[0].String(messaging.KeyChannel))
	if route.Destination != "a" || route.Name != "custom7" {
		t.Errorf("channel route = %+v, want to a labelled custom7", route)
	}
}

func TestControl_Delegate(t *testing.T) {
	f := createConfiguredManager(t)
	ports := f.setup(t, "a", "b", "c")
	a, b, c := ports[0], ports[1], ports[2]

	f.send(t, a, messaging.DelegateRequest("c"))
	f.send(t, b, messaging.DelegateRequest("a"))

	snap := f.manager.Snapshot()
	if snap.Delegate != snap.ControlFlows["a"] {
		t.Errorf("Delegate = %s, want a's control flow %s", snap.Delegate, snap.ControlFlows["a"])
	}
	if !reflect.DeepEqual(snap.Delegated, []string{"a", "c"}) {
		t.Errorf("Delegated = %v, want [a c]", snap.Delegated)
	}

	request := messaging.LinkRequest("default", "b")
	f.send(t, c, request)

	if len(c.ofType(messaging.TypeCreateLink)) != 0 {
		t.Error("delegated request was handled locally")
	}
	forwarded := a.ofType(messaging.TypeDelegation)
	if len(forwarded) != 1 {
		t.Fatalf("delegation messages = %d, want 1", len(forwarded))
	}
	d := forwarded[0]
	if d.String(messaging.KeyFlow) != "c" || !d.Bool(messaging.KeyQuiet) || d.String(messaging.KeyRequest) != messaging.RequestHandle {
		t.Errorf("delegation = %v", d.Describe())
	}
	if !reflect.DeepEqual(d.Message(messaging.KeyMessage), request) {
		t.Errorf("delegated message = %v, want %v", d.Message(messaging.KeyMessage), request)
	}

	f.send(t, a, messaging.LinkRequest("default", "b"))
	if len(a.ofType(messaging.TypeCreateLink)) != 1 {
		t.Error("the delegate's own marked requests must be handled locally")
	}
	if len(a.ofType(messaging.TypeDelegation)) != 1 {
		t.Error("the delegate's own request was forwarded to itself")
	}
}

func TestControl_Resource(t *testing.T) {
	f := createConfiguredManager(t)
	a := f.setup(t, "a")[0]

	resolver := func(_ context.Context, _, ref string) (string, bool, error) {
		return "mem://" + ref, strings.HasPrefix(ref, "app/"), nil
	}
	retriever := func(_ context.Context, url string) (string, error) {
		return "body of " + url, nil
	}
	f.send(t, a, messaging.ResourceRequest("mem", resolver, retriever))

	resolved, err := f.manager.Resources().Resolve(context.Background(), "", "app/x")
	if err != nil || resolved != "mem://app/x" {
		t.Fatalf("Resolve() = %q, %v", resolved, err)
	}
	body, err := f.manager.Resources().Retrieve(context.Background(), resolved)
	if err != nil || body != "body of mem://app/x" {
		t.Errorf("Retrieve() = %q, %v", body, err)
	}
}

type countingCore struct {
	calls []messaging.Message
	from  []port.Port
}

func (c *countingCore) OnMessage(origin port.Port, msg messaging.Message) {
	c.from = append(c.from, origin)
	c.calls = append(c.calls, msg)
}

func TestControl_Core(t *testing.T) {
	core := &countingCore{}
	builds := 0
	f := createConfiguredManager(t, manager.WithCore(func(*manager.Manager) (manager.Core, error) {
		builds++
		return core, nil
	}))
	ports := f.setup(t, "a", "b")
	a, b := ports[0], ports[1]

	f.send(t, a, messaging.CoreRequest(nil))
	f.send(t, b, messaging.CoreRequest(nil))

	if builds != 1 {
		t.Errorf("core built %d times, want 1", builds)
	}
	for _, p := range ports {
		replies := p.ofType(messaging.TypeCore)
		if len(replies) != 1 || replies[0][messaging.KeyCore] != manager.Core(core) {
			t.Errorf("%s core replies = %v", p.ID(), replies)
		}
	}

	f.send(t, a, messaging.DelegateRequest("x"))
	f.send(t, a, messaging.CoreRequest(messaging.Message{"op": "getId"}))

	if len(a.ofType(messaging.TypeCore)) != 1 {
		t.Error("delegate core request took the reply path")
	}
	if len(core.calls) != 1 || core.calls[0].String("op") != "getId" || core.from[0] != a {
		t.Errorf("core calls = %v from %v", core.calls, core.from)
	}
}

func TestControl_CoreUnavailable(t *testing.T) {
	f := createConfiguredManager(t)
	a := f.setup(t, "a")[0]

	f.send(t, a, messaging.CoreRequest(nil))

	if len(a.ofType(messaging.TypeCore)) != 0 {
		t.Error("core reply sent without a core")
	}
	if _, err := f.manager.Core(); !errors.Is(err, manager.ErrNoCore) {
		t.Errorf("Core() error = %v, want %v", err, manager.ErrNoCore)
	}
}

func TestControl_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := hub.New(context.Background(), config.HubConfig{Observer: "noop", Logger: logger})
	t.Cleanup(h.Shutdown)
	m, err := manager.New(context.Background(), h, manager.WithLogger(logger))
	if err != nil {
		t.Fatalf("manager.New() error = %v", err)
	}

	h.Configure(config.Shared{Global: map[string]any{}})
	a := newPort("a")
	if err := m.Setup(a); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	h.OnMessage(a.controlChannel(t), messaging.DebugRequest("quiet"))
	if strings.Contains(buf.String(), "quiet") {
		t.Error("debug request printed with debugging disabled")
	}

	h.Configure(config.Shared{Debug: true})
	h.OnMessage(a.controlChannel(t), messaging.DebugRequest("loud"))
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("debug request not printed: %s", buf.String())
	}
}

func TestControl_Unknown(t *testing.T) {
	f := createConfiguredManager(t)
	a := f.setup(t, "a")[0]
	before := f.manager.Snapshot()

	f.send(t, a, messaging.Message{"request": "teleport"})
	f.manager.OnMessage("nobody", messaging.CreateRequest())

	if f.events.Count(manager.EventRequestUnknown) != 1 {
		t.Errorf("unknown request events = %d, want 1", f.events.Count(manager.EventRequestUnknown))
	}
	if after := f.manager.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Error("dropped requests changed the tables")
	}
}
