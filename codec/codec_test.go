package codec_test

import (
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/switchboard/codec"
)

func frame() map[string]any {
	return map[string]any{
		"flow": "default",
		"message": map[string]any{
			"action": "method",
			"type":   "sendMessage",
			"value":  []any{"bob", "hi"},
			"nested": map[string]any{"ok": true},
		},
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	reg := codec.NewRegistry()

	for _, name := range []string{"json", "cbor", "proto"} {
		t.Run(name, func(t *testing.T) {
			c, err := reg.Get(name)
			if err != nil {
				t.Fatalf("Get(%s) error = %v", name, err)
			}

			data, err := c.Marshal(frame())
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var out map[string]any
			if err := c.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !reflect.DeepEqual(out, frame()) {
				t.Errorf("round trip = %#v, want %#v", out, frame())
			}
		})
	}
}

func TestCBOR_Numbers(t *testing.T) {
	c, err := codec.CBOR()
	if err != nil {
		t.Fatalf("CBOR() error = %v", err)
	}

	data, err := c.Marshal(map[string]any{"n": 42, "nested": map[string]any{"m": -1}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out map[string]any
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out["n"] != uint64(42) {
		t.Errorf("n = %#v, want uint64(42)", out["n"])
	}
	if _, ok := out["nested"].(map[string]any); !ok {
		t.Errorf("nested = %T, want map[string]any", out["nested"])
	}
}

func TestProto_Messages(t *testing.T) {
	c := codec.Proto()

	s, err := structpb.NewStruct(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("NewStruct() error = %v", err)
	}
	data, err := c.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out structpb.Struct
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out.Fields["k"].GetStringValue() != "v" {
		t.Errorf("k = %v, want v", out.Fields["k"])
	}

	if _, err := c.Marshal([]any{1, 2}); err == nil {
		t.Error("Marshal(non-object) should fail")
	}
}

func TestProto_StructTarget(t *testing.T) {
	type frameShape struct {
		Flow    string         `json:"flow"`
		Message map[string]any `json:"message"`
	}

	s, err := codec.ToStruct(frame())
	if err != nil {
		t.Fatalf("ToStruct() error = %v", err)
	}

	var out frameShape
	if err := codec.FromStruct(s, &out); err != nil {
		t.Fatalf("FromStruct() error = %v", err)
	}
	if out.Flow != "default" || out.Message["type"] != "sendMessage" {
		t.Errorf("FromStruct() = %+v", out)
	}
}

func TestRegistry(t *testing.T) {
	reg := codec.NewRegistry()

	if got := reg.Names(); !reflect.DeepEqual(got, []string{"cbor", "json", "proto"}) {
		t.Errorf("Names() = %v", got)
	}
	if c, ok := reg.ForContentType("application/cbor"); !ok || c.Name() != "cbor" {
		t.Errorf("ForContentType(cbor) = %v, %v", c, ok)
	}
	if _, err := reg.Get("msgpack"); !errors.Is(err, codec.ErrUnknownCodec) {
		t.Errorf("Get(msgpack) error = %v, want %v", err, codec.ErrUnknownCodec)
	}
	if _, err := codec.Get("json"); err != nil {
		t.Errorf("codec.Get(json) error = %v", err)
	}
}
