package config_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/tailored-agentic-units/switchboard/config"
)

func TestHubConfig_DefaultHubConfig(t *testing.T) {
	cfg := config.DefaultHubConfig()

	if cfg.Name != "default" {
		t.Errorf("DefaultHubConfig().Name = %v, want %v", cfg.Name, "default")
	}
	if cfg.ChannelBufferSize != 256 {
		t.Errorf("DefaultHubConfig().ChannelBufferSize = %v, want %v", cfg.ChannelBufferSize, 256)
	}
	if cfg.Observer != "slog" {
		t.Errorf("DefaultHubConfig().Observer = %v, want %v", cfg.Observer, "slog")
	}
	if cfg.Logger == nil {
		t.Error("DefaultHubConfig().Logger should not be nil")
	}
}

func TestHubConfig_Merge(t *testing.T) {
	cfg := config.DefaultHubConfig()
	logger := slog.New(slog.DiscardHandler)

	cfg.Merge(&config.HubConfig{Name: "edge", Logger: logger})

	if cfg.Name != "edge" {
		t.Errorf("Name = %v, want %v", cfg.Name, "edge")
	}
	if cfg.ChannelBufferSize != 256 {
		t.Errorf("ChannelBufferSize = %v, want unchanged 256", cfg.ChannelBufferSize)
	}
	if cfg.Logger != logger {
		t.Error("Logger was not merged")
	}
}

func TestShared_Ready(t *testing.T) {
	cfg := config.DefaultShared()
	if cfg.Ready() {
		t.Error("DefaultShared().Ready() = true, want false")
	}

	cfg.Merge(&config.Shared{Global: map[string]any{"host": "test"}})
	if !cfg.Ready() {
		t.Error("Ready() after merging Global = false, want true")
	}
}

func TestShared_Merge(t *testing.T) {
	cfg := config.Shared{Codec: "json", Global: map[string]any{"a": 1, "b": 1}}

	cfg.Merge(&config.Shared{Debug: true, Codec: "cbor", Global: map[string]any{"b": 2}})

	if !cfg.Debug {
		t.Error("Debug was not merged")
	}
	if cfg.Codec != "cbor" {
		t.Errorf("Codec = %v, want cbor", cfg.Codec)
	}
	if cfg.Global["a"] != 1 || cfg.Global["b"] != 2 {
		t.Errorf("Global = %v, want a=1 b=2", cfg.Global)
	}

	cfg.Merge(&config.Shared{})
	if !cfg.Debug || cfg.Codec != "cbor" {
		t.Errorf("empty merge changed values: %+v", cfg)
	}
}

func TestShared_Clone(t *testing.T) {
	cfg := config.Shared{Global: map[string]any{"a": 1}}
	clone := cfg.Clone()
	clone.Global["a"] = 2

	if cfg.Global["a"] != 1 {
		t.Errorf("original Global mutated: %v", cfg.Global)
	}
}

func TestShared_JSON(t *testing.T) {
	original := config.Shared{Debug: true, Source: "echo", Global: map[string]any{"host": "test"}}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var unmarshaled config.Shared
	if err := json.Unmarshal(data, &unmarshaled); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	if unmarshaled.Source != "echo" || !unmarshaled.Debug || !unmarshaled.Ready() {
		t.Errorf("Unmarshaled = %+v, want %+v", unmarshaled, original)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantName string
		wantBuf  int
		wantSrc  string
	}{
		{
			name:     "yaml",
			file:     "switchboard.yaml",
			content:  "hub:\n  name: edge\n  channel_buffer_size: 16\nshared:\n  source: echo\n  global:\n    host: test\n",
			wantName: "edge",
			wantBuf:  16,
			wantSrc:  "echo",
		},
		{
			name:     "json partial",
			file:     "switchboard.json",
			content:  `{"shared": {"debug": true}}`,
			wantName: "default",
			wantBuf:  256,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			cfg, err := config.Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if cfg.Hub.Name != tt.wantName {
				t.Errorf("Hub.Name = %v, want %v", cfg.Hub.Name, tt.wantName)
			}
			if cfg.Hub.ChannelBufferSize != tt.wantBuf {
				t.Errorf("Hub.ChannelBufferSize = %v, want %v", cfg.Hub.ChannelBufferSize, tt.wantBuf)
			}
			if cfg.Shared.Source != tt.wantSrc {
				t.Errorf("Shared.Source = %v, want %v", cfg.Shared.Source, tt.wantSrc)
			}
			if cfg.Hub.Logger == nil {
				t.Error("Hub.Logger should default to slog.Default()")
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switchboard.yaml")
	if err := os.WriteFile(path, []byte("hub:\n  name: file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("SWITCHBOARD_HUB_NAME", "env")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Hub.Name != "env" {
		t.Errorf("Hub.Name = %v, want env", cfg.Hub.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file should fail")
	}
}

func TestDecodeShared(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "value", value: config.Shared{Source: "echo"}, want: "echo"},
		{name: "pointer", value: &config.Shared{Source: "echo"}, want: "echo"},
		{name: "decoded map", value: map[string]any{"source": "echo", "global": map[string]any{}}, want: "echo"},
		{name: "cbor map", value: map[any]any{"source": "echo", "codec": "cbor"}, want: "echo"},
		{name: "nil", value: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.DecodeShared(tt.value)
			if err != nil {
				t.Fatalf("DecodeShared() error = %v", err)
			}
			if got.Source != tt.want {
				t.Errorf("Source = %q, want %q", got.Source, tt.want)
			}
		})
	}

	if _, err := config.DecodeShared("not a config"); err == nil {
		t.Error("DecodeShared(string) should fail")
	}
}

func TestDecodeShared_Fields(t *testing.T) {
	got, err := config.DecodeShared(map[string]any{
		"debug":  "true",
		"source": "echo",
		"codec":  "proto",
		"global": map[string]any{"id": "ctx-1"},
		"extra":  42,
	})
	if err != nil {
		t.Fatalf("DecodeShared() error = %v", err)
	}

	want := config.Shared{
		Debug:  true,
		Source: "echo",
		Codec:  "proto",
		Global: map[string]any{"id": "ctx-1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeShared() = %+v, want %+v", got, want)
	}
}
