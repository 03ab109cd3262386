package messaging

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"
)

// Well-known message keys.
const (
	KeyRequest  = "request"
	KeyType     = "type"
	KeyAction   = "action"
	KeyValue    = "value"
	KeyChannel  = "channel"
	KeyReverse  = "reverse"
	KeyName     = "name"
	KeyConfig   = "config"
	KeyFlow     = "flow"
	KeyMessage  = "message"
	KeyQuiet    = "quiet"
	KeyTo       = "to"
	KeyCore     = "core"
	KeyError    = "error"
	KeyService  = "service"
	KeyArgs     = "args"
	KeyID       = "id"
	KeyPort     = "port"
	KeyOverride = "overrideDest"
	KeyExpose   = "exposeManager"
)

// Message is a structured value delivered along a flow.
type Message map[string]any

// Has reports whether key is present.
func (m Message) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// String returns the string stored under key, or "" when absent or not a string.
func (m Message) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns the bool stored under key, or false when absent or not a bool.
func (m Message) Bool(key string) bool {
	b, ok := m[key].(bool)
	return ok && b
}

// Message returns the nested message stored under key. Both Message and
// plain map[string]any values are accepted; anything else yields nil.
func (m Message) Message(key string) Message {
	switch v := m[key].(type) {
	case Message:
		return v
	case map[string]any:
		return Message(v)
	default:
		return nil
	}
}

// Slice returns the []any stored under key, or nil.
func (m Message) Slice(key string) []any {
	if s, ok := m[key].([]any); ok {
		return s
	}
	return nil
}

// Clone returns a shallow copy of m.
func (m Message) Clone() Message {
	return maps.Clone(m)
}

// Normalize returns a deep copy of m holding only JSON-compatible values
// (map[string]any, []any, string, float64, bool, nil). Values that cannot be
// encoded are reported as an error.
func (m Message) Normalize() (Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("normalize message: %w", err)
	}

	var out Message
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize message: %w", err)
	}
	return out, nil
}

// Describe renders m with sorted keys for diagnostics.
func (m Message) Describe() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, m[k]))
	}
	return "Message{" + strings.Join(parts, ", ") + "}"
}
