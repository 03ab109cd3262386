package api

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Kind is the kind of a template member.
type Kind string

const (
	KindProperty Kind = "property"
	KindMethod   Kind = "method"
	KindEvent    Kind = "event"
)

// Tag is a primitive type tag.
type Tag string

const (
	TagString   Tag = "string"
	TagNumber   Tag = "number"
	TagBool     Tag = "bool"
	TagObject   Tag = "object"
	TagCallback Tag = "callback"
)

// Member is one declared name of a template. Value holds the argument tags
// of a method, the payload tags of an event, or the single tag of a property.
type Member struct {
	Name  string
	Kind  Kind
	Value []Tag
}

// Template is an ordered, immutable API description.
type Template struct {
	members []Member
	index   map[string]int
}

// NewTemplate builds a Template from members in declaration order.
func NewTemplate(members ...Member) (*Template, error) {
	t := &Template{index: make(map[string]int, len(members))}
	for _, m := range members {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: member without name", ErrInvalidTemplate)
		}
		switch m.Kind {
		case KindProperty, KindMethod, KindEvent:
		default:
			return nil, fmt.Errorf("%w: member %s has kind %q", ErrInvalidTemplate, m.Name, m.Kind)
		}
		if _, exists := t.index[m.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate member %s", ErrInvalidTemplate, m.Name)
		}
		t.index[m.Name] = len(t.members)
		t.members = append(t.members, m)
	}
	return t, nil
}

// Parse reads a JSON manifest of the form
//
//	{"name": {"type": "method", "value": ["string", "number"]}, ...}
//
// preserving declaration order. A value given as a single type name is
// read as a one-element list.
func Parse(data []byte) (*Template, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidTemplate)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: manifest is not an object", ErrInvalidTemplate)
	}

	var members []Member
	root.ForEach(func(key, value gjson.Result) bool {
		members = append(members, Member{
			Name:  key.String(),
			Kind:  Kind(value.Get("type").String()),
			Value: parseTags(value.Get("value")),
		})
		return true
	})

	return NewTemplate(members...)
}

func parseTags(value gjson.Result) []Tag {
	switch {
	case value.IsArray():
		var tags []Tag
		for _, item := range value.Array() {
			tags = append(tags, Tag(item.String()))
		}
		return tags
	case value.Type == gjson.String:
		return []Tag{Tag(value.String())}
	default:
		return nil
	}
}

// Members returns the members in declaration order.
func (t *Template) Members() []Member {
	out := make([]Member, len(t.members))
	copy(out, t.members)
	return out
}

// Member looks up a member by name.
func (t *Template) Member(name string) (Member, bool) {
	i, ok := t.index[name]
	if !ok {
		return Member{}, false
	}
	return t.members[i], true
}

func (t *Template) lookup(name string, kind Kind) (Member, bool) {
	m, ok := t.Member(name)
	if !ok || m.Kind != kind {
		return Member{}, false
	}
	return m, true
}
