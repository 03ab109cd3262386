package api

import (
	"encoding/json"
	"reflect"

	"github.com/spf13/cast"
)

// Noop replaces callback values that are not functions.
func Noop(...any) {}

// Conform coerces values to tags position by position. The result always has
// len(tags) elements; missing values are coerced from nil.
//
//   - string: cast to a string, falling back to its JSON form
//   - number: cast to float64, 0 when not numeric
//   - bool: cast to bool, falling back to truthiness
//   - callback: kept when it is a function, otherwise Noop
//   - object: deep copy through a JSON round trip, nil when not encodable;
//     numbers in the copy are float64
//   - any other tag: false
func Conform(tags []Tag, values []any) []any {
	out := make([]any, len(tags))
	for i, tag := range tags {
		var v any
		if i < len(values) {
			v = values[i]
		}
		out[i] = conformValue(tag, v)
	}
	return out
}

func conformValue(tag Tag, v any) any {
	switch tag {
	case TagString:
		if s, err := cast.ToStringE(v); err == nil {
			return s
		}
		return describe(v)

	case TagNumber:
		if n, err := cast.ToFloat64E(v); err == nil {
			return n
		}
		return float64(0)

	case TagBool:
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
		return truthy(v)

	case TagCallback:
		if v != nil && reflect.ValueOf(v).Kind() == reflect.Func {
			return v
		}
		return Noop

	case TagObject:
		return deepCopy(v)

	default:
		return false
	}
}

func deepCopy(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func describe(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	default:
		return true
	}
}
