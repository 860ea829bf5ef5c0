// Package jsonvalue converts fastjson values into plain Go values
// (map[string]any, []any, string, float64, bool, nil).
package jsonvalue

import (
	"fmt"

	"github.com/valyala/fastjson"
)

// Parse parses data as JSON and returns the equivalent Go value.
func Parse(data []byte) (any, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return From(v), nil
}

// From converts v to a Go value. Numbers that fit an int64 exactly become
// int64, everything else float64.
func From(v *fastjson.Value) any {
	if v == nil {
		return nil
	}

	switch v.Type() {
	case fastjson.TypeObject:
		obj := v.GetObject()
		out := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			out[string(key)] = From(val)
		})
		return out
	case fastjson.TypeArray:
		arr := v.GetArray()
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = From(item)
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return n
		}
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}
