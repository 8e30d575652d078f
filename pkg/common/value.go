package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind enumerates the variants a property value can take.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is the tagged-union property type used in entity and relationship
// property maps. Values serialize to plain JSON scalars, arrays, and
// objects, and deserialize back into the matching variant, so canonical
// encodings round-trip byte for byte.
//
// A zero Value is the null value.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

func Null() Value            { return Value{kind: KindNull} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

func Map(m map[string]Value) Value {
	return Value{kind: KindMap, m: m}
}

// Kind returns the variant tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

func (v Value) BoolVal() bool            { return v.b }
func (v Value) IntVal() int64            { return v.i }
func (v Value) FloatVal() float64        { return v.f }
func (v Value) StringVal() string        { return v.s }
func (v Value) ListVal() []Value         { return v.list }
func (v Value) MapVal() map[string]Value { return v.m }

// MarshalJSON emits the native JSON form of the value. Map keys are sorted
// by encoding/json, which keeps property encodings deterministic.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	}
	return nil, fmt.Errorf("%w: unknown value kind %d", ErrInvalidArgument, v.kind)
}

// UnmarshalJSON parses a native JSON value into the matching variant.
// Numbers without a fraction or exponent become ints, everything else a
// float, which matches how the canonical encoder emits them.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := fromRaw(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func fromRaw(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			i, err := t.Int64()
			if err == nil {
				return Int(i), nil
			}
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: bad number %q", ErrInvalidArgument, s)
		}
		return Float(f), nil
	case []any:
		list := make([]Value, len(t))
		for idx, item := range t {
			parsed, err := fromRaw(item)
			if err != nil {
				return Value{}, err
			}
			list[idx] = parsed
		}
		return List(list...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			parsed, err := fromRaw(item)
			if err != nil {
				return Value{}, err
			}
			m[k] = parsed
		}
		return Map(m), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported property value %T", ErrInvalidArgument, raw)
}

// Equal reports deep equality of two values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, val := range v.m {
			other, ok := o.m[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}
