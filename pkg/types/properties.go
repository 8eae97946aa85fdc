package types

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the type of a property Value.
type Kind int

const (
	// KindString is a string property.
	KindString Kind = iota
	// KindNumber is a numeric property (stored as float64).
	KindNumber
	// KindBool is a boolean property.
	KindBool
	// KindMap is a nested property map.
	KindMap
)

// Value is a property value restricted to a closed set of kinds:
// string, number, bool or nested map. Keeping the set closed avoids
// fully dynamic dispatch while still allowing open-ended node and edge
// metadata.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	m    Properties
}

// String creates a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number creates a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool creates a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Map creates a nested map Value.
func Map(p Properties) Value { return Value{kind: KindMap, m: p} }

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// StringVal returns the string payload and whether the value is a string.
func (v Value) StringVal() (string, bool) { return v.str, v.kind == KindString }

// NumberVal returns the numeric payload and whether the value is a number.
func (v Value) NumberVal() (float64, bool) { return v.num, v.kind == KindNumber }

// BoolVal returns the boolean payload and whether the value is a bool.
func (v Value) BoolVal() (bool, bool) { return v.b, v.kind == KindBool }

// MapVal returns the nested map payload and whether the value is a map.
func (v Value) MapVal() (Properties, bool) { return v.m, v.kind == KindMap }

// Any returns the value as a plain interface{} for export.
func (v Value) Any() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		return v.m.ToMap()
	default:
		return nil
	}
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	if v.kind == KindMap {
		return Value{kind: KindMap, m: v.m.Clone()}
	}
	return v
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueFromAny converts a dynamically typed value (e.g. decoded JSON) into a
// Value. Unsupported kinds return an error.
func ValueFromAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case bool:
		return Bool(t), nil
	case map[string]interface{}:
		nested, err := PropertiesFromMap(t)
		if err != nil {
			return Value{}, err
		}
		return Map(nested), nil
	case Properties:
		return Map(t.Clone()), nil
	default:
		return Value{}, fmt.Errorf("unsupported property value type %T", raw)
	}
}

// Properties is a string-keyed map of property values.
type Properties map[string]Value

// PropertiesFromMap converts a plain map (e.g. decoded JSON) into Properties.
func PropertiesFromMap(raw map[string]interface{}) (Properties, error) {
	if raw == nil {
		return nil, nil
	}
	props := make(Properties, len(raw))
	for key, val := range raw {
		v, err := ValueFromAny(val)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		props[key] = v
	}
	return props, nil
}

// ToMap converts the properties into a plain map for export.
func (p Properties) ToMap() map[string]interface{} {
	if p == nil {
		return nil
	}
	out := make(map[string]interface{}, len(p))
	for key, val := range p {
		out[key] = val.Any()
	}
	return out
}

// Clone returns a deep copy of the properties.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for key, val := range p {
		out[key] = val.Clone()
	}
	return out
}

// Update merges other into p, with other winning on key collisions.
// The receiver must be non-nil.
func (p Properties) Update(other Properties) {
	for key, val := range other {
		p[key] = val.Clone()
	}
}
