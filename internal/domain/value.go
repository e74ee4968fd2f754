package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindStrings
)

// Value is a restricted variant used for per-source metadata and metrics:
// a string, a number, a bool or a list of strings. Nothing else survives
// a JSON round trip.
type Value struct {
	kind ValueKind
	s    string
	n    float64
	b    bool
	l    []string
}

func String(s string) Value             { return Value{kind: KindString, s: s} }
func Number(n float64) Value            { return Value{kind: KindNumber, n: n} }
func Int(n int) Value                   { return Value{kind: KindNumber, n: float64(n)} }
func Bool(b bool) Value                 { return Value{kind: KindBool, b: b} }
func Strings(l ...string) Value         { return Value{kind: KindStrings, l: append([]string{}, l...)} }
func (v Value) Kind() ValueKind         { return v.kind }
func (v Value) Str() string             { return v.s }
func (v Value) Num() float64            { return v.n }
func (v Value) Flag() bool              { return v.b }
func (v Value) List() []string          { return append([]string(nil), v.l...) }
func (v Value) IsKind(k ValueKind) bool { return v.kind == k }

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindStrings:
		return fmt.Sprint(v.l)
	default:
		return v.s
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.n)
	case KindBool:
		return json.Marshal(v.b)
	case KindStrings:
		if v.l == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.l)
	default:
		return json.Marshal(v.s)
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("metadata value: empty")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var x bool
		if err := json.Unmarshal(b, &x); err != nil {
			return err
		}
		*v = Bool(x)
	case '[':
		var l []string
		if err := json.Unmarshal(b, &l); err != nil {
			return fmt.Errorf("metadata value: list must contain only strings: %w", err)
		}
		*v = Strings(l...)
	case 'n':
		return fmt.Errorf("metadata value: null is not allowed")
	case '{':
		return fmt.Errorf("metadata value: objects are not allowed")
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("metadata value: %w", err)
		}
		*v = Number(n)
	}
	return nil
}

// Metadata is an opaque per-source key/value map.
type Metadata map[string]Value

// AppendString appends s to the string list stored under key, creating it
// when missing. A non-list value under key is replaced.
func (m Metadata) AppendString(key, s string) {
	cur, ok := m[key]
	if !ok || cur.kind != KindStrings {
		m[key] = Strings(s)
		return
	}
	cur.l = append(append([]string{}, cur.l...), s)
	m[key] = cur
}

// Merge copies every entry of other into m, overwriting on conflict.
func (m Metadata) Merge(other Metadata) {
	for k, v := range other {
		m[k] = v
	}
}

// MetadataFrom converts loosely typed values, dropping anything that does
// not fit the variant.
func MetadataFrom(in map[string]any) Metadata {
	out := Metadata{}
	for k, raw := range in {
		switch x := raw.(type) {
		case string:
			if x != "" {
				out[k] = String(x)
			}
		case bool:
			out[k] = Bool(x)
		case int:
			out[k] = Int(x)
		case int64:
			out[k] = Number(float64(x))
		case float64:
			out[k] = Number(x)
		case []string:
			out[k] = Strings(x...)
		case []any:
			var l []string
			for _, e := range x {
				if s, ok := e.(string); ok {
					l = append(l, s)
				}
			}
			out[k] = Strings(l...)
		}
	}
	return out
}
