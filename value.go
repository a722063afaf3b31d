package cookiesession

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	default:
		return "invalid"
	}
}

// Value is a single session field. It holds a string, a number, a bool or an
// arbitrary JSON document (object, array or null). Numbers follow JSON
// semantics and are stored as float64.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	raw  json.RawMessage
}

var errInvalidJSON = errors.New("value is not valid JSON")

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a number Value. JSON has no NaN or infinity, so a
// non-finite f yields a null Value instead.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{kind: KindJSON, raw: json.RawMessage("null")}
	}
	return Value{kind: KindNumber, num: f}
}

// Int returns a number Value holding i.
func Int(i int64) Value {
	return Value{kind: KindNumber, num: float64(i)}
}

// Bool returns a bool Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// JSON returns a Value holding the compacted JSON document raw. Scalars are
// mapped to their own kinds so that a round trip through a cookie yields an
// equal Value.
func JSON(raw []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return Value{}, err
	}
	return v, nil
}

// Kind reports the type held by v.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v was never assigned.
func (v Value) IsZero() bool { return v.kind == KindInvalid }

// AsString returns the text of a string Value.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsNumber returns the float64 of a number Value.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsInt returns the number truncated to an int64.
func (v Value) AsInt() (int64, bool) {
	return int64(v.num), v.kind == KindNumber
}

// AsBool returns the boolean of a bool Value.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Raw returns the JSON encoding of v.
func (v Value) Raw() json.RawMessage {
	b, _ := v.MarshalJSON()
	return b
}

// String renders v for display: the text itself for strings, JSON otherwise.
func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	return string(v.Raw())
}

// Equal reports whether v and o hold the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindJSON:
		return bytes.Equal(v.raw, o.raw)
	default:
		return true
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return marshalText(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindJSON:
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return errInvalidJSON
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '{', '[', 'n':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*v = Value{kind: KindJSON, raw: buf.Bytes()}
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
	}
	return nil
}

// marshalText encodes v as JSON, leaving <, > and & unescaped.
func marshalText(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
