package cookiesession

import (
	"encoding/json"
	"math"
	"testing"
)

func TestValue_Accessors(t *testing.T) {
	if s, ok := String("x").AsString(); !ok || s != "x" {
		t.Errorf("AsString() = %q, %v", s, ok)
	}
	if _, ok := String("x").AsNumber(); ok {
		t.Error("string should not read as a number")
	}
	if f, ok := Number(1.5).AsNumber(); !ok || f != 1.5 {
		t.Errorf("AsNumber() = %v, %v", f, ok)
	}
	if i, ok := Number(2.9).AsInt(); !ok || i != 2 {
		t.Errorf("AsInt() = %v, %v", i, ok)
	}
	if b, ok := Bool(true).AsBool(); !ok || !b {
		t.Errorf("AsBool() = %v, %v", b, ok)
	}
	if !(Value{}).IsZero() || String("").IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestValue_UnmarshalKinds(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		out  string
	}{
		{`"hello"`, KindString, `"hello"`},
		{`42`, KindNumber, `42`},
		{`-0.5`, KindNumber, `-0.5`},
		{`1e3`, KindNumber, `1000`},
		{`true`, KindBool, `true`},
		{`false`, KindBool, `false`},
		{`null`, KindJSON, `null`},
		{` { "a" : [1, "b"] } `, KindJSON, `{"a":[1,"b"]}`},
		{`[]`, KindJSON, `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := JSON([]byte(tt.in))
			if err != nil {
				t.Fatalf("JSON(%s) failed: %v", tt.in, err)
			}
			if v.Kind() != tt.kind {
				t.Errorf("kind = %v, want %v", v.Kind(), tt.kind)
			}
			if got := string(v.Raw()); got != tt.out {
				t.Errorf("Raw() = %s, want %s", got, tt.out)
			}
		})
	}

	for _, bad := range []string{``, `{`, `nope`, `"unterminated`} {
		if _, err := JSON([]byte(bad)); err == nil {
			t.Errorf("JSON(%q) should fail", bad)
		}
	}
}

func TestValue_MapRoundTrip(t *testing.T) {
	nested, _ := JSON([]byte(`{"z":1,"a":{"b":null}}`))
	in := map[string]Value{
		"s": String("line\nbreak \"quoted\""),
		"n": Number(3.25),
		"i": Int(-7),
		"b": Bool(false),
		"j": nested,
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out map[string]Value
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("expected %d fields, got %d", len(in), len(out))
	}
	for k, v := range in {
		if !out[k].Equal(v) {
			t.Errorf("field %s: got %s (%v), want %s (%v)", k, out[k].Raw(), out[k].Kind(), v.Raw(), v.Kind())
		}
	}
}

func TestValue_String(t *testing.T) {
	if got := String("plain").String(); got != "plain" {
		t.Errorf("String() = %q", got)
	}
	if got := Int(5).String(); got != "5" {
		t.Errorf("String() = %q", got)
	}
	if got := (Value{}).String(); got != "null" {
		t.Errorf("String() = %q", got)
	}
	if Int(1).Equal(String("1")) {
		t.Error("values of different kinds should not be equal")
	}
}

func TestValue_NonFiniteNumber(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		v := Number(f)
		if v.Kind() != KindJSON || string(v.Raw()) != "null" {
			t.Errorf("Number(%v) = %s (%v), want null", f, v.Raw(), v.Kind())
		}
		if _, ok := v.AsNumber(); ok {
			t.Errorf("Number(%v) should not read back as a number", f)
		}
	}
}

func TestValue_StringNotHTMLEscaped(t *testing.T) {
	if got := string(String("a<b>&c").Raw()); got != `"a<b>&c"` {
		t.Errorf("Raw() = %s", got)
	}
}
