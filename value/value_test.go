package value

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFloat_NonFiniteDegradesToString(t *testing.T) {
	tests := []struct {
		f    float64
		text string
	}{
		{math.NaN(), "NaN"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		v := Float(tt.f, tt.text)
		s, ok := v.AsString()
		if !ok || s != tt.text {
			t.Errorf("Float(%v, %q) = %v, want String(%q)", tt.f, tt.text, v, tt.text)
		}
	}

	if v := Float(2.5, "2.5"); v.Kind() != KindFloat {
		t.Errorf("Float(2.5) kind = %s, want float", v.Kind())
	}
}

func TestObject_InsertionOrderAndOverwrite(t *testing.T) {
	o := NewObject(3)
	o.Set("b", Int(1))
	o.Set("a", Int(2))
	o.Set("b", String("last"))

	if o.Len() != 2 {
		t.Fatalf("Len = %d, want 2", o.Len())
	}
	keys := o.Keys()
	if keys[0] != "b" || keys[1] != "a" {
		t.Fatalf("keys = %v, want [b a]", keys)
	}
	got, _ := o.Get("b")
	if s, _ := got.AsString(); s != "last" {
		t.Fatalf("b = %v, want \"last\"", got)
	}

	b, err := json.Marshal(ObjectOf(o))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"b":"last","a":2}` {
		t.Fatalf("json = %s", b)
	}
}

func TestMarshalJSON_Nested(t *testing.T) {
	row := NewObject(2)
	row.Set("page_number", Int(1))
	row.Set("content", String("Hello \"world\""))
	v := Array(Array(ObjectOf(row)), Array(), Null(), Bool(false), Float(0.5, "0.5"))

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	want := `[[{"page_number":1,"content":"Hello \"world\""}],[],null,false,0.5]`
	if string(b) != want {
		t.Fatalf("json = %s\nwant  %s", b, want)
	}
}

func TestParse(t *testing.T) {
	v, err := Parse([]byte(`{"z":1,"a":[true,null,1.25,"x"],"big":1e400}`))
	if err != nil {
		t.Fatal(err)
	}
	obj := v.Object()
	if obj == nil {
		t.Fatalf("expected object, got %s", v.Kind())
	}
	if keys := obj.Keys(); keys[0] != "z" || keys[1] != "a" {
		t.Fatalf("keys = %v", keys)
	}
	z, _ := obj.Get("z")
	if i, ok := z.AsInt(); !ok || i != 1 {
		t.Errorf("z = %v, want Int(1)", z)
	}
	a, _ := obj.Get("a")
	if a.Len() != 4 || a.Items()[2].Kind() != KindFloat {
		t.Errorf("a = %v", a)
	}
	big, _ := obj.Get("big")
	if big.Kind() != KindString {
		t.Errorf("big = %v, want String for out-of-range float", big)
	}

	if _, err := Parse([]byte(`{} {}`)); err == nil {
		t.Error("expected error for trailing data")
	}
}

func TestEqual(t *testing.T) {
	mk := func(order ...string) Value {
		o := NewObject(len(order))
		for i, k := range order {
			o.Set(k, Int(int64(i)))
		}
		return ObjectOf(o)
	}
	if !Equal(mk("a", "b"), mk("a", "b")) {
		t.Error("identical objects should be equal")
	}
	if Equal(mk("a", "b"), mk("b", "a")) {
		t.Error("key order is significant")
	}
	if Equal(Int(1), Float(1, "1")) {
		t.Error("Int and Float must differ")
	}
	if !Equal(Array(Null(), String("x")), Array(Null(), String("x"))) {
		t.Error("identical arrays should be equal")
	}
}

func TestInterface(t *testing.T) {
	o := NewObject(1)
	o.Set("n", Int(7))
	got := Array(ObjectOf(o), Bool(true)).Interface().([]any)
	m := got[0].(map[string]any)
	if m["n"].(int64) != 7 || got[1].(bool) != true {
		t.Fatalf("Interface = %#v", got)
	}
}

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	if !v.IsNull() || v.String() != "null" {
		t.Fatalf("zero Value = %v", v)
	}
}

// WHAT: integral floats encode with a fraction and decode back as Float.
// WHY: stored attachments must keep the Float/Int distinction.
func TestFloat_RoundTripKeepsKind(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{Float(3, "3.0"), "3.0"},
		{Float(100, "1e2"), "100.0"},
		{Float(-2, "-2.0"), "-2.0"},
		{Float(2.5, "2.5"), "2.5"},
		{Float(1e21, "1e21"), "1e+21"},
		{Int(3), "3"},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.in, b, tt.want)
		}
		back, err := Parse(b)
		if err != nil {
			t.Fatalf("Parse(%s): %v", b, err)
		}
		if back.Kind() != tt.in.Kind() || !Equal(back, tt.in) {
			t.Errorf("round trip of %s: got %v (%s), want %s", b, back, back.Kind(), tt.in.Kind())
		}
	}
}

func TestObject_ZeroValueSet(t *testing.T) {
	var o Object
	o.Set("a", Int(1))
	o.Set("a", Int(2))
	if got, ok := o.Get("a"); !ok || o.Len() != 1 {
		t.Fatalf("Get(a) = %v, %v; Len = %d", got, ok, o.Len())
	}
}
