// CLAUDE:SUMMARY Owned JSON-like value type (null/bool/int/float/string/array/object) with ordered objects.
// Package value is the universal output representation of docparse.
//
// A Value is a small tagged union. Objects keep insertion order so that a row
// parsed from "name,age" always serialises as {"name":...,"age":...}.
// Numeric variants never hold NaN or infinities: Float degrades such input to
// a String carrying the original text, which keeps every Value JSON-safe.
package value

import (
	"math"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{"null", "bool", "int", "float", "string", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a dynamically typed structured value. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  *Object
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a signed 64-bit integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a finite float. NaN and ±Inf become String(text).
func Float(f float64, text string) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return String(text)
	}
	return Value{kind: KindFloat, f: f}
}

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps an ordered sequence. The slice is owned by the returned Value.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// ObjectOf wraps an ordered object. A nil object yields an empty one.
func ObjectOf(o *Object) Value {
	if o == nil {
		o = NewObject(0)
	}
	return Value{kind: KindObject, obj: o}
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and whether v is a Bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer and whether v is an Int.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float and whether v is a Float.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string and whether v is a String.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Items returns the elements of an Array, or nil.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Object returns the object of an Object value, or nil.
func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Len is the element count of an Array or the key count of an Object; 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return v.obj.Len()
	}
	return 0
}

// Interface converts v into plain Go values:
// nil, bool, int64, float64, string, []any, map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, it := range v.arr {
			out[i] = it.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, v.obj.Len())
		v.obj.Range(func(k string, val Value) bool {
			out[k] = val.Interface()
			return true
		})
		return out
	}
	return nil
}

// String implements fmt.Stringer with the compact JSON form.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid value: " + err.Error() + ">"
	}
	return string(b)
}

// Equal reports structural equality. Object key order is significant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return a.obj.equal(b.obj)
	}
	return false
}
