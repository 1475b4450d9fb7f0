package docparse

import (
	"testing"

	"github.com/hazyhaar/docparse/value"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		in   string
		want value.Value
	}{
		{"", value.Null()},
		{"   ", value.Null()},
		{"\t\n", value.Null()},
		{"42", value.Int(42)},
		{"-7", value.Int(-7)},
		{" 42 ", value.Int(42)},
		{"9223372036854775807", value.Int(9223372036854775807)},
		{"3.14", value.Float(3.14, "3.14")},
		{"1e3", value.Float(1000, "1e3")},
		{"-0.5", value.Float(-0.5, "-0.5")},
		{"9223372036854775808", value.Float(9223372036854775808, "9223372036854775808")},
		{"yes", value.Bool(true)},
		{"No", value.Bool(false)},
		{"TRUE", value.Bool(true)},
		{"t", value.Bool(true)},
		{"F", value.Bool(false)},
		{"y", value.Bool(true)},
		{"n", value.Bool(false)},
		// Integers win over the boolean literals "1" and "0".
		{"1", value.Int(1)},
		{"0", value.Int(0)},
		{" hello ", value.String(" hello ")},
		{"NaN", value.String("NaN")},
		{"inf", value.String("inf")},
		{"-Infinity", value.String("-Infinity")},
		{"1e400", value.String("1e400")},
		{"0x1F", value.String("0x1F")},
		{"1_000", value.String("1_000")},
		{"1,000", value.String("1,000")},
		{"Ann", value.String("Ann")},
	}
	for _, tt := range tests {
		got := Infer(tt.in)
		if !value.Equal(got, tt.want) {
			t.Errorf("Infer(%q) = %s (%s), want %s (%s)", tt.in, got, got.Kind(), tt.want, tt.want.Kind())
		}
	}
}

func TestInfer_LeadingPlusIsFloat(t *testing.T) {
	got := Infer("+5")
	if f, ok := got.AsFloat(); !ok || f != 5 {
		t.Fatalf("Infer(+5) = %s (%s), want Float 5", got, got.Kind())
	}
}

func TestInfer_Deterministic(t *testing.T) {
	for _, in := range []string{"42", "3.14", "yes", " x ", ""} {
		if !value.Equal(Infer(in), Infer(in)) {
			t.Errorf("Infer(%q) not deterministic", in)
		}
	}
}
