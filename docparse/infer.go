package docparse

import (
	"math"
	"strconv"
	"strings"

	"github.com/hazyhaar/docparse/value"
)

// Infer converts one raw cell into the most specific value, in this order:
//
//  1. blank after trimming → Null
//  2. signed 64-bit integer (no '+', no separators) → Int
//  3. finite float → Float
//  4. boolean literal (true/t/yes/y/1, false/f/no/n/0, any case) → Bool
//  5. anything else → String holding the untrimmed input
//
// "1" and "0" are claimed by rule 2 and never reach rule 4.
func Infer(cell string) value.Value {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return value.Null()
	}

	if trimmed[0] != '+' {
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return value.Int(i)
		}
	}

	if f, ok := parseFloat(trimmed); ok {
		return value.Float(f, trimmed)
	}

	switch strings.ToLower(trimmed) {
	case "true", "t", "yes", "y", "1":
		return value.Bool(true)
	case "false", "f", "no", "n", "0":
		return value.Bool(false)
	}

	return value.String(cell)
}

// parseFloat accepts decimal float syntax only and rejects non-finite
// results, so "NaN" and "inf" fall through to the string rule.
func parseFloat(s string) (float64, bool) {
	if strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
