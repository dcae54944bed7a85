// Package numeric converts loosely typed engine values into float64.
//
// The engine is a dynamically typed service and its payloads carry numbers as
// JSON numbers, numeric strings, booleans or null depending on the code path
// that produced them. Coerce follows the same conversion rules the engine's
// own clients use, so "100.5" and 100.5 mean the same thing and garbage
// becomes NaN instead of disappearing.
package numeric

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Coerce converts v to a number. Empty strings, null and false become 0,
// true becomes 1, unparseable strings and composite values become NaN.
func Coerce(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		return parseString(n.String())
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		return parseString(n)
	default:
		return math.NaN()
	}
}

func parseString(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			u, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(u)
		}
	}
	if !decimalLiteral.MatchString(s) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// out of range literals still carry a sign
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// Finite returns v as a float64 only when it already is a finite number.
// Numeric strings are rejected.
func Finite(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Truthy reports whether v would pass a boolean test in the engine's
// client code: empty strings, zero, NaN, false and null are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f := Coerce(t)
		return f != 0 && !math.IsNaN(f)
	case float64, float32, int, int32, int64, uint, uint64:
		f := Coerce(t)
		return f != 0 && !math.IsNaN(f)
	default:
		return true
	}
}
