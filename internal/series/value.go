package series

import (
	"math"
	"strconv"
	"strings"
)

// Value is an optional numeric field of a bar. Exchange feeds occasionally
// carry malformed numbers; those coerce to an invalid Value instead of
// failing the whole row.
type Value struct {
	Float float64
	Valid bool
}

// Num wraps a known-good float in a valid Value.
func Num(f float64) Value {
	return Value{Float: f, Valid: true}
}

// ParseValue coerces a string field to a Value. Empty strings, parse
// failures and literal NaN all map to the invalid Value.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return Value{}
	}
	return Value{Float: f, Valid: true}
}

// AsFloat returns the numeric value, or NaN when the Value is invalid.
func (v Value) AsFloat() float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float
}

// String renders the value for CSV export; invalid values serialize as the
// empty field and round-trip back to invalid.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}
