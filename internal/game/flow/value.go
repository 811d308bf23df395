package flow

import (
	"encoding/json"
	"strconv"
	"strings"
)

type valueKind int

const (
	valueUnset valueKind = iota
	valueNumber
	valueString
)

// Value holds a node parameter that may be a numeric literal, a numeric
// string, or a "$name" variable reference. Unresolvable values resolve to
// 0, never an error.
type Value struct {
	kind valueKind
	num  float64
	str  string
}

// NumberValue builds a numeric literal.
func NumberValue(n int) Value {
	return Value{kind: valueNumber, num: float64(n)}
}

// StringValue builds a string literal or variable reference.
func StringValue(s string) Value {
	return Value{kind: valueString, str: s}
}

// IsSet reports whether the parameter was present at all.
func (v Value) IsSet() bool { return v.kind != valueUnset }

// UnmarshalJSON accepts a JSON number or string; null and anything else
// leave the value unset.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*v = Value{kind: valueNumber, num: num}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*v = Value{kind: valueString, str: str}
		return nil
	}
	*v = Value{}
	return nil
}

// MarshalJSON emits the original literal shape; unset values marshal as
// null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case valueNumber:
		return json.Marshal(v.num)
	case valueString:
		return json.Marshal(v.str)
	}
	return []byte("null"), nil
}

// Resolve evaluates the value against the variables map: numbers pass
// through, "$name" reads a numeric variable (0 when absent or
// non-numeric), and other strings parse as integers (0 on failure).
func (v Value) Resolve(vars map[string]interface{}) int {
	switch v.kind {
	case valueNumber:
		return int(v.num)
	case valueString:
		if strings.HasPrefix(v.str, "$") {
			return numericVar(vars[v.str[1:]])
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v.str)); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64); err == nil {
			return int(f)
		}
		return 0
	}
	return 0
}

// ResolveOr is Resolve with a fallback for unset values.
func (v Value) ResolveOr(vars map[string]interface{}, fallback int) int {
	if v.kind == valueUnset {
		return fallback
	}
	return v.Resolve(vars)
}

func numericVar(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case float32:
		return int(t)
	}
	return 0
}
