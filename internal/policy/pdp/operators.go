package pdp

import (
	"cmp"
	"reflect"
	"strings"
	"time"
)

// Operator names understood by Apply. An "odrl:" prefix is accepted.
const (
	OpEq       = "eq"
	OpNeq      = "neq"
	OpLt       = "lt"
	OpLteq     = "lteq"
	OpGt       = "gt"
	OpGteq     = "gteq"
	OpIsAnyOf  = "isAnyOf"
	OpIsNoneOf = "isNoneOf"
	OpIsAllOf  = "isAllOf"
	OpIsPartOf = "isPartOf"
)

// Apply evaluates left <op> right. Unknown operators and incomparable
// operands yield false.
func Apply(op string, left, right any) bool {
	switch strings.TrimPrefix(op, "odrl:") {
	case OpEq:
		return equal(left, right)
	case OpNeq:
		return !equal(left, right)
	case OpLt:
		c, ok := compare(left, right)
		return ok && c < 0
	case OpLteq:
		c, ok := compare(left, right)
		return ok && c <= 0
	case OpGt:
		c, ok := compare(left, right)
		return ok && c > 0
	case OpGteq:
		c, ok := compare(left, right)
		return ok && c >= 0
	case OpIsAnyOf:
		set, ok := asList(right)
		if !ok {
			return false
		}
		if vals, isList := asList(left); isList {
			for _, v := range vals {
				if contains(set, v) {
					return true
				}
			}
			return false
		}
		return contains(set, left)
	case OpIsNoneOf:
		set, ok := asList(right)
		if !ok {
			return false
		}
		if vals, isList := asList(left); isList {
			for _, v := range vals {
				if contains(set, v) {
					return false
				}
			}
			return true
		}
		return !contains(set, left)
	case OpIsAllOf:
		vals, ok := asList(left)
		want, ok2 := asList(right)
		if !ok || !ok2 {
			return false
		}
		for _, w := range want {
			if !contains(vals, w) {
				return false
			}
		}
		return true
	case OpIsPartOf:
		set, ok := asList(right)
		if !ok {
			return false
		}
		vals, isList := asList(left)
		if !isList {
			return contains(set, left)
		}
		for _, v := range vals {
			if !contains(set, v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Equal(tb)
		}
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	return reflect.DeepEqual(a, b)
}

// compare orders numbers numerically, RFC 3339 timestamps chronologically,
// and other strings lexically.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return cmp.Compare(fa, fb), true
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func contains(set []any, v any) bool {
	for _, s := range set {
		if equal(s, v) {
			return true
		}
	}
	return false
}
