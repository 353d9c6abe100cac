package router

import (
	"fmt"
	"reflect"
	"regexp"
)

// Match is the value a StringMatch or MatchValue step compares against.
// It is either a literal (exact match) or a pattern (regular expression match).
// Build one with Literal or Pattern.
type Match struct {
	literal any
	pattern *regexp.Regexp
}

// Literal returns a Match that compares values for equality.
// Numeric values compare by value regardless of their Go type, so Literal(1)
// matches the float64 1 produced by JSON decoding.
func Literal(v any) Match {
	return Match{literal: v}
}

// Pattern returns a Match that tests the string form of a value against re.
func Pattern(re *regexp.Regexp) Match {
	if re == nil {
		panic("router: nil pattern")
	}
	return Match{pattern: re}
}

// IsPattern reports whether m was built with Pattern.
func (m Match) IsPattern() bool {
	return m.pattern != nil
}

func (m Match) String() string {
	if m.pattern != nil {
		return "/" + m.pattern.String() + "/"
	}
	return fmt.Sprintf("%#v", m.literal)
}

func (m Match) matches(v any) bool {
	if m.pattern != nil {
		if s, ok := v.(string); ok {
			return m.pattern.MatchString(s)
		}
		return m.pattern.MatchString(fmt.Sprint(v))
	}
	if a, ok := toFloat(m.literal); ok {
		b, ok := toFloat(v)
		return ok && a == b
	}
	return reflect.DeepEqual(m.literal, v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
