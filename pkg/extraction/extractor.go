// Package extraction resolves normalized facts from the loosely-structured
// submission payloads. Payload shapes have drifted over time, so each fact
// is described by an ordered candidate list of dot-paths; the first
// candidate that resolves to a usable value wins.
package extraction

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Candidate is one possible source for a numeric fact. Divisor converts
// units on the way out (e.g. cents paths carry Divisor 100).
type Candidate struct {
	Path    string
	Divisor float64
}

// Lookup walks a dot-notation path through nested maps. Missing keys and
// non-map intermediates resolve to nil, never an error.
func Lookup(data map[string]any, path string) any {
	if path == "" {
		return nil
	}

	var current any = data
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[key]
		if !ok {
			return nil
		}
	}

	return current
}

// Number resolves the first candidate that yields a numeric value,
// applying that candidate's divisor. Returns nil when no candidate
// resolves.
func Number(data map[string]any, candidates ...Candidate) *float64 {
	for _, c := range candidates {
		value := Lookup(data, c.Path)
		if value == nil {
			continue
		}
		n, ok := toNumber(value)
		if !ok {
			continue
		}
		if c.Divisor != 0 && c.Divisor != 1 {
			n = n / c.Divisor
		}
		return &n
	}

	return nil
}

// String resolves the first candidate path that yields a non-empty string
func String(data map[string]any, paths ...string) *string {
	for _, path := range paths {
		value := Lookup(data, path)
		if value == nil {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		return &s
	}

	return nil
}

// Rating narrows a numeric fact to the 1-5 rating scale. Out-of-range
// values are treated as malformed and excluded rather than clamped.
func Rating(data map[string]any, candidates ...Candidate) *float64 {
	n := Number(data, candidates...)
	if n == nil {
		return nil
	}
	if *n < 1 || *n > 5 {
		return nil
	}
	return n
}

// Money narrows a numeric fact to non-negative amounts. Negative values
// are malformed and excluded.
func Money(data map[string]any, candidates ...Candidate) *float64 {
	n := Number(data, candidates...)
	if n == nil {
		return nil
	}
	if *n < 0 {
		return nil
	}
	return n
}

// toNumber coerces the values json.Unmarshal and hand-built test maps
// produce into a float64
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
