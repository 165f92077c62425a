package checker

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

func stringField(obj map[string]any, key string) (string, bool) {
	s, ok := obj[key].(string)
	return s, ok
}

func boolField(obj map[string]any, key string) (bool, bool) {
	b, ok := obj[key].(bool)
	return b, ok
}

func arrayField(obj map[string]any, key string) ([]any, bool) {
	a, ok := obj[key].([]any)
	return a, ok
}

func objectField(obj map[string]any, key string) (map[string]any, bool) {
	switch o := obj[key].(type) {
	case map[string]any:
		return o, true
	case SystemData:
		return o, true
	default:
		return nil, false
	}
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case SystemData:
		return o, true
	default:
		return nil, false
	}
}

// intField reads an integral number in any of the decoded representations.
func intField(obj map[string]any, key string) (int64, bool) {
	switch n := obj[key].(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// intConstraint returns the integer constraint name, def when absent, and
// ok=false when present but malformed.
func intConstraint(s *spec.ComplianceSpec, name string, def int64) (int64, bool) {
	raw, present := s.Constraints[name]
	if !present {
		return def, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
