package core

import "strconv"

// IntFromAny converts a decoded JSON/TOML number (float64, int, int64 or numeric string) to int,
// returning 0 for unsupported types.
func IntFromAny(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// PositiveIntAt walks nested maps along path and returns the integer found there if positive.
func PositiveIntAt(m map[string]any, path ...string) (int, bool) {
	var current any = m
	for _, key := range path {
		object, ok := current.(map[string]any)
		if !ok {
			return 0, false
		}
		current, ok = object[key]
		if !ok {
			return 0, false
		}
	}

	if _, isString := current.(string); isString {
		return 0, false
	}

	value := IntFromAny(current)
	if value <= 0 {
		return 0, false
	}
	return value, true
}
