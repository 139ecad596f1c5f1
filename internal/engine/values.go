package engine

import (
	"encoding/json"
	"strconv"
)

// toString coerces a raw field value the way form values are read back:
// true becomes "1", false and nil become "", integral floats lose the
// decimal point, and structures become JSON.
func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []byte:
		return string(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// isNumericZero reports whether v is the number zero, either as a Go
// number or as a numeric string.
func isNumericZero(v any) bool {
	switch val := v.(type) {
	case int:
		return val == 0
	case int64:
		return val == 0
	case float64:
		return val == 0
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return err == nil && f == 0
	}
	return false
}

// isEmpty mirrors the loose emptiness check used by "not empty".
func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return toString(v) == ""
}
