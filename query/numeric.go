package query

import (
	"fmt"
	"math"
	"strconv"
)

// coerceCount validates a limit/skip style argument. Numeric strings
// coerce to numbers; anything non-finite or non-numeric fails the build.
func coerceCount(name string, v interface{}) (int64, error) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, &ArgumentError{Detail: fmt.Sprintf("%s must be a number, got %q", name, n)}
		}
		f = parsed
	default:
		return 0, &ArgumentError{Detail: fmt.Sprintf("%s must be a number, got %T", name, v)}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ArgumentError{Detail: fmt.Sprintf("%s must be finite", name)}
	}
	if f < 0 {
		return 0, &ArgumentError{Detail: fmt.Sprintf("%s must not be negative", name)}
	}
	return int64(f), nil
}
