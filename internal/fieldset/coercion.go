// internal/fieldset/coercion.go
package fieldset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/solatis/typekeeper/internal/types"
)

/*
 * Scalar coercion into the four canonical kinds.
 *
 * Nil passes through as nil for every kind. Malformed literals fail with
 * ErrCoercionFailed; nothing is ever replaced by a zero value.
 *
 *   - string:  strings verbatim, numbers and booleans formatted
 *   - integer: int64 from Go integers, integral-or-truncated floats and
 *              numeric strings ("2000", "3.0")
 *   - double:  float64 from numbers and numeric strings
 *   - boolean: bools and the strings "true"/"false" (case-insensitive)
 */

// Coerce converts a scalar value to the Go representation of kind.
func Coerce(value any, kind Kind) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch kind {
	case KindString:
		return coerceString(value)
	case KindInteger:
		return coerceInteger(value)
	case KindDouble:
		return coerceDouble(value)
	case KindBoolean:
		return coerceBoolean(value)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", types.ErrCoercionFailed, kind)
	}
}

func coerceString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case json.Number:
		return v.String(), nil
	}
	if n, ok := asInt64(value); ok {
		return strconv.FormatInt(n, 10), nil
	}
	return fmt.Sprintf("%v", value), nil
}

func coerceInteger(value any) (any, error) {
	if n, ok := asInt64(value); ok {
		return n, nil
	}
	switch v := value.(type) {
	case float64:
		return truncate(v)
	case float32:
		return truncate(float64(v))
	case json.Number:
		return parseInteger(v.String())
	case string:
		return parseInteger(v)
	}
	return nil, fmt.Errorf("%w: %T to integer", types.ErrCoercionFailed, value)
}

func parseInteger(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty string to integer", types.ErrCoercionFailed)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q to integer", types.ErrCoercionFailed, s)
	}
	return truncate(f)
}

// truncate converts toward zero; NaN, Inf and out-of-range values fail.
func truncate(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("%w: %v to integer", types.ErrCoercionFailed, f)
	}
	return int64(f), nil
}

func coerceDouble(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case json.Number:
		return parseDouble(v.String())
	case string:
		return parseDouble(v)
	}
	if n, ok := asInt64(value); ok {
		return float64(n), nil
	}
	return nil, fmt.Errorf("%w: %T to double", types.ErrCoercionFailed, value)
}

func parseDouble(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty string to double", types.ErrCoercionFailed)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q to double", types.ErrCoercionFailed, s)
	}
	return f, nil
}

func coerceBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q to boolean", types.ErrCoercionFailed, v)
	}
	return nil, fmt.Errorf("%w: %T to boolean", types.ErrCoercionFailed, value)
}

// asInt64 widens every Go integer type. Unsigned values above MaxInt64 are rejected.
func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}
