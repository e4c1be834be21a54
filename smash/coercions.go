package smash

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Coercions are named single-argument conversions that can be referenced by
// name wherever a transformer is accepted. A coercion returns nil when the
// value cannot be converted.
var coercions = struct {
	mu sync.RWMutex
	m  map[string]TransformerFunc
}{m: make(map[string]TransformerFunc)}

func init() {
	RegisterCoercion("int", ToInt)
	RegisterCoercion("int64", ToInt64)
	RegisterCoercion("float", ToFloat)
	RegisterCoercion("string", ToString)
	RegisterCoercion("bool", ToBool)
	RegisterCoercion("time", ToTime)
	RegisterCoercion("duration", ToDuration)
	RegisterCoercion("strings", ToStrings)
	RegisterCoercion("lower", func(v any) any { return mapString(v, strings.ToLower) })
	RegisterCoercion("upper", func(v any) any { return mapString(v, strings.ToUpper) })
	RegisterCoercion("trim", func(v any) any { return mapString(v, strings.TrimSpace) })
}

// RegisterCoercion makes fn available under name. Registering an existing
// name replaces it.
func RegisterCoercion(name string, fn func(any) any) {
	coercions.mu.Lock()
	defer coercions.mu.Unlock()
	coercions.m[name] = TransformerFunc(fn)
}

// LookupCoercion returns the coercion registered under name.
func LookupCoercion(name string) (TransformerFunc, bool) {
	coercions.mu.RLock()
	defer coercions.mu.RUnlock()
	fn, ok := coercions.m[name]
	return fn, ok
}

// CoercionNames lists registered coercions, sorted.
func CoercionNames() []string {
	coercions.mu.RLock()
	defer coercions.mu.RUnlock()
	names := make([]string, 0, len(coercions.m))
	for name := range coercions.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToInt converts numbers, numeric strings and booleans to int. Fractions are
// truncated.
func ToInt(v any) any {
	n, ok := toInt64(v)
	if !ok {
		return nil
	}
	return int(n)
}

// ToInt64 is ToInt with an int64 result.
func ToInt64(v any) any {
	n, ok := toInt64(v)
	if !ok {
		return nil
	}
	return n
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float32:
		return floatToInt64(float64(val))
	case float64:
		return floatToInt64(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, true
		}
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt64(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

// floatToInt64 truncates f, refusing values int64 cannot hold.
func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || f >= 0x1p63 || f < -0x1p63 {
		return 0, false
	}
	return int64(f), true
}

// ToFloat converts numbers and numeric strings to float64.
func ToFloat(v any) any {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		return f
	default:
		if n, ok := toInt64(v); ok {
			return float64(n)
		}
		return nil
	}
}

// ToString formats any non-nil value as a string.
func ToString(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// ToBool accepts booleans, numbers (non-zero is true) and the strings
// understood by strconv.ParseBool plus "yes"/"no" and "on"/"off".
func ToBool(v any) any {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "yes", "y", "on":
			return true
		case "no", "n", "off", "":
			return false
		}
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		return b
	default:
		if n, ok := toInt64(v); ok {
			return n != 0
		}
		return nil
	}
}

// ToTime parses RFC 3339 strings (with or without fractional seconds), plain
// dates and unix seconds.
func ToTime(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(n, 0).UTC()
		}
		return nil
	default:
		if n, ok := toInt64(v); ok {
			return time.Unix(n, 0).UTC()
		}
		return nil
	}
}

// ToDuration parses Go duration strings; numbers are taken as seconds.
func ToDuration(v any) any {
	switch val := v.(type) {
	case time.Duration:
		return val
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		return d
	default:
		f, ok := ToFloat(v).(float64)
		if !ok {
			return nil
		}
		return time.Duration(f * float64(time.Second))
	}
}

// ToStrings converts a sequence to []string, dropping nil elements. A single
// scalar becomes a one-element slice.
func ToStrings(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := ToString(item).(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, ok := ToString(v).(string); ok {
			return []string{s}
		}
		return nil
	}
}

func mapString(v any, fn func(string) string) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return fn(s)
}
