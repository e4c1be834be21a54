package smash

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"18", 18},
		{" 42 ", 42},
		{"3.9", 3},
		{18.7, 18},
		{int64(5), 5},
		{uint8(7), 7},
		{json.Number("12"), 12},
		{true, 1},
		{"abc", nil},
		{"-7.5", -7},
		{"1e20", nil},
		{"9.3e18", nil},
		{1e20, nil},
		{-1e20, nil},
		{float32(1e20), nil},
		{json.Number("1e20"), nil},
		{math.Inf(1), nil},
		{math.NaN(), nil},
		{nil, nil},
		{[]any{1}, nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToInt(tt.in), "ToInt(%#v)", tt.in)
	}
}

func TestToInt64Overflow(t *testing.T) {
	assert.Equal(t, int64(-9223372036854775808), ToInt64(-0x1p63))
	assert.Nil(t, ToInt64(0x1p63))
	assert.Nil(t, ToTime(1e20))
	assert.Nil(t, ToBool(1e20))
}

func TestToFloatAndString(t *testing.T) {
	assert.Equal(t, 1.5, ToFloat("1.5"))
	assert.Equal(t, 2.0, ToFloat(2))
	assert.Equal(t, 0.25, ToFloat(json.Number("0.25")))
	assert.Nil(t, ToFloat("x"))

	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "7", ToString(7))
	assert.Equal(t, "raw", ToString([]byte("raw")))
	assert.Nil(t, ToString(nil))
}

func TestToBool(t *testing.T) {
	for _, in := range []any{true, "true", "YES", "on", "1", 1, 2.0} {
		assert.Equal(t, true, ToBool(in), "ToBool(%#v)", in)
	}
	for _, in := range []any{false, "false", "no", "off", "", 0} {
		assert.Equal(t, false, ToBool(in), "ToBool(%#v)", in)
	}
	assert.Nil(t, ToBool("maybe"))
}

func TestToTimeAndDuration(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, want, ToTime("2024-03-01T12:30:00Z"))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ToTime(1700000000.0))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ToTime("2024-03-01"))
	assert.Nil(t, ToTime("yesterday"))

	assert.Equal(t, 90*time.Second, ToDuration("1m30s"))
	assert.Equal(t, 1500*time.Millisecond, ToDuration(1.5))
	assert.Nil(t, ToDuration("soon"))
}

func TestToStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "1"}, ToStrings([]any{"a", nil, 1}))
	assert.Equal(t, []string{"solo"}, ToStrings("solo"))
	assert.Nil(t, ToStrings(nil))
}

func TestCoercionRegistry(t *testing.T) {
	names := CoercionNames()
	for _, name := range []string{"int", "float", "string", "bool", "time", "duration", "lower", "upper", "trim"} {
		assert.Contains(t, names, name)
	}

	RegisterCoercion("test-double", func(v any) any { return v.(int) * 2 })
	fn, ok := LookupCoercion("test-double")
	assert.True(t, ok)
	assert.Equal(t, 8, fn(4))

	upper, _ := LookupCoercion("upper")
	assert.Equal(t, "ABC", upper.Transform("abc"))
	assert.Equal(t, 3, upper.Transform(3), "non-strings pass through")
}
