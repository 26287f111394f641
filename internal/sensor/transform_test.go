package sensor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquals(t *testing.T) {
	started := Equals("STARTED")

	v, err := started("STARTED")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = started("STOPPED")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = started(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		raw     any
		want    int64
		wantErr bool
	}{
		{raw: 42, want: 42},
		{raw: uint(7), want: 7},
		{raw: int8(-8), want: -8},
		{raw: int16(16), want: 16},
		{raw: uint8(255), want: 255},
		{raw: uint16(65535), want: 65535},
		{raw: float32(3), want: 3},
		{raw: float64(7), want: 7},
		{raw: json.Number("12"), want: 12},
		{raw: " 99 ", want: 99},
		{raw: 1.5, wantErr: true},
		{raw: uint64(1 << 63), wantErr: true},
		{raw: 1e19, wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: map[string]any{}, wantErr: true},
	}

	for _, tt := range tests {
		v, err := ToInt64(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMalformed, "raw %v", tt.raw)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, v)
	}
}

func TestToFloat64_AllNumericTypes(t *testing.T) {
	for _, raw := range []any{
		int(2), int8(2), int16(2), int32(2), int64(2),
		uint(2), uint8(2), uint16(2), uint32(2), uint64(2),
		float32(2), float64(2), json.Number("2"), "2",
	} {
		v, err := ToFloat64(raw)
		require.NoError(t, err, "raw %v (%T)", raw, raw)
		assert.Equal(t, float64(2), v, "raw %T", raw)
	}

	_, err := ToFloat64(true)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestToBool_AllNumericTypes(t *testing.T) {
	for _, raw := range []any{int8(1), int16(1), int32(1), uint(1), uint8(1), uint16(1), uint32(1), uint64(1), float32(0.5), json.Number("1")} {
		v, err := ToBool(raw)
		require.NoError(t, err, "raw %T", raw)
		assert.Equal(t, true, v, "raw %T", raw)
	}
	for _, raw := range []any{int32(0), uint(0), float32(0)} {
		v, err := ToBool(raw)
		require.NoError(t, err, "raw %T", raw)
		assert.Equal(t, false, v, "raw %T", raw)
	}
}

func TestToString_SmallIntegers(t *testing.T) {
	for _, raw := range []any{int8(5), int16(5), uint8(5), uint16(5)} {
		v, err := ToString(raw)
		require.NoError(t, err, "raw %T", raw)
		assert.Equal(t, "5", v)
	}
}

func TestToBool(t *testing.T) {
	v, err := ToBool("true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = ToBool(0)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = ToBool("maybe")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestChain(t *testing.T) {
	up := Chain(ToString, Equals("green"))

	v, err := up("green")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = up([]int{1})
	assert.ErrorIs(t, err, ErrMalformed)
}
