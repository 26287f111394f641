package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ErrMalformed is wrapped by transforms that cannot interpret a raw value.
// Samples failing with it are discarded.
var ErrMalformed = errors.New("malformed raw value")

// Transform maps a raw external value onto the typed sensor value. It must be
// pure: the same input always gives the same output.
type Transform func(raw any) (any, error)

func malformed(raw any, format string, args ...interface{}) error {
	return fmt.Errorf("%w %v (%T): %s", ErrMalformed, raw, raw, fmt.Sprintf(format, args...))
}

// Identity passes the raw value through.
func Identity(raw any) (any, error) {
	return raw, nil
}

// Equals produces a boolean: whether the raw value, rendered as a string,
// equals the expected literal. A nil raw value is malformed.
func Equals(expected any) Transform {
	want := fmt.Sprint(expected)
	return func(raw any) (any, error) {
		s, err := ToString(raw)
		if err != nil {
			return nil, err
		}
		return s == want, nil
	}
}

// ToString renders strings, byte slices, numbers and booleans as a string.
func ToString(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, malformed(raw, "nil value")
	case string:
		return strings.TrimSpace(v), nil
	case []byte:
		return strings.TrimSpace(string(v)), nil
	case fmt.Stringer:
		return v.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return fmt.Sprint(v), nil
	default:
		return nil, malformed(raw, "not a scalar")
	}
}

// ToInt64 converts integral numbers of any Go width, integral floats and
// numeric strings into an int64.
func ToInt64(raw any) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, malformed(raw, "%v", err)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, malformed(raw, "%v", err)
		}
		return n, nil
	}

	v := reflect.ValueOf(raw)
	switch {
	case v.CanInt():
		return v.Int(), nil
	case v.CanUint():
		if v.Uint() > math.MaxInt64 {
			return nil, malformed(raw, "out of range")
		}
		return int64(v.Uint()), nil
	case v.CanFloat():
		f := v.Float()
		if f != math.Trunc(f) {
			return nil, malformed(raw, "not integral")
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, malformed(raw, "out of range")
		}
		return int64(f), nil
	}
	return nil, malformed(raw, "not an integer")
}

// ToFloat64 converts numbers of any Go width and numeric strings into a
// float64.
func ToFloat64(raw any) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, malformed(raw, "%v", err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, malformed(raw, "%v", err)
		}
		return f, nil
	}

	v := reflect.ValueOf(raw)
	switch {
	case v.CanInt():
		return float64(v.Int()), nil
	case v.CanUint():
		return float64(v.Uint()), nil
	case v.CanFloat():
		return v.Float(), nil
	}
	return nil, malformed(raw, "not a number")
}

// ToBool converts booleans, boolean strings ("true", "1", ...) and numbers
// (non-zero is true) into a bool.
func ToBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, malformed(raw, "%v", err)
		}
		return b, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, malformed(raw, "%v", err)
		}
		return f != 0, nil
	}

	v := reflect.ValueOf(raw)
	switch {
	case v.CanInt():
		return v.Int() != 0, nil
	case v.CanUint():
		return v.Uint() != 0, nil
	case v.CanFloat():
		return v.Float() != 0, nil
	}
	return nil, malformed(raw, "not a boolean")
}

// isNumber reports whether v holds a Go integer or float of any width.
func isNumber(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.CanInt() || rv.CanUint() || rv.CanFloat()
}

// numbersEqual compares two numbers by value. Integers compare exactly,
// whatever their signedness.
func numbersEqual(a, b any) bool {
	x, y := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case x.CanInt() && y.CanInt():
		return x.Int() == y.Int()
	case x.CanUint() && y.CanUint():
		return x.Uint() == y.Uint()
	case x.CanInt() && y.CanUint():
		return x.Int() >= 0 && uint64(x.Int()) == y.Uint()
	case x.CanUint() && y.CanInt():
		return y.Int() >= 0 && uint64(y.Int()) == x.Uint()
	}
	f, errF := ToFloat64(a)
	g, errG := ToFloat64(b)
	return errF == nil && errG == nil && f.(float64) == g.(float64)
}

// Chain applies transforms in order, stopping at the first error.
func Chain(transforms ...Transform) Transform {
	return func(raw any) (any, error) {
		value := raw
		for _, t := range transforms {
			var err error
			if value, err = t(value); err != nil {
				return nil, err
			}
		}
		return value, nil
	}
}
